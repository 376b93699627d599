package app

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"equities-ai/internal/ai"
	"equities-ai/internal/broker"
	"equities-ai/internal/config"
	"equities-ai/internal/execution"
	"equities-ai/internal/indicator"
	"equities-ai/internal/ledger"
	"equities-ai/internal/marketdata"
	"equities-ai/internal/monitor"
	"equities-ai/internal/news"
	"equities-ai/internal/quote"
	"equities-ai/internal/store"
	"equities-ai/internal/valuation"
)

// 技术特征计算所需的回看根数。
const featureLookbackBars = 60

// App 聚合核心依赖并驱动一次交易会话。
type App struct {
	cfg    *config.Config
	logger *zap.Logger
	store  *store.Store
}

// New 创建 App 实例。
func New(cfg *config.Config, logger *zap.Logger, store *store.Store) *App {
	return &App{
		cfg:    cfg,
		logger: logger,
		store:  store,
	}
}

// Run 执行一个完整的交易会话：定位交易日、初始化账本、
// 收集市场数据、获取决策、执行指令并估值。系统按日运行，
// 每次进程只处理一个交易日。
func (a *App) Run(ctx context.Context) error {
	mode := strings.ToLower(strings.TrimSpace(a.cfg.Execution.Mode))

	monitorSvc, err := monitor.NewService(a.store, a.logger)
	if err != nil {
		return err
	}
	if a.cfg.Monitor.Port > 0 {
		if err := startMonitorServer(ctx, monitorSvc, a.cfg.Monitor.Port, a.logger); err != nil {
			return err
		}
	}

	at, explicit, err := a.resolveTradingTime(mode)
	if err != nil {
		return err
	}
	date := at.Format("2006-01-02")

	if !explicit {
		if wd := at.Weekday(); wd == time.Saturday || wd == time.Sunday {
			a.logger.Info("周末休市，跳过本次会话", zap.String("date", date))
			return nil
		}
	}

	a.logger.Info("交易会话开始",
		zap.String("date", date),
		zap.String("execution_mode", mode),
		zap.String("signature", a.cfg.Ledger.Signature),
	)
	monitorSvc.RecordSession(ctx, date, mode, a.cfg.Ledger.Signature)

	led, err := ledger.Open(a.cfg.Ledger.File(a.cfg.Market.DataPath), a.logger)
	if err != nil {
		return err
	}

	bars, err := marketdata.OpenStore(a.cfg.Market.BarsFile(), a.logger)
	if err != nil {
		return err
	}
	if a.cfg.Market.RefreshBars {
		fetcher := marketdata.NewFetcher(a.cfg.Broker, a.logger)
		if err := fetcher.Refresh(ctx, bars, a.cfg.Market.Symbols, a.cfg.Market.BarsLookbackDays); err != nil {
			a.logger.Warn("刷新日K失败，继续使用现有数据", zap.Error(err))
			monitorSvc.RecordError(ctx, "刷新日K失败", err, map[string]interface{}{"date": date})
		}
	}

	executor, err := a.buildExecutor(led, bars, mode)
	if err != nil {
		return err
	}
	if err := executor.EnsureGenesis(a.cfg.Market.Symbols, a.cfg.Ledger.InitialCash, at); err != nil {
		return err
	}

	snapshot, _, err := led.Latest()
	if err != nil {
		return err
	}

	prices := bars.Prices(date)
	if len(prices) == 0 {
		a.logger.Warn("当日无本地行情", zap.String("date", date))
	}
	features := a.computeFeatures(bars, snapshot, prices, date)

	bundle, err := news.Load(a.cfg.Market.NewsFile(), a.logger)
	if err != nil {
		a.logger.Warn("加载新闻失败，继续执行", zap.Error(err))
		monitorSvc.RecordError(ctx, "加载新闻失败", err, nil)
		bundle = nil
	}

	decision, source, err := a.obtainDecision(ctx, date, snapshot, prices, features, bundle)
	if err != nil {
		monitorSvc.RecordError(ctx, "获取决策失败", err, map[string]interface{}{"date": date})
		return err
	}
	monitorSvc.RecordDecision(ctx, date, source, decision)
	a.logger.Info("当日决策",
		zap.String("source", source),
		zap.String("analysis", decision.Analysis),
		zap.Int("actions", len(decision.Actions)),
	)

	session, err := executor.ExecuteSession(ctx, at, decision.Intents())
	if err != nil {
		monitorSvc.RecordError(ctx, "执行会话失败", err, map[string]interface{}{"date": date})
		return err
	}
	monitorSvc.RecordExecution(ctx, session)

	finalSnapshot, seq, err := led.Latest()
	if err != nil {
		return err
	}
	result := valuation.Value(finalSnapshot, prices)
	monitorSvc.RecordValuation(ctx, date, seq, finalSnapshot, result)

	a.logger.Info("交易会话结束",
		zap.String("date", date),
		zap.Int64("sequence_id", seq),
		zap.Int("executed", session.ExecutedCount()),
		zap.Int("rejected", session.RejectedCount()),
		zap.Float64("total_value", result.Total),
		zap.Float64("cash", result.Cash),
		zap.Strings("missing_prices", result.Missing),
	)

	return nil
}

// resolveTradingTime 确定本次会话的交易时点。
// 券商模式不允许回放历史日期：给出告警并改用当前时间。
func (a *App) resolveTradingTime(mode string) (time.Time, bool, error) {
	raw := strings.TrimSpace(a.cfg.App.TradingDate)
	if raw == "" {
		return time.Now(), false, nil
	}

	at, err := parseTradingDate(raw)
	if err != nil {
		return time.Time{}, false, err
	}

	if mode == config.ModeBroker {
		now := time.Now()
		if at.Format("2006-01-02") != now.Format("2006-01-02") {
			a.logger.Warn("券商模式不支持回放历史日期，改用当天",
				zap.String("requested", raw),
			)
			return now, true, nil
		}
	}
	return at, true, nil
}

func parseTradingDate(raw string) (time.Time, error) {
	if at, err := time.Parse(time.RFC3339, raw); err == nil {
		return at, nil
	}
	at, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("app: 解析交易日期失败: %q", raw)
	}
	return at, nil
}

// buildExecutor 按执行模式组装订单通道与报价源。
func (a *App) buildExecutor(led *ledger.Ledger, bars *marketdata.Store, mode string) (*execution.Executor, error) {
	var (
		backend broker.Backend
		quotes  quote.Provider
		ledMode ledger.Mode
	)

	switch mode {
	case config.ModeBroker:
		backend = broker.NewAlpacaBackend(a.cfg.Broker, a.logger)
		quotes = quote.NewLiveProvider(a.cfg.Broker, a.logger)
		ledMode = ledger.ModeBroker
	case config.ModeSimulation:
		backend = broker.NewSimBackend()
		quotes = quote.NewFileProvider(bars)
		ledMode = ledger.ModeSimulation
	default:
		return nil, fmt.Errorf("app: 执行模式非法: %q", mode)
	}

	waiter := broker.NewFillWaiter(
		backend,
		broker.RealClock(),
		a.cfg.Execution.PollInterval,
		a.cfg.Execution.FillTimeout,
		a.logger,
	)

	return execution.New(led, quotes, backend, waiter, ledMode, a.logger), nil
}

// computeFeatures 为持仓标的与报价样本计算技术特征。
// 数据不足的标的直接跳过。
func (a *App) computeFeatures(
	bars *marketdata.Store,
	snapshot ledger.Snapshot,
	prices map[string]float64,
	date string,
) map[string]indicator.Features {
	wanted := make(map[string]struct{})
	for symbol := range snapshot.Holdings() {
		wanted[symbol] = struct{}{}
	}
	quoted := make([]string, 0, len(prices))
	for symbol := range prices {
		quoted = append(quoted, symbol)
	}
	sort.Strings(quoted)
	for _, symbol := range quoted {
		wanted[symbol] = struct{}{}
	}

	features := make(map[string]indicator.Features)
	for symbol := range wanted {
		closes := bars.Closes(symbol, date, featureLookbackBars)
		f, err := indicator.Compute(closes)
		if err != nil {
			continue
		}
		features[symbol] = f
	}
	return features
}

// obtainDecision 从外部决策文件或大模型取得当日决策。
func (a *App) obtainDecision(
	ctx context.Context,
	date string,
	snapshot ledger.Snapshot,
	prices map[string]float64,
	features map[string]indicator.Features,
	bundle *news.Bundle,
) (ai.Decision, string, error) {
	if path := strings.TrimSpace(a.cfg.App.DecisionFile); path != "" {
		decision, err := ai.LoadDecisionFile(path)
		if err != nil {
			return ai.Decision{}, "", err
		}
		return decision, "file", nil
	}

	client, err := ai.NewClient(a.cfg.OpenAI, a.logger)
	if err != nil {
		return ai.Decision{}, "", err
	}

	callCtx, cancel := context.WithTimeout(ctx, a.cfg.OpenAI.Timeout)
	defer cancel()

	decision, err := client.GenerateDecision(callCtx, date, snapshot, prices, features, bundle)
	if err != nil {
		return ai.Decision{}, "", err
	}
	return decision, "model", nil
}
