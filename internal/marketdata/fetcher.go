package marketdata

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	md "github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"equities-ai/internal/config"
)

// 同时向行情接口发起的请求数上限。
const fetchConcurrency = 8

// Fetcher 从券商行情接口拉取日K并合并进本地库。
type Fetcher struct {
	client *md.Client
	logger *zap.Logger
}

// NewFetcher 创建行情拉取器。
func NewFetcher(cfg config.BrokerConfig, logger *zap.Logger) *Fetcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Fetcher{
		client: md.NewClient(md.ClientOpts{
			APIKey:    cfg.APIKey,
			APISecret: cfg.APISecret,
			BaseURL:   cfg.DataBaseURL,
		}),
		logger: logger,
	}
}

// Refresh 并发拉取各标的最近 lookbackDays 天的日K，合并进 store 并落盘。
// 单个标的失败只记录告警，不影响其它标的。
func (f *Fetcher) Refresh(ctx context.Context, store *Store, symbols []string, lookbackDays int) error {
	if lookbackDays <= 0 {
		return fmt.Errorf("marketdata: 回溯天数非法: %d", lookbackDays)
	}

	end := time.Now().UTC()
	start := end.AddDate(0, 0, -lookbackDays)

	var mu sync.Mutex
	failed := 0

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(fetchConcurrency)

	for _, symbol := range symbols {
		symbol := symbol
		g.Go(func() error {
			bars, err := f.fetchOne(gctx, symbol, start, end)
			if err != nil {
				f.logger.Warn("拉取日K失败",
					zap.String("symbol", symbol),
					zap.Error(err),
				)
				mu.Lock()
				failed++
				mu.Unlock()
				// 单标的失败不终止整体刷新。
				return nil
			}
			if len(bars) == 0 {
				return nil
			}

			mu.Lock()
			store.Merge(symbol, end.Format("2006-01-02"), bars)
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return fmt.Errorf("marketdata: 刷新日K失败: %w", err)
	}

	if err := store.Save(); err != nil {
		return err
	}

	f.logger.Info("日K刷新完成",
		zap.Int("symbols", len(symbols)),
		zap.Int("failed", failed),
		zap.String("start", start.Format("2006-01-02")),
		zap.String("end", end.Format("2006-01-02")),
	)

	return nil
}

func (f *Fetcher) fetchOne(ctx context.Context, symbol string, start, end time.Time) (map[string]Bar, error) {
	raw, err := f.client.GetBars(symbol, md.GetBarsRequest{
		TimeFrame: md.OneDay,
		Start:     start,
		End:       end,
	})
	if err != nil {
		return nil, fmt.Errorf("请求行情接口失败: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	bars := make(map[string]Bar, len(raw))
	for _, b := range raw {
		date := b.Timestamp.Format("2006-01-02")
		bars[date] = Bar{
			Open:   strconv.FormatFloat(b.Open, 'f', -1, 64),
			High:   strconv.FormatFloat(b.High, 'f', -1, 64),
			Low:    strconv.FormatFloat(b.Low, 'f', -1, 64),
			Close:  strconv.FormatFloat(b.Close, 'f', -1, 64),
			Volume: strconv.FormatUint(b.Volume, 10),
		}
	}
	return bars, nil
}
