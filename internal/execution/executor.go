package execution

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"equities-ai/internal/broker"
	"equities-ai/internal/ledger"
	"equities-ai/internal/quote"
)

// Executor 按指令顺序驱动一个交易日的执行：
// 读取账本头 → 取参考价 → 成交 → 校验 → 追加记录。
// 单条指令失败只记入该指令的结果，后续指令照常执行。
type Executor struct {
	ledger  *ledger.Ledger
	quotes  quote.Provider
	backend broker.Backend
	waiter  *broker.FillWaiter
	mode    ledger.Mode
	logger  *zap.Logger
}

// New 创建执行器。
func New(
	led *ledger.Ledger,
	quotes quote.Provider,
	backend broker.Backend,
	waiter *broker.FillWaiter,
	mode ledger.Mode,
	logger *zap.Logger,
) *Executor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Executor{
		ledger:  led,
		quotes:  quotes,
		backend: backend,
		waiter:  waiter,
		mode:    mode,
		logger:  logger,
	}
}

// EnsureGenesis 确保账本存在创世记录：所有标的为 0、现金为
// initialCash 的 no_trade 快照，序号 0。已初始化时不做任何事。
func (e *Executor) EnsureGenesis(symbols []string, initialCash float64, at time.Time) error {
	initialized, err := e.ledger.Initialized()
	if err != nil {
		return err
	}
	if initialized {
		return nil
	}

	entry := ledger.Entry{
		SequenceID: 0,
		Datetime:   at,
		Date:       at.Format("2006-01-02"),
		Action:     ledger.ActionNoTrade,
		Positions:  ledger.NewSnapshot(symbols, initialCash),
	}
	if err := e.ledger.Append(entry); err != nil {
		// 并发初始化：对方已写入创世记录即视为成功。
		if errors.Is(err, ledger.ErrSequenceConflict) {
			return nil
		}
		return err
	}

	e.logger.Info("账本初始化完成",
		zap.Float64("initial_cash", initialCash),
		zap.Int("symbols", len(symbols)),
	)
	return nil
}

// ExecuteSession 执行一个交易日的全部指令。决策为空时落一条
// no_trade 记录。返回错误仅当账本本身不可用。
func (e *Executor) ExecuteSession(ctx context.Context, at time.Time, intents []Intent) (*Session, error) {
	session := &Session{
		Date:     at.Format("2006-01-02"),
		Datetime: at,
	}

	if len(intents) == 0 {
		if err := e.appendNoTrade(at, "决策为空"); err != nil {
			return nil, err
		}
		session.NoTrade = true
		e.logger.Info("决策为空，记录 no_trade", zap.String("date", session.Date))
		return session, nil
	}

	for _, raw := range intents {
		outcome := e.executeIntent(ctx, at, raw.Normalize())
		session.Outcomes = append(session.Outcomes, outcome)

		if errors.Is(outcome.Err, ErrLedgerFailure) {
			return session, outcome.Err
		}
		if outcome.Err != nil {
			e.logger.Warn("指令被拒绝",
				zap.String("action", string(outcome.Intent.Action)),
				zap.String("symbol", outcome.Intent.Symbol),
				zap.Int64("quantity", outcome.Intent.Quantity),
				zap.Error(outcome.Err),
			)
			continue
		}
		e.logger.Info("指令已成交",
			zap.String("action", string(outcome.Intent.Action)),
			zap.String("symbol", outcome.Intent.Symbol),
			zap.Int64("quantity", outcome.Intent.Quantity),
			zap.Float64("fill_price", outcome.FillPrice),
			zap.Int64("sequence_id", outcome.SequenceID),
		)
	}

	return session, nil
}

// executeIntent 执行单条指令。所有失败都收敛为 Outcome.Err。
func (e *Executor) executeIntent(ctx context.Context, at time.Time, intent Intent) Outcome {
	outcome := Outcome{Intent: intent}

	if intent.Action != ledger.ActionBuy && intent.Action != ledger.ActionSell {
		outcome.Err = fmt.Errorf("%w: %q", ErrInvalidAction, intent.Action)
		return outcome
	}
	if intent.Symbol == "" || intent.Quantity <= 0 {
		outcome.Err = fmt.Errorf("%w: symbol=%q quantity=%d", ErrInvalidAction, intent.Symbol, intent.Quantity)
		return outcome
	}

	date := at.Format("2006-01-02")
	refPrice, err := e.quotes.Price(ctx, intent.Symbol, date)
	if err != nil {
		outcome.Err = err
		return outcome
	}
	outcome.ReferencePrice = refPrice

	snapshot, _, err := e.ledger.Latest()
	if err != nil {
		outcome.Err = fmt.Errorf("%w: %v", ErrLedgerFailure, err)
		return outcome
	}
	if err := checkAffordable(snapshot, intent, refPrice); err != nil {
		outcome.Err = err
		return outcome
	}

	fill, orderID, err := e.fill(ctx, intent, refPrice)
	if err != nil {
		outcome.Err = err
		return outcome
	}
	outcome.OrderID = orderID
	outcome.FillPrice = fill.Price

	entry := ledger.Entry{
		Datetime:      at,
		Date:          date,
		Action:        intent.Action,
		Symbol:        intent.Symbol,
		Quantity:      fill.Quantity,
		FillPrice:     fill.Price,
		ExecutionMode: e.mode,
		Rationale:     intent.Reason,
	}
	if e.mode == ledger.ModeBroker {
		entry.ReferencePrice = refPrice
		entry.Slippage = fill.Price - refPrice
		outcome.Slippage = entry.Slippage
	}

	appended, err := e.append(entry)
	if err != nil {
		outcome.Err = err
		return outcome
	}

	outcome.Executed = true
	outcome.SequenceID = appended.SequenceID
	outcome.Positions = appended.Positions
	return outcome
}

// fill 按执行模式完成成交：提交订单并等待终态。
func (e *Executor) fill(ctx context.Context, intent Intent, refPrice float64) (broker.Fill, string, error) {
	order := broker.Order{
		Symbol:         intent.Symbol,
		Quantity:       intent.Quantity,
		Side:           broker.Side(intent.Action),
		ReferencePrice: refPrice,
	}

	orderID, err := e.backend.Submit(ctx, order)
	if err != nil {
		return broker.Fill{}, "", err
	}

	fill, err := e.waiter.Wait(ctx, orderID)
	if err != nil {
		return broker.Fill{}, orderID, err
	}
	return fill, orderID, nil
}

// append 以当前账本头为基础构造下一条记录并追加，返回落账后的
// 完整记录。序号冲突时重读账本头重试一次，再次冲突则放弃该指令。
// 除冲突与重放校验之外的账本错误均视为会话级失败。
func (e *Executor) append(entry ledger.Entry) (ledger.Entry, error) {
	for attempt := 0; attempt < 2; attempt++ {
		snapshot, head, err := e.ledger.Latest()
		if err != nil {
			return ledger.Entry{}, fmt.Errorf("%w: %v", ErrLedgerFailure, err)
		}

		next, err := ledger.Apply(snapshot, entry)
		if err != nil {
			// 成交价相对参考价恶化导致现金不足，按指令级错误处理。
			return ledger.Entry{}, err
		}

		entry.SequenceID = head + 1
		entry.Positions = next

		err = e.ledger.Append(entry)
		if err == nil {
			return entry, nil
		}
		if !errors.Is(err, ledger.ErrSequenceConflict) {
			return ledger.Entry{}, fmt.Errorf("%w: %v", ErrLedgerFailure, err)
		}

		e.logger.Warn("账本序号冲突，重试一次",
			zap.Int64("sequence_id", entry.SequenceID),
		)
	}
	return ledger.Entry{}, fmt.Errorf("execution: 重试后仍然冲突: %w", ledger.ErrSequenceConflict)
}

// appendNoTrade 落一条状态原样结转的 no_trade 记录。
func (e *Executor) appendNoTrade(at time.Time, rationale string) error {
	entry := ledger.Entry{
		Datetime:  at,
		Date:      at.Format("2006-01-02"),
		Action:    ledger.ActionNoTrade,
		Rationale: rationale,
	}
	_, err := e.append(entry)
	return err
}

// checkAffordable 校验快照能否承受这条指令。
func checkAffordable(snapshot ledger.Snapshot, intent Intent, price float64) error {
	switch intent.Action {
	case ledger.ActionBuy:
		need := price * float64(intent.Quantity)
		if have := snapshot.Cash(); have < need {
			return fmt.Errorf("%w: need $%.2f, have $%.2f", ErrInsufficientFunds, need, have)
		}
	case ledger.ActionSell:
		need := float64(intent.Quantity)
		if have := snapshot.Quantity(intent.Symbol); have < need {
			return fmt.Errorf("%w: need %.0f, have %.0f", ErrInsufficientShares, need, have)
		}
	}
	return nil
}
