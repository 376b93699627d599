package execution

import (
	"errors"
	"strings"
	"time"

	"equities-ai/internal/ledger"
)

// 指令级可恢复错误。它们只否决单条指令，绝不中断会话。
var (
	ErrInvalidAction      = errors.New("execution: invalid action")
	ErrInsufficientFunds  = errors.New("execution: insufficient cash")
	ErrInsufficientShares = errors.New("execution: insufficient shares")
)

// ErrLedgerFailure 表示账本读写失败。账本不可用时会话立即中止，
// 不再处理后续指令。
var ErrLedgerFailure = errors.New("execution: ledger failure")

// Intent 为决策产出的一条交易指令。
type Intent struct {
	Action   ledger.Action
	Symbol   string
	Quantity int64
	Reason   string
}

// Normalize 统一大小写：action 小写、symbol 大写。
func (i Intent) Normalize() Intent {
	i.Action = ledger.Action(strings.ToLower(strings.TrimSpace(string(i.Action))))
	i.Symbol = strings.ToUpper(strings.TrimSpace(i.Symbol))
	return i
}

// Outcome 为单条指令的执行结果。Err 非空表示指令被拒绝，
// 账本未因它发生变化。成交时 Positions 为追加记录携带的快照，
// 即该指令落账后的组合状态。
type Outcome struct {
	Intent         Intent
	Executed       bool
	SequenceID     int64
	FillPrice      float64
	ReferencePrice float64
	Slippage       float64
	OrderID        string
	Positions      ledger.Snapshot
	Err            error
}

// Session 汇总一个交易日的全部执行结果。
type Session struct {
	Date     string
	Datetime time.Time
	Outcomes []Outcome
	// NoTrade 表示决策为空，会话只落了一条 no_trade 记录。
	NoTrade bool
}

// ExecutedCount 返回实际成交的指令数。
func (s *Session) ExecutedCount() int {
	n := 0
	for _, o := range s.Outcomes {
		if o.Executed {
			n++
		}
	}
	return n
}

// RejectedCount 返回被拒绝的指令数。
func (s *Session) RejectedCount() int {
	n := 0
	for _, o := range s.Outcomes {
		if o.Err != nil {
			n++
		}
	}
	return n
}
