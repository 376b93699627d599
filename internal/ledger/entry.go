package ledger

import (
	"fmt"
	"time"
)

// Action 表示一条账本记录对应的操作。
type Action string

const (
	ActionBuy     Action = "buy"
	ActionSell    Action = "sell"
	ActionNoTrade Action = "no_trade"
)

// Mode 表示产生成交的执行通道。
type Mode string

const (
	ModeSimulation Mode = "simulation"
	ModeBroker     Mode = "broker"
)

// Entry 为账本中一条不可变的状态转移记录。
// SequenceID 是唯一的排序依据；Datetime/Date 仅用于展示，
// 不参与 "最新状态" 的判定。
type Entry struct {
	SequenceID     int64     `json:"sequence_id"`
	Datetime       time.Time `json:"datetime"`
	Date           string    `json:"date"`
	Action         Action    `json:"action"`
	Symbol         string    `json:"symbol"`
	Quantity       int64     `json:"quantity"`
	FillPrice      float64   `json:"fill_price,omitempty"`
	ExecutionMode  Mode      `json:"execution_mode,omitempty"`
	ReferencePrice float64   `json:"reference_price,omitempty"`
	Slippage       float64   `json:"slippage,omitempty"`
	Rationale      string    `json:"rationale,omitempty"`
	Positions      Snapshot  `json:"positions"`
}

// Validate 校验记录自身的合法性。
func (e Entry) Validate() error {
	switch e.Action {
	case ActionBuy, ActionSell:
		if e.Symbol == "" {
			return fmt.Errorf("ledger: %s 记录缺少 symbol", e.Action)
		}
		if e.Quantity <= 0 {
			return fmt.Errorf("ledger: %s 记录数量必须大于0: %d", e.Action, e.Quantity)
		}
		if e.FillPrice <= 0 {
			return fmt.Errorf("ledger: %s 记录缺少有效成交价", e.Action)
		}
	case ActionNoTrade:
		// no_trade 记录只携带快照。
	default:
		return fmt.Errorf("ledger: 非法 action: %q", e.Action)
	}

	if e.SequenceID < 0 {
		return fmt.Errorf("ledger: sequence_id 不能为负: %d", e.SequenceID)
	}
	if e.Positions == nil {
		return fmt.Errorf("ledger: 记录缺少持仓快照")
	}
	if e.Positions.Cash() < 0 {
		return fmt.Errorf("ledger: 快照现金为负: %.2f", e.Positions.Cash())
	}
	for symbol, qty := range e.Positions {
		if symbol == CashKey {
			continue
		}
		if qty < 0 {
			return fmt.Errorf("ledger: 标的 %s 持仓为负: %.0f", symbol, qty)
		}
	}

	return nil
}

// Apply 将一条记录描述的操作应用到上一个快照，返回新的快照。
// 用于重放校验，也被执行器用来计算新状态，保证两处算法一致。
func Apply(prev Snapshot, e Entry) (Snapshot, error) {
	next := prev.Clone()

	switch e.Action {
	case ActionBuy:
		cost := e.FillPrice * float64(e.Quantity)
		if next.Cash() < cost {
			return nil, fmt.Errorf("ledger: 现金不足以重放 buy %s x%d", e.Symbol, e.Quantity)
		}
		next[CashKey] -= cost
		next[e.Symbol] += float64(e.Quantity)
	case ActionSell:
		if next.Quantity(e.Symbol) < float64(e.Quantity) {
			return nil, fmt.Errorf("ledger: 持仓不足以重放 sell %s x%d", e.Symbol, e.Quantity)
		}
		next[e.Symbol] -= float64(e.Quantity)
		next[CashKey] += e.FillPrice * float64(e.Quantity)
	case ActionNoTrade:
		// 状态原样结转。
	default:
		return nil, fmt.Errorf("ledger: 非法 action: %q", e.Action)
	}

	return next, nil
}
