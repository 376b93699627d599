package monitor

import (
	"time"

	"equities-ai/internal/ai"
	"equities-ai/internal/ledger"
)

// EventType 表示监控事件类型。
type EventType string

const (
	EventSession   EventType = "session"
	EventDecision  EventType = "decision"
	EventExecution EventType = "execution"
	EventValuation EventType = "valuation"
	EventError     EventType = "error"
)

// Event 封装通用监控事件。
type Event struct {
	Type      EventType   `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// SessionPayload 记录一次交易会话的边界信息。
type SessionPayload struct {
	Date          string `json:"date"`
	ExecutionMode string `json:"execution_mode"`
	Signature     string `json:"signature"`
}

// DecisionPayload 记录当日决策。
type DecisionPayload struct {
	Date     string      `json:"date"`
	Decision ai.Decision `json:"decision"`
	Source   string      `json:"source"`
}

// ExecutionOutcome 为 ExecutionPayload 中的单条指令结果。
type ExecutionOutcome struct {
	Action         string  `json:"action"`
	Symbol         string  `json:"symbol"`
	Quantity       int64   `json:"quantity"`
	Executed       bool    `json:"executed"`
	SequenceID     int64   `json:"sequence_id,omitempty"`
	FillPrice      float64 `json:"fill_price,omitempty"`
	ReferencePrice float64 `json:"reference_price,omitempty"`
	Slippage       float64 `json:"slippage,omitempty"`
	OrderID        string  `json:"order_id,omitempty"`
	Error          string  `json:"error,omitempty"`
}

// ExecutionPayload 记录一次会话的执行结果。
type ExecutionPayload struct {
	Date     string             `json:"date"`
	NoTrade  bool               `json:"no_trade"`
	Outcomes []ExecutionOutcome `json:"outcomes"`
}

// ValuationPayload 记录会话结束时的组合估值。
type ValuationPayload struct {
	Date       string             `json:"date"`
	SequenceID int64              `json:"sequence_id"`
	Total      float64            `json:"total"`
	Cash       float64            `json:"cash"`
	Holdings   map[string]float64 `json:"holdings,omitempty"`
	Missing    []string           `json:"missing,omitempty"`
	Positions  ledger.Snapshot    `json:"positions"`
}

// ErrorPayload 记录异常。
type ErrorPayload struct {
	Message string                 `json:"message"`
	Error   string                 `json:"error"`
	Context map[string]interface{} `json:"context,omitempty"`
}
