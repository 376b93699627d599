package broker

import (
	"context"
	"errors"
)

// Side 表示订单方向。
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// 订单等待过程中的终态错误。执行器据此拒绝对应指令而不中断会话。
var (
	ErrOrderCanceled = errors.New("broker: order canceled")
	ErrOrderExpired  = errors.New("broker: order expired")
	ErrOrderRejected = errors.New("broker: order rejected")
	ErrOrderTimedOut = errors.New("broker: order timed out")
)

// Order 为一笔待提交的市价单。
type Order struct {
	Symbol   string
	Quantity int64
	Side     Side
	// ReferencePrice 为提交时点的参考价。模拟通道按此价立即成交，
	// 券商通道忽略该字段。
	ReferencePrice float64
}

// OrderUpdate 为一次状态查询的结果。
type OrderUpdate struct {
	ID             string
	Status         string
	FilledQty      int64
	FilledAvgPrice float64
}

// Fill 为订单的最终成交结果。
type Fill struct {
	OrderID  string
	Quantity int64
	Price    float64
}

// Backend 抽象订单通道：提交市价单并查询其状态。
type Backend interface {
	// Submit 提交订单，返回通道内的订单 ID。
	Submit(ctx context.Context, order Order) (string, error)
	// PollStatus 查询订单当前状态。
	PollStatus(ctx context.Context, orderID string) (OrderUpdate, error)
}
