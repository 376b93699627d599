package broker

import (
	"context"
	"fmt"
	"sync"
)

// SimBackend 为进程内模拟通道：订单按提交时的参考价立即全额成交。
// 用于回放历史交易日和无券商凭据的本地运行。
type SimBackend struct {
	mu     sync.Mutex
	nextID int64
	orders map[string]Fill
}

// NewSimBackend 创建模拟通道。
func NewSimBackend() *SimBackend {
	return &SimBackend{orders: make(map[string]Fill)}
}

// Submit 实现 Backend。
func (s *SimBackend) Submit(_ context.Context, order Order) (string, error) {
	if order.ReferencePrice <= 0 {
		return "", fmt.Errorf("broker: 模拟成交缺少参考价: %s", order.Symbol)
	}
	if order.Quantity <= 0 {
		return "", fmt.Errorf("broker: 订单数量非法: %d", order.Quantity)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	id := fmt.Sprintf("sim-%d", s.nextID)
	s.orders[id] = Fill{
		OrderID:  id,
		Quantity: order.Quantity,
		Price:    order.ReferencePrice,
	}
	return id, nil
}

// PollStatus 实现 Backend。模拟订单提交即成交。
func (s *SimBackend) PollStatus(_ context.Context, orderID string) (OrderUpdate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	fill, ok := s.orders[orderID]
	if !ok {
		return OrderUpdate{}, fmt.Errorf("broker: 未知订单: %s", orderID)
	}
	return OrderUpdate{
		ID:             orderID,
		Status:         "filled",
		FilledQty:      fill.Quantity,
		FilledAvgPrice: fill.Price,
	}, nil
}

var _ Backend = (*SimBackend)(nil)
