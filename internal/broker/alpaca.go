package broker

import (
	"context"
	"fmt"

	"github.com/alpacahq/alpaca-trade-api-go/v3/alpaca"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"equities-ai/internal/config"
)

// AlpacaBackend 通过 Alpaca 交易接口提交当日有效的市价单。
type AlpacaBackend struct {
	client *alpaca.Client
	logger *zap.Logger
}

// NewAlpacaBackend 创建券商通道。
func NewAlpacaBackend(cfg config.BrokerConfig, logger *zap.Logger) *AlpacaBackend {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AlpacaBackend{
		client: alpaca.NewClient(alpaca.ClientOpts{
			APIKey:    cfg.APIKey,
			APISecret: cfg.APISecret,
			BaseURL:   cfg.BaseURL,
		}),
		logger: logger,
	}
}

// Submit 实现 Backend。
func (a *AlpacaBackend) Submit(ctx context.Context, order Order) (string, error) {
	if order.Quantity <= 0 {
		return "", fmt.Errorf("broker: 订单数量非法: %d", order.Quantity)
	}

	side := alpaca.Buy
	if order.Side == SideSell {
		side = alpaca.Sell
	}

	qty := decimal.NewFromInt(order.Quantity)
	placed, err := a.client.PlaceOrder(alpaca.PlaceOrderRequest{
		Symbol:      order.Symbol,
		Qty:         &qty,
		Side:        side,
		Type:        alpaca.Market,
		TimeInForce: alpaca.Day,
	})
	if err != nil {
		return "", fmt.Errorf("broker: 提交订单失败: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	a.logger.Info("订单已提交",
		zap.String("order_id", placed.ID),
		zap.String("symbol", order.Symbol),
		zap.String("side", string(order.Side)),
		zap.Int64("quantity", order.Quantity),
	)

	return placed.ID, nil
}

// PollStatus 实现 Backend。
func (a *AlpacaBackend) PollStatus(ctx context.Context, orderID string) (OrderUpdate, error) {
	order, err := a.client.GetOrder(orderID)
	if err != nil {
		return OrderUpdate{}, fmt.Errorf("broker: 查询订单失败: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return OrderUpdate{}, err
	}

	update := OrderUpdate{
		ID:        order.ID,
		Status:    string(order.Status),
		FilledQty: order.FilledQty.IntPart(),
	}
	if order.FilledAvgPrice != nil {
		update.FilledAvgPrice = order.FilledAvgPrice.InexactFloat64()
	}
	return update, nil
}

var _ Backend = (*AlpacaBackend)(nil)
