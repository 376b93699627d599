package broker

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Clock 抽象时间来源，测试中可注入假时钟。
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}

type realClock struct{}

func (realClock) Now() time.Time                         { return time.Now() }
func (realClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

// RealClock 返回基于系统时间的 Clock。
func RealClock() Clock { return realClock{} }

// FillWaiter 轮询订单状态直至终态：成交、取消、过期、拒绝，
// 或超过等待期限。查询出错不是终态，记录后在下一个周期重试。
type FillWaiter struct {
	backend  Backend
	clock    Clock
	interval time.Duration
	timeout  time.Duration
	logger   *zap.Logger
}

// NewFillWaiter 创建订单等待器。interval、timeout 非正时取默认值
// （1秒与60秒）。
func NewFillWaiter(backend Backend, clock Clock, interval, timeout time.Duration, logger *zap.Logger) *FillWaiter {
	if clock == nil {
		clock = realClock{}
	}
	if interval <= 0 {
		interval = time.Second
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FillWaiter{
		backend:  backend,
		clock:    clock,
		interval: interval,
		timeout:  timeout,
		logger:   logger,
	}
}

// Wait 阻塞等待订单终态。成交返回 Fill；取消、过期、拒绝、超时
// 分别返回对应的终态错误。
func (w *FillWaiter) Wait(ctx context.Context, orderID string) (Fill, error) {
	deadline := w.clock.Now().Add(w.timeout)

	for {
		update, err := w.backend.PollStatus(ctx, orderID)
		if err != nil {
			if ctx.Err() != nil {
				return Fill{}, fmt.Errorf("broker: 等待成交被取消: %w", ctx.Err())
			}
			// 查询失败不终止等待，下个周期再试。
			w.logger.Warn("查询订单状态失败",
				zap.String("order_id", orderID),
				zap.Error(err),
			)
		} else {
			fill, terminal, termErr := classify(update)
			if terminal {
				if termErr != nil {
					return Fill{}, termErr
				}
				return fill, nil
			}
		}

		if !w.clock.Now().Before(deadline) {
			return Fill{}, fmt.Errorf("%w: %s 等待超过 %s", ErrOrderTimedOut, orderID, w.timeout)
		}

		select {
		case <-ctx.Done():
			return Fill{}, fmt.Errorf("broker: 等待成交被取消: %w", ctx.Err())
		case <-w.clock.After(w.interval):
		}
	}
}

// classify 将一次状态查询归类为终态或继续等待。
func classify(update OrderUpdate) (Fill, bool, error) {
	switch update.Status {
	case "filled":
		if update.FilledAvgPrice <= 0 || update.FilledQty <= 0 {
			return Fill{}, true, fmt.Errorf("%w: 成交回报缺少价格或数量", ErrOrderRejected)
		}
		return Fill{
			OrderID:  update.ID,
			Quantity: update.FilledQty,
			Price:    update.FilledAvgPrice,
		}, true, nil
	case "canceled":
		return Fill{}, true, fmt.Errorf("%w: %s", ErrOrderCanceled, update.ID)
	case "expired":
		return Fill{}, true, fmt.Errorf("%w: %s", ErrOrderExpired, update.ID)
	case "rejected":
		return Fill{}, true, fmt.Errorf("%w: %s", ErrOrderRejected, update.ID)
	default:
		// new/accepted/partially_filled 等中间状态，继续等待。
		return Fill{}, false, nil
	}
}
