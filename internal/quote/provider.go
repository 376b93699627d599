package quote

import (
	"context"
	"errors"
	"fmt"

	"equities-ai/internal/marketdata"
)

// ErrNoPrice 表示无法取得参考价。执行器据此跳过对应指令。
var ErrNoPrice = errors.New("quote: no price available")

// Provider 提供某个交易日的参考价。
type Provider interface {
	// Price 返回 symbol 在 date（YYYY-MM-DD）的参考价。
	// 取不到价格时返回 ErrNoPrice（可被包装）。
	Price(ctx context.Context, symbol, date string) (float64, error)
}

// FileProvider 基于本地日K库报价，参考价为当日开盘价。
type FileProvider struct {
	store *marketdata.Store
}

// NewFileProvider 创建基于行情库的报价源。
func NewFileProvider(store *marketdata.Store) *FileProvider {
	return &FileProvider{store: store}
}

// Price 实现 Provider。
func (p *FileProvider) Price(_ context.Context, symbol, date string) (float64, error) {
	price, err := p.store.Price(symbol, date)
	if err != nil {
		if errors.Is(err, marketdata.ErrNoBar) {
			return 0, fmt.Errorf("%w: %s @ %s", ErrNoPrice, symbol, date)
		}
		return 0, err
	}
	return price, nil
}

var _ Provider = (*FileProvider)(nil)
