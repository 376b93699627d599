package quote

import (
	"context"
	"fmt"

	md "github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"
	"go.uber.org/zap"

	"equities-ai/internal/config"
)

// LiveProvider 从券商行情接口取实时报价，用于券商执行模式。
// date 参数被忽略：实时报价只对 "现在" 有意义。
type LiveProvider struct {
	client *md.Client
	logger *zap.Logger
}

// NewLiveProvider 创建实时报价源。
func NewLiveProvider(cfg config.BrokerConfig, logger *zap.Logger) *LiveProvider {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LiveProvider{
		client: md.NewClient(md.ClientOpts{
			APIKey:    cfg.APIKey,
			APISecret: cfg.APISecret,
			BaseURL:   cfg.DataBaseURL,
		}),
		logger: logger,
	}
}

// Price 实现 Provider。买卖价中点作为参考价；只有单边报价时用该边。
func (p *LiveProvider) Price(ctx context.Context, symbol, _ string) (float64, error) {
	q, err := p.client.GetLatestQuote(symbol, md.GetLatestQuoteRequest{})
	if err != nil {
		return 0, fmt.Errorf("quote: 获取实时报价失败: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	switch {
	case q.AskPrice > 0 && q.BidPrice > 0:
		return (q.AskPrice + q.BidPrice) / 2, nil
	case q.AskPrice > 0:
		return q.AskPrice, nil
	case q.BidPrice > 0:
		return q.BidPrice, nil
	default:
		return 0, fmt.Errorf("%w: %s", ErrNoPrice, symbol)
	}
}

var _ Provider = (*LiveProvider)(nil)
