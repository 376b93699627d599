package ai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"equities-ai/internal/config"
	"equities-ai/internal/indicator"
	"equities-ai/internal/ledger"
	"equities-ai/internal/news"
)

// Client 封装大模型调用逻辑。
type Client struct {
	cfg    config.OpenAIConfig
	logger *zap.Logger
	sdk    *openai.Client
}

// NewClient 使用给定配置创建 AI 客户端。
func NewClient(cfg config.OpenAIConfig, logger *zap.Logger) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("ai: openai api_key 不能为空")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	sdkCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		sdkCfg.BaseURL = cfg.BaseURL
	}
	sdkCfg.HTTPClient = &http.Client{
		Timeout: cfg.Timeout + 5*time.Second,
	}

	return &Client{
		cfg:    cfg,
		logger: logger,
		sdk:    openai.NewClientWithConfig(sdkCfg),
	}, nil
}

// GenerateDecision 根据组合状态与市场数据获取当日决策。
func (c *Client) GenerateDecision(
	ctx context.Context,
	date string,
	snapshot ledger.Snapshot,
	prices map[string]float64,
	features map[string]indicator.Features,
	bundle *news.Bundle,
) (Decision, error) {
	if c.cfg.Model == "" {
		return Decision{}, errors.New("ai: openai model 不能为空")
	}

	prompt, err := BuildPrompt(date, snapshot, prices, features, bundle)
	if err != nil {
		return Decision{}, err
	}

	response, err := c.sdk.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.cfg.Model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleUser,
				Content: prompt,
			},
		},
		Temperature: 0,
	})
	if err != nil {
		c.logger.Error("调用大模型失败", zap.Error(err))
		return Decision{}, fmt.Errorf("ai: 调用大模型失败: %w", err)
	}

	if len(response.Choices) == 0 {
		return Decision{}, errors.New("ai: 模型返回结果为空")
	}
	rawContent := strings.TrimSpace(response.Choices[0].Message.Content)
	if rawContent == "" {
		return Decision{}, errors.New("ai: 模型返回内容为空")
	}

	decision, err := ParseDecision(rawContent)
	if err != nil {
		c.logger.Error("解析模型决策失败",
			zap.Error(err),
			zap.String("raw_content", rawContent),
		)
		return Decision{}, err
	}

	c.logger.Info("AI 决策生成成功",
		zap.Int("actions", len(decision.Actions)),
		zap.String("analysis", decision.Analysis),
	)

	return decision, nil
}
