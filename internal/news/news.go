// Package news 加载外部采集流程产出的新闻数据包，供决策提示词使用。
// 采集本身在本仓库之外完成。
package news

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"go.uber.org/zap"
)

// 提示词中每个板块最多引用的条数。
const maxArticlesPerSection = 3

// Article 为一条新闻。
type Article struct {
	URL         string `json:"url"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Content     string `json:"content"`
	PublishTime string `json:"publish_time"`
	Publisher   string `json:"publisher,omitempty"`
}

// Bundle 为一个交易日的新闻数据包。
type Bundle struct {
	TradingDate    string               `json:"trading_date"`
	CollectedAt    string               `json:"collected_at"`
	MarketOverview []Article            `json:"market_overview"`
	SectorNews     []Article            `json:"sector_news"`
	TopStocksNews  map[string][]Article `json:"top_stocks_news"`
}

// Load 读取新闻数据包。文件不存在不是错误：新闻是可选输入。
func Load(path string, logger *zap.Logger) (*Bundle, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			logger.Info("新闻文件不存在，跳过", zap.String("path", path))
			return nil, nil
		}
		return nil, fmt.Errorf("news: 读取新闻文件失败: %w", err)
	}

	var bundle Bundle
	if err := json.Unmarshal(raw, &bundle); err != nil {
		return nil, fmt.Errorf("news: 解析新闻文件失败: %w", err)
	}

	logger.Info("新闻数据包加载完成",
		zap.String("trading_date", bundle.TradingDate),
		zap.Int("market_overview", len(bundle.MarketOverview)),
		zap.Int("sector_news", len(bundle.SectorNews)),
		zap.Int("stocks", len(bundle.TopStocksNews)),
	)

	return &bundle, nil
}

// Summary 将数据包压缩为提示词可用的纯文本摘要。
func (b *Bundle) Summary() string {
	if b == nil {
		return ""
	}

	var sb strings.Builder

	writeSection := func(header string, articles []Article) {
		if len(articles) == 0 {
			return
		}
		if len(articles) > maxArticlesPerSection {
			articles = articles[:maxArticlesPerSection]
		}
		sb.WriteString(header)
		sb.WriteString(":\n")
		for _, a := range articles {
			sb.WriteString("  - ")
			sb.WriteString(strings.TrimSpace(a.Title))
			if desc := strings.TrimSpace(a.Description); desc != "" {
				sb.WriteString(": ")
				sb.WriteString(desc)
			}
			sb.WriteString("\n")
		}
	}

	writeSection("Market overview", b.MarketOverview)
	writeSection("Sector news", b.SectorNews)

	symbols := make([]string, 0, len(b.TopStocksNews))
	for symbol := range b.TopStocksNews {
		symbols = append(symbols, symbol)
	}
	sort.Strings(symbols)
	for _, symbol := range symbols {
		writeSection(symbol, b.TopStocksNews[symbol])
	}

	return strings.TrimRight(sb.String(), "\n")
}
