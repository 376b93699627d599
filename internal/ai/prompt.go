package ai

import (
	"bytes"
	"fmt"
	"sort"
	"text/template"

	"equities-ai/internal/indicator"
	"equities-ai/internal/ledger"
	"equities-ai/internal/news"
)

// 提示词中列出的报价数量上限。
const maxQuoteLines = 20

const decisionTemplate = `You are an expert stock trader managing a portfolio of NASDAQ 100 stocks.

**Today's Date**: {{ .Date }}

**Current Portfolio** (Total Value: ${{ printf "%.2f" .TotalValue }}):
{{- if .Holdings }}
{{- range .Holdings }}
  - {{ .Symbol }}: {{ .Shares }} shares @ ${{ printf "%.2f" .Price }} = ${{ printf "%.2f" .Value }}
{{- end }}
{{- else }}
  (No holdings)
{{- end }}
  - CASH: ${{ printf "%.2f" .Cash }}

**Today's Opening Prices** (Sample - top {{ len .Quotes }}):
{{- range .Quotes }}
  - {{ .Symbol }}: ${{ printf "%.2f" .Price }}
{{- end }}
{{- if .Features }}

**Technical Snapshot** (close / SMA20 / RSI14 / 20d return):
{{- range .Features }}
  - {{ .Symbol }}: {{ printf "%.2f" .Close }} / {{ printf "%.2f" .SMA20 }} / {{ printf "%.1f" .RSI14 }} / {{ printf "%+.1f" .Return20 }}%
{{- end }}
{{- end }}
{{- if .News }}

**Market News**:
{{ .News }}
{{- end }}

**Your Task**:
Analyze the current market conditions and your portfolio, then decide on trading actions.

**Available Actions**:
1. BUY <SYMBOL> <AMOUNT> - Buy shares
2. SELL <SYMBOL> <AMOUNT> - Sell shares
3. HOLD - No trades today

**Response Format**:
You MUST respond with a JSON object containing your decision:

{
  "analysis": "Brief analysis of market conditions and reasoning",
  "actions": [
    {"action": "buy", "symbol": "AAPL", "amount": 10},
    {"action": "sell", "symbol": "MSFT", "amount": 5}
  ]
}

If you don't want to trade, use:
{
  "analysis": "Reason for holding",
  "actions": []
}

**Important**:
- Only trade with available cash
- Only sell shares you own
- Consider diversification
- Response must be valid JSON only, no additional text
`

var tmpl = template.Must(template.New("decision").Parse(decisionTemplate))

type holdingLine struct {
	Symbol string
	Shares int64
	Price  float64
	Value  float64
}

type quoteLine struct {
	Symbol string
	Price  float64
}

type featureLine struct {
	Symbol string
	indicator.Features
}

// PromptContext 汇集渲染提示词所需的全部输入。
type PromptContext struct {
	Date       string
	TotalValue float64
	Cash       float64
	Holdings   []holdingLine
	Quotes     []quoteLine
	Features   []featureLine
	News       string
}

// BuildPrompt 将持仓、报价、技术特征与新闻渲染成提示词。
func BuildPrompt(
	date string,
	snapshot ledger.Snapshot,
	prices map[string]float64,
	features map[string]indicator.Features,
	bundle *news.Bundle,
) (string, error) {
	ctx := PromptContext{
		Date: date,
		Cash: snapshot.Cash(),
	}
	ctx.TotalValue = ctx.Cash

	holdings := snapshot.Holdings()
	symbols := make([]string, 0, len(holdings))
	for symbol := range holdings {
		symbols = append(symbols, symbol)
	}
	sort.Strings(symbols)
	for _, symbol := range symbols {
		shares := int64(holdings[symbol])
		price := prices[symbol]
		value := float64(shares) * price
		ctx.TotalValue += value
		ctx.Holdings = append(ctx.Holdings, holdingLine{
			Symbol: symbol,
			Shares: shares,
			Price:  price,
			Value:  value,
		})
	}

	quoted := make([]string, 0, len(prices))
	for symbol := range prices {
		quoted = append(quoted, symbol)
	}
	sort.Strings(quoted)
	if len(quoted) > maxQuoteLines {
		quoted = quoted[:maxQuoteLines]
	}
	for _, symbol := range quoted {
		ctx.Quotes = append(ctx.Quotes, quoteLine{Symbol: symbol, Price: prices[symbol]})
	}

	withFeatures := make([]string, 0, len(features))
	for symbol := range features {
		withFeatures = append(withFeatures, symbol)
	}
	sort.Strings(withFeatures)
	for _, symbol := range withFeatures {
		ctx.Features = append(ctx.Features, featureLine{Symbol: symbol, Features: features[symbol]})
	}

	if bundle != nil {
		ctx.News = bundle.Summary()
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, ctx); err != nil {
		return "", fmt.Errorf("ai: 渲染提示词失败: %w", err)
	}
	return buf.String(), nil
}
