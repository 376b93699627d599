package ai

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"equities-ai/internal/execution"
	"equities-ai/internal/ledger"
)

// Action 为决策中的一条交易动作。
type Action struct {
	Action string `json:"action"`
	Symbol string `json:"symbol"`
	Amount int64  `json:"amount"`
	Reason string `json:"reason,omitempty"`
}

// Decision 表示模型返回的当日决策。Actions 为空代表观望。
type Decision struct {
	Analysis string   `json:"analysis"`
	Actions  []Action `json:"actions"`
}

// Validate 校验决策字段合法性。
func (d Decision) Validate() error {
	for i, a := range d.Actions {
		action := strings.ToLower(strings.TrimSpace(a.Action))
		if action != "buy" && action != "sell" {
			return fmt.Errorf("actions[%d].action 取值非法: %q", i, a.Action)
		}
		if strings.TrimSpace(a.Symbol) == "" {
			return fmt.Errorf("actions[%d].symbol 不能为空", i)
		}
		if a.Amount <= 0 {
			return fmt.Errorf("actions[%d].amount 必须大于0: %d", i, a.Amount)
		}
	}
	return nil
}

// Intents 将决策转换为执行器指令。
func (d Decision) Intents() []execution.Intent {
	intents := make([]execution.Intent, 0, len(d.Actions))
	for _, a := range d.Actions {
		reason := a.Reason
		if reason == "" {
			reason = d.Analysis
		}
		intents = append(intents, execution.Intent{
			Action:   ledger.Action(a.Action),
			Symbol:   a.Symbol,
			Quantity: a.Amount,
			Reason:   reason,
		}.Normalize())
	}
	return intents
}

// ParseDecision 解析模型输出。容忍 ```json 围栏与 JSON 前后的附加文本。
func ParseDecision(content string) (Decision, error) {
	payload, err := extractJSON(content)
	if err != nil {
		return Decision{}, err
	}

	var decision Decision
	if err := json.Unmarshal(payload, &decision); err != nil {
		return Decision{}, fmt.Errorf("ai: 解析决策JSON失败: %w", err)
	}
	if err := decision.Validate(); err != nil {
		return Decision{}, fmt.Errorf("ai: 决策校验失败: %w", err)
	}
	return decision, nil
}

// LoadDecisionFile 从外部文件读取决策，替代模型调用。
func LoadDecisionFile(path string) (Decision, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Decision{}, fmt.Errorf("ai: 读取决策文件失败: %w", err)
	}
	return ParseDecision(string(raw))
}

func extractJSON(content string) ([]byte, error) {
	if idx := strings.Index(content, "```json"); idx != -1 {
		content = content[idx+len("```json"):]
		if end := strings.Index(content, "```"); end != -1 {
			content = content[:end]
		}
	}

	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start == -1 || end == -1 || end <= start {
		return nil, errors.New("ai: 模型输出未找到有效JSON")
	}
	return []byte(content[start : end+1]), nil
}
