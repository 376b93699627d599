// Package valuation 计算组合市值。纯函数，不触碰任何 IO。
package valuation

import (
	"sort"

	"equities-ai/internal/ledger"
)

// Result 为一次估值的结果。
type Result struct {
	// Total 为现金加上所有可定价持仓的市值。
	Total float64
	// Cash 为现金部分。
	Cash float64
	// Holdings 为各持仓标的的市值（仅含可定价者）。
	Holdings map[string]float64
	// Missing 为持仓非零但缺少价格的标的，按字典序排列。
	// 它们未计入 Total。
	Missing []string
}

// Value 按给定价格表对快照估值。价格表中缺失的持仓标的
// 记入 Missing 而不是令估值失败。
func Value(snapshot ledger.Snapshot, prices map[string]float64) Result {
	result := Result{
		Cash:     snapshot.Cash(),
		Holdings: make(map[string]float64),
	}
	result.Total = result.Cash

	for symbol, qty := range snapshot.Holdings() {
		price, ok := prices[symbol]
		if !ok || price <= 0 {
			result.Missing = append(result.Missing, symbol)
			continue
		}
		value := price * qty
		result.Holdings[symbol] = value
		result.Total += value
	}

	sort.Strings(result.Missing)
	return result
}
