package ledger

// CashKey 为快照中现金余额的保留键。
const CashKey = "CASH"

// Snapshot 表示某一时刻的完整持仓：各标的股数加现金余额。
// 未出现的标的视为持仓为 0。
type Snapshot map[string]float64

// NewSnapshot 创建初始快照：所有标的为 0，现金为 initialCash。
func NewSnapshot(symbols []string, initialCash float64) Snapshot {
	snap := make(Snapshot, len(symbols)+1)
	for _, symbol := range symbols {
		snap[symbol] = 0
	}
	snap[CashKey] = initialCash
	return snap
}

// Clone 返回快照的深拷贝。
func (s Snapshot) Clone() Snapshot {
	dst := make(Snapshot, len(s))
	for k, v := range s {
		dst[k] = v
	}
	return dst
}

// Cash 返回现金余额。
func (s Snapshot) Cash() float64 {
	return s[CashKey]
}

// Quantity 返回指定标的的持仓股数。
func (s Snapshot) Quantity(symbol string) float64 {
	return s[symbol]
}

// Holdings 返回持仓大于 0 的标的集合（不含现金）。
func (s Snapshot) Holdings() map[string]float64 {
	holdings := make(map[string]float64)
	for symbol, qty := range s {
		if symbol == CashKey || qty <= 0 {
			continue
		}
		holdings[symbol] = qty
	}
	return holdings
}
