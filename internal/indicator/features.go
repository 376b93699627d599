// Package indicator 基于日K收盘序列计算简要技术特征，供决策提示词使用。
package indicator

import (
	"fmt"
	"math"

	talib "github.com/markcheno/go-talib"
)

// 各指标所需的最小样本数。
const (
	smaPeriod = 20
	rsiPeriod = 14
	minBars   = smaPeriod + 1
)

// Features 为单个标的的日线技术特征。
type Features struct {
	Close    float64
	SMA20    float64
	RSI14    float64
	Return20 float64 // 20个交易日收益率（百分比）
}

// Compute 基于按日期升序的收盘价序列计算特征。
// 样本不足时返回错误，调用方可选择跳过该标的。
func Compute(closes []float64) (Features, error) {
	if len(closes) < minBars {
		return Features{}, fmt.Errorf("indicator: 样本不足: 有 %d 根，至少需要 %d 根", len(closes), minBars)
	}

	sma := talib.Sma(closes, smaPeriod)
	rsi := talib.Rsi(closes, rsiPeriod)

	last := len(closes) - 1
	features := Features{
		Close: closes[last],
		SMA20: sma[last],
		RSI14: rsi[last],
	}

	base := closes[last-smaPeriod]
	if base > 0 {
		features.Return20 = (closes[last] - base) / base * 100
	}

	if !finite(features.SMA20) || !finite(features.RSI14) {
		return Features{}, fmt.Errorf("indicator: 指标计算产生非法值")
	}

	return features, nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
