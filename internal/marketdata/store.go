package marketdata

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"

	"go.uber.org/zap"
)

// ErrNoBar 表示指定标的在指定日期没有行情。
var ErrNoBar = errors.New("marketdata: no bar")

// 单行扫描缓冲上限。一个标的多年的日K可能序列化为数 MB。
const maxDocBytes = 16 * 1024 * 1024

// Bar 为一根日K。数值以字符串存储，与数据文件格式保持一致。
type Bar struct {
	Open   string `json:"1. buy price"`
	High   string `json:"2. high"`
	Low    string `json:"3. low"`
	Close  string `json:"4. sell price"`
	Volume string `json:"5. volume"`
}

// OpenPrice 返回开盘价。
func (b Bar) OpenPrice() (float64, error) {
	return parsePrice(b.Open)
}

// ClosePrice 返回收盘价。
func (b Bar) ClosePrice() (float64, error) {
	return parsePrice(b.Close)
}

func parsePrice(s string) (float64, error) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("marketdata: 解析价格失败: %w", err)
	}
	if v <= 0 {
		return 0, fmt.Errorf("marketdata: 价格非法: %v", v)
	}
	return v, nil
}

// Document 为行情文件中一个标的的完整日K序列，每行一个标的。
type Document struct {
	Meta   map[string]string `json:"Meta Data"`
	Series map[string]Bar    `json:"Time Series (Daily)"`
}

// Symbol 返回文档所属标的代码。
func (d Document) Symbol() string {
	return d.Meta["2. Symbol"]
}

// Store 为加载到内存的日K行情库。
type Store struct {
	path   string
	docs   map[string]Document
	logger *zap.Logger
}

// OpenStore 加载指定路径的行情文件。文件不存在时返回空库，
// 便于纯券商模式下不依赖历史数据运行。
func OpenStore(path string, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Store{
		path:   path,
		docs:   make(map[string]Document),
		logger: logger,
	}

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			logger.Warn("行情文件不存在，以空库启动", zap.String("path", path))
			return s, nil
		}
		return nil, fmt.Errorf("marketdata: 打开行情文件失败: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 256*1024), maxDocBytes)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		raw := scanner.Bytes()
		if len(raw) == 0 {
			continue
		}

		var doc Document
		if err := json.Unmarshal(raw, &doc); err != nil {
			logger.Warn("跳过无法解析的行情行",
				zap.Int("line", lineNo),
				zap.Error(err),
			)
			continue
		}
		symbol := doc.Symbol()
		if symbol == "" {
			logger.Warn("跳过缺少标的代码的行情行", zap.Int("line", lineNo))
			continue
		}
		s.docs[symbol] = doc
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("marketdata: 读取行情文件失败: %w", err)
	}

	logger.Info("行情库加载完成",
		zap.String("path", path),
		zap.Int("symbols", len(s.docs)),
	)

	return s, nil
}

// Symbols 返回库中已有行情的标的列表。
func (s *Store) Symbols() []string {
	symbols := make([]string, 0, len(s.docs))
	for symbol := range s.docs {
		symbols = append(symbols, symbol)
	}
	sort.Strings(symbols)
	return symbols
}

// Price 返回指定标的在指定日期（YYYY-MM-DD）的开盘价。
func (s *Store) Price(symbol, date string) (float64, error) {
	doc, ok := s.docs[symbol]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrNoBar, symbol)
	}
	bar, ok := doc.Series[date]
	if !ok {
		return 0, fmt.Errorf("%w: %s @ %s", ErrNoBar, symbol, date)
	}
	return bar.OpenPrice()
}

// Prices 返回指定日期有行情的全部标的的开盘价。
func (s *Store) Prices(date string) map[string]float64 {
	prices := make(map[string]float64)
	for symbol, doc := range s.docs {
		bar, ok := doc.Series[date]
		if !ok {
			continue
		}
		price, err := bar.OpenPrice()
		if err != nil {
			s.logger.Warn("忽略非法开盘价",
				zap.String("symbol", symbol),
				zap.String("date", date),
				zap.Error(err),
			)
			continue
		}
		prices[symbol] = price
	}
	return prices
}

// Closes 返回指定标的截至 date（含）的最近 n 个收盘价，按日期升序。
// 数据不足时返回已有的全部。
func (s *Store) Closes(symbol, date string, n int) []float64 {
	doc, ok := s.docs[symbol]
	if !ok {
		return nil
	}

	dates := make([]string, 0, len(doc.Series))
	for d := range doc.Series {
		if d <= date {
			dates = append(dates, d)
		}
	}
	sort.Strings(dates)
	if len(dates) > n {
		dates = dates[len(dates)-n:]
	}

	closes := make([]float64, 0, len(dates))
	for _, d := range dates {
		v, err := doc.Series[d].ClosePrice()
		if err != nil {
			continue
		}
		closes = append(closes, v)
	}
	return closes
}

// Merge 将新的日K合并进库：同一标的按日期覆盖，新标的直接加入。
func (s *Store) Merge(symbol string, lastRefreshed string, bars map[string]Bar) {
	doc, ok := s.docs[symbol]
	if !ok {
		doc = Document{
			Meta: map[string]string{
				"1. Information":    "Daily Prices",
				"2. Symbol":         symbol,
				"3. Last Refreshed": lastRefreshed,
				"4. Output Size":    "Compact",
				"5. Time Zone":      "US/Eastern",
			},
			Series: make(map[string]Bar),
		}
	}
	for date, bar := range bars {
		doc.Series[date] = bar
	}
	doc.Meta["3. Last Refreshed"] = lastRefreshed
	s.docs[symbol] = doc
}

// Save 将整个库按标的排序重写回文件。行情文件只由刷新流程写入，
// 与账本不同，整体重写是可接受的。
func (s *Store) Save() error {
	tmp := s.path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("marketdata: 创建临时文件失败: %w", err)
	}

	w := bufio.NewWriter(f)
	for _, symbol := range s.Symbols() {
		payload, err := json.Marshal(s.docs[symbol])
		if err != nil {
			_ = f.Close()
			return fmt.Errorf("marketdata: 序列化行情失败: %w", err)
		}
		if _, err := w.Write(append(payload, '\n')); err != nil {
			_ = f.Close()
			return fmt.Errorf("marketdata: 写入行情失败: %w", err)
		}
	}
	if err := w.Flush(); err != nil {
		_ = f.Close()
		return fmt.Errorf("marketdata: 写入行情失败: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("marketdata: 关闭行情文件失败: %w", err)
	}

	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("marketdata: 替换行情文件失败: %w", err)
	}
	return nil
}
