package monitor

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"equities-ai/internal/ai"
	"equities-ai/internal/execution"
	"equities-ai/internal/ledger"
	"equities-ai/internal/store"
	"equities-ai/internal/valuation"
)

// Service 负责持久化监控事件。
type Service struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewService 初始化监控服务，创建所需表结构。
func NewService(store *store.Store, logger *zap.Logger) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("monitor: store 不能为空")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Service{
		db:     store.DB(),
		logger: logger,
	}

	if err := s.initSchema(); err != nil {
		return nil, err
	}

	return s, nil
}

func (s *Service) initSchema() error {
	stmt := `
CREATE TABLE IF NOT EXISTS monitor_events (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	event_type TEXT NOT NULL,
	payload TEXT NOT NULL,
	created_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_monitor_events_type ON monitor_events(event_type);
`
	if _, err := s.db.Exec(stmt); err != nil {
		return fmt.Errorf("monitor: 初始化表失败: %w", err)
	}
	return nil
}

// Record 写入单个事件。
func (s *Service) Record(ctx context.Context, event Event) error {
	payload, err := json.Marshal(event.Payload)
	if err != nil {
		return fmt.Errorf("monitor: 序列化事件失败: %w", err)
	}

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO monitor_events (event_type, payload, created_at) VALUES (?, ?, ?)`,
		string(event.Type), string(payload), event.Timestamp.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("monitor: 写入事件失败: %w", err)
	}

	return nil
}

// RecordSession 记录会话开始。
func (s *Service) RecordSession(ctx context.Context, date, mode, signature string) {
	if err := s.Record(ctx, Event{
		Type:      EventSession,
		Timestamp: time.Now().UTC(),
		Payload:   SessionPayload{Date: date, ExecutionMode: mode, Signature: signature},
	}); err != nil {
		s.logger.Warn("记录会话事件失败", zap.Error(err))
	}
}

// RecordDecision 记录当日决策。
func (s *Service) RecordDecision(ctx context.Context, date, source string, decision ai.Decision) {
	if err := s.Record(ctx, Event{
		Type:      EventDecision,
		Timestamp: time.Now().UTC(),
		Payload:   DecisionPayload{Date: date, Decision: decision, Source: source},
	}); err != nil {
		s.logger.Warn("记录决策事件失败", zap.Error(err))
	}
}

// RecordExecution 记录会话执行结果。
func (s *Service) RecordExecution(ctx context.Context, session *execution.Session) {
	payload := ExecutionPayload{
		Date:    session.Date,
		NoTrade: session.NoTrade,
	}
	for _, o := range session.Outcomes {
		outcome := ExecutionOutcome{
			Action:         string(o.Intent.Action),
			Symbol:         o.Intent.Symbol,
			Quantity:       o.Intent.Quantity,
			Executed:       o.Executed,
			SequenceID:     o.SequenceID,
			FillPrice:      o.FillPrice,
			ReferencePrice: o.ReferencePrice,
			Slippage:       o.Slippage,
			OrderID:        o.OrderID,
		}
		if o.Err != nil {
			outcome.Error = o.Err.Error()
		}
		payload.Outcomes = append(payload.Outcomes, outcome)
	}

	if err := s.Record(ctx, Event{
		Type:      EventExecution,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	}); err != nil {
		s.logger.Warn("记录执行事件失败", zap.Error(err))
	}
}

// RecordValuation 记录组合估值。
func (s *Service) RecordValuation(ctx context.Context, date string, seq int64, snapshot ledger.Snapshot, result valuation.Result) {
	if err := s.Record(ctx, Event{
		Type:      EventValuation,
		Timestamp: time.Now().UTC(),
		Payload: ValuationPayload{
			Date:       date,
			SequenceID: seq,
			Total:      result.Total,
			Cash:       result.Cash,
			Holdings:   result.Holdings,
			Missing:    result.Missing,
			Positions:  snapshot,
		},
	}); err != nil {
		s.logger.Warn("记录估值事件失败", zap.Error(err))
	}
}

// RecordError 记录异常。
func (s *Service) RecordError(ctx context.Context, msg string, err error, ctxMap map[string]interface{}) {
	payload := ErrorPayload{
		Message: msg,
		Error:   err.Error(),
		Context: ctxMap,
	}
	if recErr := s.Record(ctx, Event{
		Type:      EventError,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	}); recErr != nil {
		s.logger.Warn("记录异常事件失败", zap.Error(recErr))
	}
}

// ListEvents 按类型检索最近事件。
func (s *Service) ListEvents(ctx context.Context, eventType EventType, limit int) ([]Event, error) {
	if limit <= 0 {
		limit = 100
	}

	query := `SELECT event_type, payload, created_at FROM monitor_events`
	args := make([]interface{}, 0, 2)
	if eventType != "" {
		query += ` WHERE event_type = ?`
		args = append(args, string(eventType))
	}
	query += ` ORDER BY id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("monitor: 查询事件失败: %w", err)
	}
	defer rows.Close()

	events := make([]Event, 0, limit)
	for rows.Next() {
		var (
			typ     string
			payload string
			created string
		)
		if scanErr := rows.Scan(&typ, &payload, &created); scanErr != nil {
			return nil, fmt.Errorf("monitor: 解析事件失败: %w", scanErr)
		}

		ts, parseErr := time.Parse(time.RFC3339, created)
		if parseErr != nil {
			ts = time.Now().UTC()
		}

		events = append(events, Event{
			Type:      EventType(typ),
			Timestamp: ts,
			Payload:   json.RawMessage(payload),
		})
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("monitor: 读取事件失败: %w", err)
	}

	return events, nil
}
