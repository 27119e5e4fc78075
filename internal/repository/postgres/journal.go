package postgres

import (
	"context"
	"time"

	"carrental-backend/internal/domain"
	"carrental-backend/internal/logger"
	"carrental-backend/internal/repository"
)

// journalRepository writes the append-only order event and funds-flow logs.
type journalRepository struct {
	db DBTX
}

func NewJournalRepository(db DBTX) repository.JournalRepository {
	return &journalRepository{db: db}
}

func (r *journalRepository) AppendOrderEvent(ctx context.Context, ev *domain.OrderEventLog) error {
	logger.EnterMethod("journalRepository.AppendOrderEvent", "orderID", ev.OrderID, "eventType", ev.EventType)

	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now().UTC()
	}
	query := `INSERT INTO order_event_logs (order_id, order_no, event_type, stage, operator_id, operator_name, operator_role, message, created_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9) RETURNING id`
	err := r.db.QueryRowContext(ctx, query, ev.OrderID, ev.OrderNo, ev.EventType, ev.Stage, ev.OperatorID,
		ev.OperatorName, ev.OperatorRole, ev.Message, ev.CreatedAt).Scan(&ev.ID)
	if err != nil {
		err = mapErr("order event", err)
		logger.ExitMethodWithError("journalRepository.AppendOrderEvent", err, "orderID", ev.OrderID)
		return err
	}

	logger.ExitMethod("journalRepository.AppendOrderEvent", "eventID", ev.ID)
	return nil
}

func (r *journalRepository) AppendFundsFlow(ctx context.Context, entry *domain.FundsFlowEntry) error {
	logger.EnterMethod("journalRepository.AppendFundsFlow", "orderID", entry.OrderID, "type", entry.Type, "amount", entry.AmountCents)

	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	query := `INSERT INTO funds_flow_logs (flow_no, order_id, order_no, type, amount_cents, channel, operator_id, operator_name, remark, created_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10) RETURNING id`
	err := r.db.QueryRowContext(ctx, query, entry.FlowNo, entry.OrderID, entry.OrderNo, entry.Type, entry.AmountCents,
		entry.Channel, entry.OperatorID, entry.OperatorName, entry.Remark, entry.CreatedAt).Scan(&entry.ID)
	if err != nil {
		err = mapErr("funds flow", err)
		logger.ExitMethodWithError("journalRepository.AppendFundsFlow", err, "orderID", entry.OrderID)
		return err
	}

	logger.ExitMethod("journalRepository.AppendFundsFlow", "flowID", entry.ID)
	return nil
}

func (r *journalRepository) ListOrderEvents(ctx context.Context, orderID int64) ([]domain.OrderEventLog, error) {
	query := `SELECT id, order_id, order_no, event_type, stage, operator_id, operator_name, operator_role, message, created_at
	          FROM order_event_logs WHERE order_id = $1 ORDER BY id ASC`
	rows, err := r.db.QueryContext(ctx, query, orderID)
	if err != nil {
		return nil, mapErr("order event", err)
	}
	defer rows.Close()

	var events []domain.OrderEventLog
	for rows.Next() {
		var ev domain.OrderEventLog
		if err := rows.Scan(&ev.ID, &ev.OrderID, &ev.OrderNo, &ev.EventType, &ev.Stage, &ev.OperatorID,
			&ev.OperatorName, &ev.OperatorRole, &ev.Message, &ev.CreatedAt); err != nil {
			return nil, mapErr("order event", err)
		}
		events = append(events, ev)
	}
	return events, mapErr("order event", rows.Err())
}

func (r *journalRepository) ListFundsFlow(ctx context.Context, orderID int64) ([]domain.FundsFlowEntry, error) {
	query := `SELECT id, flow_no, order_id, order_no, type, amount_cents, channel, operator_id, operator_name, remark, created_at
	          FROM funds_flow_logs WHERE order_id = $1 ORDER BY id ASC`
	rows, err := r.db.QueryContext(ctx, query, orderID)
	if err != nil {
		return nil, mapErr("funds flow", err)
	}
	defer rows.Close()

	var entries []domain.FundsFlowEntry
	for rows.Next() {
		var e domain.FundsFlowEntry
		if err := rows.Scan(&e.ID, &e.FlowNo, &e.OrderID, &e.OrderNo, &e.Type, &e.AmountCents, &e.Channel,
			&e.OperatorID, &e.OperatorName, &e.Remark, &e.CreatedAt); err != nil {
			return nil, mapErr("funds flow", err)
		}
		entries = append(entries, e)
	}
	return entries, mapErr("funds flow", rows.Err())
}
