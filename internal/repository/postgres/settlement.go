package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"carrental-backend/internal/domain"
	"carrental-backend/internal/logger"
	"carrental-backend/internal/repository"
)

type settlementRepository struct {
	db DBTX
}

func NewSettlementRepository(db DBTX) repository.SettlementRepository {
	return &settlementRepository{db: db}
}

func (r *settlementRepository) Append(ctx context.Context, ev *domain.SettlementEvent) (bool, error) {
	logger.EnterMethod("settlementRepository.Append", "orderID", ev.OrderID, "reference", ev.ExternalReference, "kind", ev.Kind)

	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now().UTC()
	}
	query := `INSERT INTO settlement_events (order_id, external_reference, kind, amount_cents, channel, created_at)
	          VALUES ($1, $2, $3, $4, $5, $6)
	          ON CONFLICT (order_id, external_reference) DO NOTHING
	          RETURNING id`
	err := r.db.QueryRowContext(ctx, query, ev.OrderID, ev.ExternalReference, ev.Kind, ev.AmountCents, ev.Channel, ev.CreatedAt).Scan(&ev.ID)
	if errors.Is(err, sql.ErrNoRows) {
		logger.ExitMethod("settlementRepository.Append", "orderID", ev.OrderID, "inserted", false)
		return false, nil
	}
	if err != nil {
		err = mapErr("settlement event", err)
		logger.ExitMethodWithError("settlementRepository.Append", err, "orderID", ev.OrderID)
		return false, err
	}

	logger.ExitMethod("settlementRepository.Append", "eventID", ev.ID, "inserted", true)
	return true, nil
}

func (r *settlementRepository) ListByOrder(ctx context.Context, orderID int64) ([]domain.SettlementEvent, error) {
	query := `SELECT id, order_id, external_reference, kind, amount_cents, channel, created_at
	          FROM settlement_events WHERE order_id = $1 ORDER BY id ASC`
	rows, err := r.db.QueryContext(ctx, query, orderID)
	if err != nil {
		return nil, mapErr("settlement event", err)
	}
	defer rows.Close()

	var events []domain.SettlementEvent
	for rows.Next() {
		var ev domain.SettlementEvent
		if err := rows.Scan(&ev.ID, &ev.OrderID, &ev.ExternalReference, &ev.Kind, &ev.AmountCents, &ev.Channel, &ev.CreatedAt); err != nil {
			return nil, mapErr("settlement event", err)
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, mapErr("settlement event", err)
	}
	return events, nil
}
