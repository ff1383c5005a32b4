package fulfillment

import (
	"context"
	"database/sql"
	"time"

	"github.com/xyops/xianyu-backend/internal/apperr"
)

type postgresRepo struct{ db *sql.DB }

func NewPostgresRepository(db *sql.DB) Repository { return &postgresRepo{db: db} }

func (r *postgresRepo) Create(ctx context.Context, s *Shipment) error {
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now().UTC().Truncate(time.Microsecond)
	}
	var cardID sql.NullInt64
	if s.CardID != nil {
		cardID = sql.NullInt64{Int64: *s.CardID, Valid: true}
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO shipments (id, order_id, mode, card_id, status, message, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		s.ID.String(), s.OrderID, string(s.Mode), cardID, string(s.Status), s.Message, s.CreatedAt)
	return apperr.Storage("create shipment", err)
}

func (r *postgresRepo) ListByOrder(ctx context.Context, orderID string) ([]*Shipment, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, order_id, mode, card_id, status, message, created_at
		FROM shipments WHERE order_id=$1
		ORDER BY created_at DESC, id ASC`, orderID)
	if err != nil {
		return nil, apperr.Storage("list shipments", err)
	}
	defer rows.Close()

	out := []*Shipment{}
	for rows.Next() {
		var (
			s      Shipment
			mode   string
			status string
			cardID sql.NullInt64
		)
		if err := rows.Scan(&s.ID, &s.OrderID, &mode, &cardID, &status, &s.Message, &s.CreatedAt); err != nil {
			return nil, apperr.Storage("scan shipment", err)
		}
		s.Mode = Mode(mode)
		s.Status = ShipmentStatus(status)
		if cardID.Valid {
			id := cardID.Int64
			s.CardID = &id
		}
		out = append(out, &s)
	}
	return out, apperr.Storage("list shipments", rows.Err())
}
