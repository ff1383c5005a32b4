package account

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/xyops/xianyu-backend/internal/apperr"
)

type postgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository creates the SQL account repository.
func NewPostgresRepository(db *sql.DB) Repository {
	return &postgresRepository{db: db}
}

func (r *postgresRepository) Create(ctx context.Context, a *Account) error {
	query := `
		INSERT INTO accounts (id, cookie, enabled, auto_confirm, remark, pause_duration, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := r.db.ExecContext(ctx, query,
		a.ID, a.Cookie, a.Enabled, a.AutoConfirm, a.Remark, a.PauseDuration, a.CreatedAt, a.UpdatedAt)
	return apperr.Storage("create account", err)
}

func (r *postgresRepository) Get(ctx context.Context, id string) (*Account, error) {
	a := &Account{}
	query := `
		SELECT id, cookie, enabled, auto_confirm, remark, pause_duration, created_at, updated_at
		FROM accounts
		WHERE id = $1
	`
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&a.ID,
		&a.Cookie,
		&a.Enabled,
		&a.AutoConfirm,
		&a.Remark,
		&a.PauseDuration,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("account", id)
	}
	if err != nil {
		return nil, apperr.Storage("get account", err)
	}
	return a, nil
}

func (r *postgresRepository) List(ctx context.Context) ([]*Account, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, cookie, enabled, auto_confirm, remark, pause_duration, created_at, updated_at
		FROM accounts ORDER BY created_at ASC, id ASC`)
	if err != nil {
		return nil, apperr.Storage("list accounts", err)
	}
	defer rows.Close()

	accounts := []*Account{}
	for rows.Next() {
		a := &Account{}
		if err := rows.Scan(&a.ID, &a.Cookie, &a.Enabled, &a.AutoConfirm, &a.Remark,
			&a.PauseDuration, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, apperr.Storage("list accounts", err)
		}
		accounts = append(accounts, a)
	}
	return accounts, apperr.Storage("list accounts", rows.Err())
}

func (r *postgresRepository) Update(ctx context.Context, a *Account) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE accounts
		SET cookie=$1, enabled=$2, auto_confirm=$3, remark=$4, pause_duration=$5, updated_at=$6
		WHERE id=$7`,
		a.Cookie, a.Enabled, a.AutoConfirm, a.Remark, a.PauseDuration, a.UpdatedAt, a.ID)
	if err != nil {
		return apperr.Storage("update account", err)
	}
	return mustAffect(res, "update account", a.ID)
}

func (r *postgresRepository) Delete(ctx context.Context, id string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return apperr.Storage("delete account", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM ai_settings WHERE account_id=$1`, id); err != nil {
		return apperr.Storage("delete account", err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM accounts WHERE id=$1`, id)
	if err != nil {
		return apperr.Storage("delete account", err)
	}
	if err := mustAffect(res, "delete account", id); err != nil {
		return err
	}
	return apperr.Storage("delete account", tx.Commit())
}

func (r *postgresRepository) GetAISettings(ctx context.Context, accountID string) (*AISettings, error) {
	s := &AISettings{}
	err := r.db.QueryRowContext(ctx, `
		SELECT account_id, enabled, max_discount_percent, max_discount_amount,
		       max_bargain_rounds, custom_prompts, updated_at
		FROM ai_settings WHERE account_id=$1`, accountID).Scan(
		&s.AccountID, &s.Enabled, &s.MaxDiscountPercent, &s.MaxDiscountAmount,
		&s.MaxBargainRounds, &s.CustomPrompts, &s.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("ai settings", accountID)
	}
	if err != nil {
		return nil, apperr.Storage("get ai settings", err)
	}
	return s, nil
}

func (r *postgresRepository) SaveAISettings(ctx context.Context, s *AISettings) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO ai_settings
		  (account_id, enabled, max_discount_percent, max_discount_amount, max_bargain_rounds, custom_prompts, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (account_id) DO UPDATE SET
		  enabled=excluded.enabled,
		  max_discount_percent=excluded.max_discount_percent,
		  max_discount_amount=excluded.max_discount_amount,
		  max_bargain_rounds=excluded.max_bargain_rounds,
		  custom_prompts=excluded.custom_prompts,
		  updated_at=excluded.updated_at`,
		s.AccountID, s.Enabled, s.MaxDiscountPercent, s.MaxDiscountAmount.String(),
		s.MaxBargainRounds, s.CustomPrompts, s.UpdatedAt)
	return apperr.Storage("save ai settings", err)
}

func mustAffect(res sql.Result, op, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return apperr.Storage(op, err)
	}
	if n == 0 {
		return apperr.NotFound("account", id)
	}
	return nil
}

func now() time.Time { return time.Now().UTC().Truncate(time.Microsecond) }
