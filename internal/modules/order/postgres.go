package order

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/xyops/xianyu-backend/internal/apperr"
)

// postgresRepo speaks the Postgres dialect; the same statements run on the
// SQLite driver.
type postgresRepo struct{ db *sql.DB }

func NewPostgresRepository(db *sql.DB) Repository { return &postgresRepo{db: db} }

const orderColumns = `order_id, account_id, item_id, item_title, buyer_id, spec_name, spec_value,
	quantity, amount, status, system_shipped, is_bargain,
	receiver_name, receiver_phone, receiver_address, created_at, updated_at`

func (r *postgresRepo) Get(ctx context.Context, orderID string) (*Order, error) {
	o, err := scanOrder(r.db.QueryRowContext(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE order_id=$1`, orderID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("order", orderID)
	}
	if err != nil {
		return nil, apperr.Storage("get order", err)
	}
	return o, nil
}

func (r *postgresRepo) List(ctx context.Context, f Filter, page, pageSize int) ([]*Order, int, error) {
	page, pageSize = normalisePage(page, pageSize)

	where, args := whereClause(f)

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM orders`+where, args...).Scan(&total); err != nil {
		return nil, 0, apperr.Storage("count orders", err)
	}

	n := len(args)
	query := `SELECT ` + orderColumns + ` FROM orders` + where +
		fmt.Sprintf(` ORDER BY created_at DESC, order_id DESC LIMIT $%d OFFSET $%d`, n+1, n+2)
	args = append(args, pageSize, (page-1)*pageSize)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, apperr.Storage("list orders", err)
	}
	defer rows.Close()

	orders := make([]*Order, 0, pageSize)
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, 0, apperr.Storage("scan order", err)
		}
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, apperr.Storage("list orders", err)
	}
	return orders, total, nil
}

func (r *postgresRepo) Update(ctx context.Context, orderID string, p Patch) (*Order, error) {
	if p.SystemShipped != nil && !*p.SystemShipped {
		return nil, apperr.Validation("system_shipped", "cannot be reset once set")
	}
	if p.Empty() {
		return nil, apperr.Validation("", "no fields to update")
	}

	var sets []string
	var args []interface{}
	set := func(col string, v interface{}) {
		args = append(args, v)
		sets = append(sets, fmt.Sprintf("%s=$%d", col, len(args)))
	}
	if p.ItemID != nil {
		set("item_id", *p.ItemID)
	}
	if p.ItemTitle != nil {
		set("item_title", *p.ItemTitle)
	}
	if p.BuyerID != nil {
		set("buyer_id", *p.BuyerID)
	}
	if p.SpecName != nil {
		set("spec_name", *p.SpecName)
	}
	if p.SpecValue != nil {
		set("spec_value", *p.SpecValue)
	}
	if p.Quantity != nil {
		set("quantity", *p.Quantity)
	}
	if p.Amount != nil {
		set("amount", p.Amount.String())
	}
	if p.Status != nil {
		set("status", string(*p.Status))
	}
	if p.SystemShipped != nil {
		set("system_shipped", true)
	}
	if p.IsBargain != nil {
		set("is_bargain", *p.IsBargain)
	}
	if p.ReceiverName != nil {
		set("receiver_name", *p.ReceiverName)
	}
	if p.ReceiverPhone != nil {
		set("receiver_phone", *p.ReceiverPhone)
	}
	if p.ReceiverAddress != nil {
		set("receiver_address", *p.ReceiverAddress)
	}
	set("updated_at", now())

	args = append(args, orderID)
	query := fmt.Sprintf(`UPDATE orders SET %s WHERE order_id=$%d`, strings.Join(sets, ", "), len(args))

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, apperr.Storage("update order", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return nil, apperr.Storage("update order", err)
	} else if n == 0 {
		return nil, apperr.NotFound("order", orderID)
	}
	return r.Get(ctx, orderID)
}

func (r *postgresRepo) CompareAndSetShipped(ctx context.Context, orderID string) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE orders SET system_shipped=TRUE, updated_at=$1 WHERE order_id=$2 AND system_shipped=FALSE`,
		now(), orderID)
	if err != nil {
		return false, apperr.Storage("mark shipped", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, apperr.Storage("mark shipped", err)
	}
	if n == 1 {
		return true, nil
	}
	// distinguish "already shipped" from "no such order"
	if _, err := r.Get(ctx, orderID); err != nil {
		return false, err
	}
	return false, nil
}

func (r *postgresRepo) Upsert(ctx context.Context, o *Order) (*Order, error) {
	ts := now()
	created := o.CreatedAt
	if created.IsZero() {
		created = ts
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO orders
		  (order_id, account_id, item_id, item_title, buyer_id, spec_name, spec_value,
		   quantity, amount, status, system_shipped, is_bargain,
		   receiver_name, receiver_phone, receiver_address, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,FALSE,$11,$12,$13,$14,$15,$16)
		ON CONFLICT (order_id) DO UPDATE SET
		  account_id=excluded.account_id, item_id=excluded.item_id, item_title=excluded.item_title,
		  buyer_id=excluded.buyer_id, spec_name=excluded.spec_name, spec_value=excluded.spec_value,
		  quantity=excluded.quantity, amount=excluded.amount, status=excluded.status,
		  is_bargain=excluded.is_bargain, receiver_name=excluded.receiver_name,
		  receiver_phone=excluded.receiver_phone, receiver_address=excluded.receiver_address,
		  updated_at=excluded.updated_at`,
		o.OrderID, o.AccountID, o.ItemID, o.ItemTitle, o.BuyerID, o.SpecName, o.SpecValue,
		o.Quantity, o.Amount.String(), string(o.Status), o.IsBargain,
		o.ReceiverName, o.ReceiverPhone, o.ReceiverAddress, created, ts)
	if err != nil {
		return nil, apperr.Storage("upsert order", err)
	}
	return r.Get(ctx, o.OrderID)
}

func (r *postgresRepo) Delete(ctx context.Context, orderID string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM orders WHERE order_id=$1`, orderID)
	if err != nil {
		return apperr.Storage("delete order", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return apperr.Storage("delete order", err)
	}
	if n == 0 {
		return apperr.NotFound("order", orderID)
	}
	return nil
}

// ── helpers ──────────────────────────────────────────────────────────────────

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanOrder(row scanner) (*Order, error) {
	o := &Order{}
	var status string
	err := row.Scan(
		&o.OrderID, &o.AccountID, &o.ItemID, &o.ItemTitle, &o.BuyerID, &o.SpecName, &o.SpecValue,
		&o.Quantity, &o.Amount, &status, &o.SystemShipped, &o.IsBargain,
		&o.ReceiverName, &o.ReceiverPhone, &o.ReceiverAddress, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return nil, err
	}
	o.Status = Status(status)
	o.StatusText = StatusText(o.Status)
	return o, nil
}

func whereClause(f Filter) (string, []interface{}) {
	var conds []string
	var args []interface{}
	if f.AccountID != "" {
		args = append(args, f.AccountID)
		conds = append(conds, fmt.Sprintf("account_id=$%d", len(args)))
	}
	if len(f.Statuses) > 0 {
		ph := make([]string, len(f.Statuses))
		for i, s := range f.Statuses {
			args = append(args, string(s))
			ph[i] = fmt.Sprintf("$%d", len(args))
		}
		conds = append(conds, "status IN ("+strings.Join(ph, ",")+")")
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func normalisePage(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}
	return page, pageSize
}

func now() time.Time { return time.Now().UTC().Truncate(time.Microsecond) }
