package inventory

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/xyops/xianyu-backend/internal/apperr"
)

type cardPostgres struct{ db *sql.DB }

func NewPostgresRepository(db *sql.DB) Repository { return &cardPostgres{db: db} }

const cardColumns = `id, name, type, description, enabled, item_id, text_content, api_config,
	image_url, delay_seconds, is_multi_spec, spec_name, spec_value, created_at, updated_at`

func (r *cardPostgres) CreateCard(ctx context.Context, c *Card, stock []string) error {
	apiCfg, err := encodeAPIConfig(c.APIConfig)
	if err != nil {
		return apperr.Validation("api_config", err.Error())
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return apperr.Storage("create card", err)
	}
	defer tx.Rollback()

	err = tx.QueryRowContext(ctx, `
		INSERT INTO cards
		  (name, type, description, enabled, item_id, text_content, api_config, image_url,
		   delay_seconds, is_multi_spec, spec_name, spec_value, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
		RETURNING id`,
		c.Name, string(c.Type), c.Description, c.Enabled, c.ItemID, c.TextContent, apiCfg, c.ImageURL,
		c.DelaySeconds, c.IsMultiSpec, c.SpecName, c.SpecValue, c.CreatedAt, c.UpdatedAt).Scan(&c.ID)
	if err != nil {
		return apperr.Storage("create card", err)
	}
	if err := insertLines(ctx, tx, c.ID, 0, stock); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return apperr.Storage("create card", err)
	}
	c.DataContent = strings.Join(stock, "\n")
	c.StockRemaining = len(stock)
	return nil
}

func (r *cardPostgres) GetCard(ctx context.Context, id int64) (*Card, error) {
	c, err := scanCard(r.db.QueryRowContext(ctx, `SELECT `+cardColumns+` FROM cards WHERE id=$1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("card", strconv.FormatInt(id, 10))
	}
	if err != nil {
		return nil, apperr.Storage("get card", err)
	}
	if err := r.attachStock(ctx, []*Card{c}); err != nil {
		return nil, err
	}
	return c, nil
}

func (r *cardPostgres) ListCards(ctx context.Context) ([]*Card, error) {
	return r.queryCards(ctx, `SELECT `+cardColumns+` FROM cards ORDER BY id ASC`)
}

func (r *cardPostgres) ListCandidates(ctx context.Context, itemID string) ([]*Card, error) {
	return r.queryCards(ctx, `SELECT `+cardColumns+` FROM cards
		WHERE enabled=TRUE AND (item_id='' OR item_id=$1) ORDER BY id ASC`, itemID)
}

func (r *cardPostgres) UpdateCard(ctx context.Context, c *Card, stock []string, replaceStock bool) error {
	apiCfg, err := encodeAPIConfig(c.APIConfig)
	if err != nil {
		return apperr.Validation("api_config", err.Error())
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return apperr.Storage("update card", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE cards SET name=$1, type=$2, description=$3, enabled=$4, item_id=$5, text_content=$6,
		  api_config=$7, image_url=$8, delay_seconds=$9, is_multi_spec=$10, spec_name=$11,
		  spec_value=$12, updated_at=$13
		WHERE id=$14`,
		c.Name, string(c.Type), c.Description, c.Enabled, c.ItemID, c.TextContent,
		apiCfg, c.ImageURL, c.DelaySeconds, c.IsMultiSpec, c.SpecName,
		c.SpecValue, c.UpdatedAt, c.ID)
	if err != nil {
		return apperr.Storage("update card", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return apperr.Storage("update card", err)
	} else if n == 0 {
		return apperr.NotFound("card", strconv.FormatInt(c.ID, 10))
	}

	if replaceStock {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM card_stock_lines WHERE card_id=$1 AND order_id IS NULL`, c.ID); err != nil {
			return apperr.Storage("replace stock", err)
		}
		var maxLine int
		if err := tx.QueryRowContext(ctx,
			`SELECT COALESCE(MAX(line_no), 0) FROM card_stock_lines WHERE card_id=$1`, c.ID).Scan(&maxLine); err != nil {
			return apperr.Storage("replace stock", err)
		}
		if err := insertLines(ctx, tx, c.ID, maxLine, stock); err != nil {
			return err
		}
	}
	return apperr.Storage("update card", tx.Commit())
}

func (r *cardPostgres) DeleteCard(ctx context.Context, id int64) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return apperr.Storage("delete card", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM card_stock_lines WHERE card_id=$1`, id); err != nil {
		return apperr.Storage("delete card", err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM cards WHERE id=$1`, id)
	if err != nil {
		return apperr.Storage("delete card", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return apperr.Storage("delete card", err)
	} else if n == 0 {
		return apperr.NotFound("card", strconv.FormatInt(id, 10))
	}
	return apperr.Storage("delete card", tx.Commit())
}

// ClaimLine is a select-then-compare-and-set loop. A lost race re-reads the
// next free line; the loop ends when a claim lands or no free line is left.
func (r *cardPostgres) ClaimLine(ctx context.Context, cardID int64, orderID string) (*StockLine, error) {
	held := &StockLine{CardID: cardID}
	err := r.db.QueryRowContext(ctx, `
		SELECT id, line_no, content FROM card_stock_lines
		WHERE card_id=$1 AND order_id=$2 ORDER BY line_no ASC LIMIT 1`, cardID, orderID).
		Scan(&held.ID, &held.LineNo, &held.Content)
	if err == nil {
		return held, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.Storage("claim stock", err)
	}

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		line := &StockLine{CardID: cardID}
		err := r.db.QueryRowContext(ctx, `
			SELECT id, line_no, content FROM card_stock_lines
			WHERE card_id=$1 AND order_id IS NULL ORDER BY line_no ASC, id ASC LIMIT 1`, cardID).
			Scan(&line.ID, &line.LineNo, &line.Content)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.ErrStockExhausted
		}
		if err != nil {
			return nil, apperr.Storage("claim stock", err)
		}

		res, err := r.db.ExecContext(ctx, `
			UPDATE card_stock_lines SET order_id=$1, claimed_at=$2
			WHERE id=$3 AND order_id IS NULL`, orderID, now(), line.ID)
		if err != nil {
			return nil, apperr.Storage("claim stock", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return nil, apperr.Storage("claim stock", err)
		}
		if n == 1 {
			return line, nil
		}
	}
}

func (r *cardPostgres) ReleaseLine(ctx context.Context, lineID int64, orderID string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE card_stock_lines SET order_id=NULL, claimed_at=NULL
		WHERE id=$1 AND order_id=$2`, lineID, orderID)
	return apperr.Storage("release stock", err)
}

// ── helpers ──────────────────────────────────────────────────────────────────

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanCard(row scanner) (*Card, error) {
	c := &Card{}
	var typ, apiCfg string
	err := row.Scan(&c.ID, &c.Name, &typ, &c.Description, &c.Enabled, &c.ItemID, &c.TextContent,
		&apiCfg, &c.ImageURL, &c.DelaySeconds, &c.IsMultiSpec, &c.SpecName, &c.SpecValue,
		&c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	c.Type = CardType(typ)
	if apiCfg != "" {
		c.APIConfig = &APIConfig{}
		if err := json.Unmarshal([]byte(apiCfg), c.APIConfig); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func (r *cardPostgres) queryCards(ctx context.Context, query string, args ...interface{}) ([]*Card, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperr.Storage("list cards", err)
	}
	defer rows.Close()

	cards := []*Card{}
	for rows.Next() {
		c, err := scanCard(rows)
		if err != nil {
			return nil, apperr.Storage("scan card", err)
		}
		cards = append(cards, c)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Storage("list cards", err)
	}
	rows.Close()

	if err := r.attachStock(ctx, cards); err != nil {
		return nil, err
	}
	return cards, nil
}

// attachStock fills DataContent and StockRemaining from unclaimed lines.
func (r *cardPostgres) attachStock(ctx context.Context, cards []*Card) error {
	byID := make(map[int64]*Card)
	for _, c := range cards {
		if c.Type == CardData {
			byID[c.ID] = c
		}
	}
	if len(byID) == 0 {
		return nil
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT card_id, content FROM card_stock_lines
		WHERE order_id IS NULL ORDER BY card_id ASC, line_no ASC`)
	if err != nil {
		return apperr.Storage("load stock", err)
	}
	defer rows.Close()

	lines := make(map[int64][]string)
	for rows.Next() {
		var cardID int64
		var content string
		if err := rows.Scan(&cardID, &content); err != nil {
			return apperr.Storage("load stock", err)
		}
		if _, ok := byID[cardID]; ok {
			lines[cardID] = append(lines[cardID], content)
		}
	}
	if err := rows.Err(); err != nil {
		return apperr.Storage("load stock", err)
	}
	for id, c := range byID {
		c.DataContent = strings.Join(lines[id], "\n")
		c.StockRemaining = len(lines[id])
	}
	return nil
}

func insertLines(ctx context.Context, tx *sql.Tx, cardID int64, after int, stock []string) error {
	for i, content := range stock {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO card_stock_lines (card_id, line_no, content) VALUES ($1, $2, $3)`,
			cardID, after+i+1, content); err != nil {
			return apperr.Storage("insert stock", err)
		}
	}
	return nil
}

func encodeAPIConfig(cfg *APIConfig) (string, error) {
	if cfg == nil {
		return "", nil
	}
	b, err := json.Marshal(cfg)
	return string(b), err
}

func now() time.Time { return time.Now().UTC().Truncate(time.Microsecond) }
