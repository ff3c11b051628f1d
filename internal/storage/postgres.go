package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"

	"jax-research-platform/internal/core"
	"jax-research-platform/libs/database"
	"jax-research-platform/libs/observability"
)

// schemaVersion is embedded in every table name; bumping it invalidates all
// prior data rather than attempting an in-place migration (schema
// migrations are explicitly out of scope for this platform).
const schemaVersion = "v1"

// Postgres is the production Store, backed by a pooled pgx connection via
// libs/database.
type Postgres struct {
	db *database.DB
}

// NewPostgres wraps an already-connected database.DB. Call EnsureSchema once
// at startup to create the tables this driver depends on.
func NewPostgres(db *database.DB) *Postgres {
	return &Postgres{db: db}
}

// EnsureSchema creates the object/candle/trade/span tables if they do not
// already exist.
func (p *Postgres) EnsureSchema(ctx context.Context) error {
	stmts := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS objects_%s (
			shard TEXT NOT NULL,
			key TEXT NOT NULL,
			value JSONB NOT NULL,
			PRIMARY KEY (shard, key)
		)`, schemaVersion),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS candles_%s (
			shard TEXT NOT NULL,
			key TEXT NOT NULL,
			time BIGINT NOT NULL,
			open NUMERIC NOT NULL,
			high NUMERIC NOT NULL,
			low NUMERIC NOT NULL,
			close NUMERIC NOT NULL,
			volume NUMERIC NOT NULL,
			closed BOOLEAN NOT NULL,
			PRIMARY KEY (shard, key, time)
		)`, schemaVersion),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS candle_spans_%s (
			shard TEXT NOT NULL,
			key TEXT NOT NULL,
			start_time BIGINT NOT NULL,
			end_time BIGINT NOT NULL,
			PRIMARY KEY (shard, key, start_time)
		)`, schemaVersion),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS trades_%s (
			shard TEXT NOT NULL,
			key TEXT NOT NULL,
			time BIGINT NOT NULL,
			price NUMERIC NOT NULL,
			size NUMERIC NOT NULL,
			PRIMARY KEY (shard, key, time)
		)`, schemaVersion),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS trade_spans_%s (
			shard TEXT NOT NULL,
			key TEXT NOT NULL,
			start_time BIGINT NOT NULL,
			end_time BIGINT NOT NULL,
			PRIMARY KEY (shard, key, start_time)
		)`, schemaVersion),
	}
	for _, stmt := range stmts {
		if _, err := p.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("storage: ensure schema: %w", err)
		}
	}
	return nil
}

func (p *Postgres) GetObject(ctx context.Context, shard, key string, dst any) error {
	row := p.db.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT value FROM objects_%s WHERE shard = $1 AND key = $2`, schemaVersion),
		shard, key)
	var raw []byte
	if err := row.Scan(&raw); err != nil {
		if err == sql.ErrNoRows {
			return ErrNotFound
		}
		return fmt.Errorf("storage: get object %s/%s: %w", shard, key, err)
	}
	return json.Unmarshal(raw, dst)
}

func (p *Postgres) SetObject(ctx context.Context, shard, key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("storage: marshal object %s/%s: %w", shard, key, err)
	}
	_, err = p.db.ExecContext(ctx, fmt.Sprintf(`
		INSERT INTO objects_%s (shard, key, value) VALUES ($1, $2, $3)
		ON CONFLICT (shard, key) DO UPDATE SET value = EXCLUDED.value
	`, schemaVersion), shard, key, raw)
	if err != nil {
		return fmt.Errorf("storage: set object %s/%s: %w", shard, key, err)
	}
	return nil
}

func (p *Postgres) StreamSpans(ctx context.Context, shard, key string, start, end core.Timestamp) ([]core.Span, error) {
	rows, err := p.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT start_time, end_time FROM candle_spans_%s
		WHERE shard = $1 AND key = $2 AND start_time < $4 AND end_time > $3
		ORDER BY start_time
	`, schemaVersion), shard, key, start, end)
	if err != nil {
		return nil, fmt.Errorf("storage: stream spans %s/%s: %w", shard, key, err)
	}
	defer rows.Close()

	var spans []core.Span
	for rows.Next() {
		var s core.Span
		if err := rows.Scan(&s.Start, &s.End); err != nil {
			return nil, fmt.Errorf("storage: scan span: %w", err)
		}
		spans = append(spans, s)
	}
	return intersectSpans(spans, start, end), rows.Err()
}

func (p *Postgres) StreamCandles(ctx context.Context, shard, key string, start, end core.Timestamp) ([]core.Candle, error) {
	rows, err := p.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT time, open, high, low, close, volume, closed FROM candles_%s
		WHERE shard = $1 AND key = $2 AND time >= $3 AND time < $4
		ORDER BY time
	`, schemaVersion), shard, key, start, end)
	if err != nil {
		return nil, fmt.Errorf("storage: stream candles %s/%s: %w", shard, key, err)
	}
	defer rows.Close()

	var out []core.Candle
	for rows.Next() {
		var c core.Candle
		var open, high, low, close, volume string
		if err := rows.Scan(&c.Time, &open, &high, &low, &close, &volume, &c.Closed); err != nil {
			return nil, fmt.Errorf("storage: scan candle: %w", err)
		}
		if c.Open, err = parseDecimal(open); err != nil {
			return nil, err
		}
		if c.High, err = parseDecimal(high); err != nil {
			return nil, err
		}
		if c.Low, err = parseDecimal(low); err != nil {
			return nil, err
		}
		if c.Close, err = parseDecimal(close); err != nil {
			return nil, err
		}
		if c.Volume, err = parseDecimal(volume); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (p *Postgres) StreamTrades(ctx context.Context, shard, key string, start, end core.Timestamp) ([]core.Trade, error) {
	rows, err := p.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT time, price, size FROM trades_%s
		WHERE shard = $1 AND key = $2 AND time >= $3 AND time < $4
		ORDER BY time
	`, schemaVersion), shard, key, start, end)
	if err != nil {
		return nil, fmt.Errorf("storage: stream trades %s/%s: %w", shard, key, err)
	}
	defer rows.Close()

	var out []core.Trade
	for rows.Next() {
		var t core.Trade
		var price, size string
		if err := rows.Scan(&t.Time, &price, &size); err != nil {
			return nil, fmt.Errorf("storage: scan trade: %w", err)
		}
		if t.Price, err = parseDecimal(price); err != nil {
			return nil, err
		}
		if t.Size, err = parseDecimal(size); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (p *Postgres) StoreCandlesAndSpan(ctx context.Context, shard, key string, candles []core.Candle, span core.Span) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("storage: begin tx: %w", err)
	}
	defer tx.Rollback()

	var existing int
	row := tx.QueryRowContext(ctx, fmt.Sprintf(`
		SELECT count(*) FROM candle_spans_%s
		WHERE shard = $1 AND key = $2 AND start_time < $4 AND end_time > $3
	`, schemaVersion), shard, key, span.Start, span.End)
	if err := row.Scan(&existing); err != nil {
		return fmt.Errorf("storage: check span overlap: %w", err)
	}
	if existing > 0 {
		return fmt.Errorf("%w: span [%d,%d) overlaps an existing span", core.ErrConsistency, span.Start, span.End)
	}
	for i := 1; i < len(candles); i++ {
		if candles[i].Time <= candles[i-1].Time {
			return fmt.Errorf("%w: candles out of order at index %d", core.ErrConsistency, i)
		}
	}

	for _, c := range candles {
		if c.Time < span.Start || c.Time >= span.End {
			return fmt.Errorf("%w: candle time %d outside span [%d,%d)", core.ErrConsistency, c.Time, span.Start, span.End)
		}
		_, err := tx.ExecContext(ctx, fmt.Sprintf(`
			INSERT INTO candles_%s (shard, key, time, open, high, low, close, volume, closed)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
			ON CONFLICT (shard, key, time) DO NOTHING
		`, schemaVersion), shard, key, c.Time, c.Open.String(), c.High.String(), c.Low.String(), c.Close.String(), c.Volume.String(), c.Closed)
		if err != nil {
			return fmt.Errorf("storage: insert candle: %w", err)
		}
	}

	_, err = tx.ExecContext(ctx, fmt.Sprintf(`
		INSERT INTO candle_spans_%s (shard, key, start_time, end_time) VALUES ($1,$2,$3,$4)
	`, schemaVersion), shard, key, span.Start, span.End)
	if err != nil {
		return fmt.Errorf("storage: insert span: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("storage: commit: %w", err)
	}
	observability.LogSpanStored(ctx, shard, key, span.Start, span.End, len(candles))
	observability.RecordSpanFlush(ctx, shard, key, len(candles), nil)
	return nil
}

func (p *Postgres) StoreTradesAndSpan(ctx context.Context, shard, key string, trades []core.Trade, span core.Span) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("storage: begin tx: %w", err)
	}
	defer tx.Rollback()

	var existing int
	row := tx.QueryRowContext(ctx, fmt.Sprintf(`
		SELECT count(*) FROM trade_spans_%s
		WHERE shard = $1 AND key = $2 AND start_time < $4 AND end_time > $3
	`, schemaVersion), shard, key, span.Start, span.End)
	if err := row.Scan(&existing); err != nil {
		return fmt.Errorf("storage: check span overlap: %w", err)
	}
	if existing > 0 {
		return fmt.Errorf("%w: span [%d,%d) overlaps an existing span", core.ErrConsistency, span.Start, span.End)
	}
	for i := 1; i < len(trades); i++ {
		if trades[i].Time < trades[i-1].Time {
			return fmt.Errorf("%w: trades out of order at index %d", core.ErrConsistency, i)
		}
	}

	for _, t := range trades {
		if t.Time < span.Start || t.Time >= span.End {
			return fmt.Errorf("%w: trade time %d outside span [%d,%d)", core.ErrConsistency, t.Time, span.Start, span.End)
		}
		_, err := tx.ExecContext(ctx, fmt.Sprintf(`
			INSERT INTO trades_%s (shard, key, time, price, size)
			VALUES ($1,$2,$3,$4,$5)
			ON CONFLICT (shard, key, time) DO NOTHING
		`, schemaVersion), shard, key, t.Time, t.Price.String(), t.Size.String())
		if err != nil {
			return fmt.Errorf("storage: insert trade: %w", err)
		}
	}

	_, err = tx.ExecContext(ctx, fmt.Sprintf(`
		INSERT INTO trade_spans_%s (shard, key, start_time, end_time) VALUES ($1,$2,$3,$4)
	`, schemaVersion), shard, key, span.Start, span.End)
	if err != nil {
		return fmt.Errorf("storage: insert span: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("storage: commit: %w", err)
	}
	observability.LogSpanStored(ctx, shard, key, span.Start, span.End, len(trades))
	observability.RecordSpanFlush(ctx, shard, key, len(trades), nil)
	return nil
}

func parseDecimal(s string) (decimal.Decimal, error) {
	v, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("storage: parse decimal %q: %w", s, err)
	}
	return v, nil
}

var _ Store = (*Postgres)(nil)
