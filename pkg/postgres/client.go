package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/Adithya-Monish-Kumar-K/sequence-expander/pkg/config"
)

// FormRow is one finalized sequence as stored in the forms table.
type FormRow struct {
	RunID     string
	Line      int
	Start     int
	Form      string
	Suspicion float64
	OKCount   int
	ErrCount  int
}

var formColumns = []string{"run_id", "line", "start", "form", "suspicion", "ok_count", "err_count"}

type Client struct {
	DB  *sql.DB
	cfg config.PostgresConfig
}

func New(cfg config.PostgresConfig) (*Client, error) {
	db, err := sql.Open("postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("opening postgres connection: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging postgres: %w", err)
	}
	return &Client{DB: db, cfg: cfg}, nil
}

func (c *Client) Close() error {
	return c.DB.Close()
}

func (c *Client) InTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := c.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("rolling back transaction after error %v: %w", rbErr, err)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}

	return nil
}

// EnsureFormsTable creates the forms table if it does not exist.
func (c *Client) EnsureFormsTable(ctx context.Context, table string) error {
	query := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		id         BIGSERIAL PRIMARY KEY,
		run_id     UUID NOT NULL,
		line       INTEGER NOT NULL,
		start      INTEGER NOT NULL,
		form       TEXT NOT NULL,
		suspicion  DOUBLE PRECISION NOT NULL,
		ok_count   INTEGER NOT NULL,
		err_count  INTEGER NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`, pq.QuoteIdentifier(table))
	if _, err := c.DB.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("creating table %s: %w", table, err)
	}
	return nil
}

// InsertForms bulk-loads rows with COPY inside a single transaction.
func (c *Client) InsertForms(ctx context.Context, table string, rows []FormRow) error {
	if len(rows) == 0 {
		return nil
	}
	return c.InTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, pq.CopyIn(table, formColumns...))
		if err != nil {
			return fmt.Errorf("preparing copy into %s: %w", table, err)
		}
		for _, r := range rows {
			if _, err := stmt.ExecContext(ctx, r.RunID, r.Line, r.Start, r.Form, r.Suspicion, r.OKCount, r.ErrCount); err != nil {
				stmt.Close()
				return fmt.Errorf("copying row: %w", err)
			}
		}
		if _, err := stmt.ExecContext(ctx); err != nil {
			stmt.Close()
			return fmt.Errorf("flushing copy: %w", err)
		}
		return stmt.Close()
	})
}
