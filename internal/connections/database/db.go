package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"delivery-marketplace/internal/common/apperr"
	"delivery-marketplace/internal/common/logger"
	"delivery-marketplace/internal/config"
)

func ConnectDB(ctx context.Context, cfg config.DatabaseConfig, lg *logger.Logger) (*sql.DB, error) {
	const (
		maxRetries = 10
		retryDelay = 2 * time.Second
		pingTTL    = 5 * time.Second
	)

	var db *sql.DB
	var err error

	for i := 1; i <= maxRetries; i++ {
		db, err = sql.Open("pgx", cfg.DSN())
		if err == nil {
			pctx, cancel := context.WithTimeout(ctx, pingTTL)
			err = db.PingContext(pctx)
			cancel()
			if err == nil {
				db.SetMaxOpenConns(25)
				db.SetConnMaxIdleTime(5 * time.Minute)
				lg.Info("db_connected", map[string]any{"host": cfg.Host, "attempt": i})
				return db, nil
			}
			_ = db.Close()
		}
		lg.Warn("db_connect_retry", map[string]any{"attempt": i, "error": err.Error()})

		select {
		case <-time.After(retryDelay):
		case <-ctx.Done():
			return nil, fmt.Errorf("db connect canceled: %w", ctx.Err())
		}
	}

	return nil, fmt.Errorf("database unreachable after %d attempts: %w", maxRetries, err)
}

// WithTx runs fn inside a transaction. Any error from fn rolls back.
func WithTx(ctx context.Context, db *sql.DB, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

const (
	codeUniqueViolation   = "23505"
	codeCheckViolation    = "23514"
	codeNotNullViolation  = "23502"
	codeForeignKey        = "23503"
	codeInvalidTextRepr   = "22P02"
	codeNumericOutOfRange = "22003"
)

// Translate converts store errors into application error kinds. what names the
// entity for NotFound messages.
func Translate(err error, what string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return apperr.NotFound("%s not found", what)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case codeUniqueViolation:
			return apperr.Conflict("%s already exists (%s)", what, pgErr.ConstraintName)
		case codeForeignKey:
			return apperr.NotFound("%s references a missing row (%s)", what, pgErr.ConstraintName)
		case codeCheckViolation, codeNotNullViolation, codeInvalidTextRepr, codeNumericOutOfRange:
			return apperr.InvalidArgument("%s: %s", what, pgErr.Message)
		}
	}
	return err
}
