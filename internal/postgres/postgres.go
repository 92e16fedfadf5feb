package postgres

import (
	"context"
	"database/sql"
	"log"

	"github.com/flexprice/flexprice/internal/config"
	"github.com/flexprice/flexprice/internal/logger"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"go.uber.org/fx"
)

// DB wraps sqlx.DB to provide transaction management and traced queries.
// There is a single physical connection; reads and writes both go through it,
// since the billing engine's write volume does not warrant a reader replica.
type DB struct {
	*sqlx.DB
	logger *logger.Logger
}

// Querier interface defines all database operations.
// Both *sqlx.DB and *sqlx.Tx implement these methods.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	NamedExec(query string, arg interface{}) (sql.Result, error)
	NamedQuery(query string, arg interface{}) (*sqlx.Rows, error)
	PrepareNamed(query string) (*sqlx.NamedStmt, error)
	Preparex(query string) (*sqlx.Stmt, error)
}

// IClient is what every repository depends on. WithTx lets a service span
// several repository calls in one transaction without passing a *sql.Tx around.
type IClient interface {
	WithTx(ctx context.Context, fn func(context.Context) error) error
	Querier(ctx context.Context) Querier
	Close() error
}

// Module provides an fx.Option wiring the postgres client into the app.
func Module() fx.Option {
	return fx.Options(
		fx.Provide(NewDB, NewClient),
	)
}

// NewDB creates a new DB instance
func NewDB(cfg *config.Configuration, logger *logger.Logger) (*DB, error) {
	dsn := cfg.Postgres.GetDSN()
	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(cfg.Postgres.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Postgres.MaxIdleConns)

	logger.Debugw("connected to postgres", "host", cfg.Postgres.Host, "port", cfg.Postgres.Port)

	return &DB{DB: db, logger: logger}, nil
}

// NewClient adapts *DB to the IClient interface repositories depend on.
func NewClient(db *DB) IClient {
	return db
}

// Close closes the database connection
func (db *DB) Close() error {
	if err := db.DB.Close(); err != nil {
		log.Printf("error closing database: %v", err)
		return err
	}
	return nil
}

// Querier returns either the transaction from context or the base DB, wrapped
// with query tracing.
func (db *DB) Querier(ctx context.Context) Querier {
	if tx, ok := GetTx(ctx); ok {
		return NewTracedQuerier(tx.Tx, db.logger, tx.ID)
	}
	return NewTracedQuerier(db.DB, db.logger, "")
}

// NamedExecContext is a helper method that wraps NamedExec with context
func (db *DB) NamedExecContext(ctx context.Context, query string, arg interface{}) (sql.Result, error) {
	return db.Querier(ctx).NamedExec(query, arg)
}

// NamedQueryContext is a helper method that wraps NamedQuery with context
func (db *DB) NamedQueryContext(ctx context.Context, query string, arg interface{}) (*sqlx.Rows, error) {
	return db.Querier(ctx).NamedQuery(query, arg)
}
