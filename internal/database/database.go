package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/mysqldialect"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/schema"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/hatch/internal/config"
)

const pingTimeout = 5 * time.Second

// Connections bundles writer and reader bun instances. Reader equals Writer
// when no replica is configured.
type Connections struct {
	Writer *bun.DB
	Reader *bun.DB
}

// Module registers the database connections with Fx.
var Module = fx.Provide(New)

// New establishes writer and reader pools backed by Bun.
func New(lc fx.Lifecycle, cfg config.Config, logger *zap.Logger) (*Connections, error) {
	dial, err := selectDialect(cfg.Database.Driver)
	if err != nil {
		return nil, err
	}

	open := func(role, dsn string) (*bun.DB, error) {
		sqlDB, err := openSQLDB(cfg.Database.Driver, dsn)
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", role, err)
		}
		applyPoolSettings(sqlDB, cfg.Database)
		db := bun.NewDB(sqlDB, dial)
		if cfg.Database.SlowQuery > 0 {
			db.AddQueryHook(&slowQueryHook{role: role, threshold: cfg.Database.SlowQuery, logger: logger})
		}
		return db, nil
	}

	writer, err := open("writer", cfg.Database.WriterDSN)
	if err != nil {
		return nil, err
	}
	conns := &Connections{Writer: writer, Reader: writer}
	if cfg.Database.ReaderDSN != "" && cfg.Database.ReaderDSN != cfg.Database.WriterDSN {
		if conns.Reader, err = open("reader", cfg.Database.ReaderDSN); err != nil {
			return nil, err
		}
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := conns.Ping(ctx); err != nil {
				return err
			}
			logger.Info("database connected",
				zap.String("driver", cfg.Database.Driver),
				zap.Bool("replica", conns.HasReplica()),
			)
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return conns.Close()
		},
	})

	return conns, nil
}

// HasReplica reports whether reads go to a separate pool.
func (c *Connections) HasReplica() bool {
	return c.Reader != c.Writer
}

// Ping checks both pools.
func (c *Connections) Ping(ctx context.Context) error {
	if err := pingContext(ctx, c.Writer); err != nil {
		return fmt.Errorf("ping writer: %w", err)
	}
	if c.HasReplica() {
		if err := pingContext(ctx, c.Reader); err != nil {
			return fmt.Errorf("ping reader: %w", err)
		}
	}
	return nil
}

// Close releases both pools.
func (c *Connections) Close() error {
	var closeErr error
	if err := c.Writer.Close(); err != nil {
		closeErr = fmt.Errorf("close writer: %w", err)
	}
	if c.HasReplica() {
		if err := c.Reader.Close(); err != nil {
			closeErr = errors.Join(closeErr, fmt.Errorf("close reader: %w", err))
		}
	}
	return closeErr
}

func selectDialect(driver string) (schema.Dialect, error) {
	switch driver {
	case "postgres":
		return pgdialect.New(), nil
	case "mysql":
		return mysqldialect.New(), nil
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", driver)
	}
}

func openSQLDB(driver, dsn string) (*sql.DB, error) {
	if dsn == "" {
		return nil, errors.New("empty DSN")
	}

	switch driver {
	case "postgres":
		connector := pgdriver.NewConnector(pgdriver.WithDSN(dsn))
		return sql.OpenDB(connector), nil
	case "mysql":
		normalized, err := mysqlDSN(dsn)
		if err != nil {
			return nil, err
		}
		return sql.Open("mysql", normalized)
	default:
		return nil, fmt.Errorf("unsupported driver: %s", driver)
	}
}

// mysqlDSN forces DATETIME columns to scan into UTC time.Time values.
func mysqlDSN(dsn string) (string, error) {
	parsed, err := mysql.ParseDSN(dsn)
	if err != nil {
		return "", fmt.Errorf("parse mysql dsn: %w", err)
	}
	parsed.ParseTime = true
	parsed.Loc = time.UTC
	return parsed.FormatDSN(), nil
}

func applyPoolSettings(db *sql.DB, cfg config.Database) {
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.MaxConnLifetime > 0 {
		db.SetConnMaxLifetime(cfg.MaxConnLifetime)
	}
}

func pingContext(ctx context.Context, db *bun.DB) error {
	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	return db.DB.PingContext(pingCtx)
}

const maxLoggedQuery = 512

type slowQueryHook struct {
	role      string
	threshold time.Duration
	logger    *zap.Logger
}

func (h *slowQueryHook) BeforeQuery(ctx context.Context, _ *bun.QueryEvent) context.Context {
	return ctx
}

func (h *slowQueryHook) AfterQuery(_ context.Context, event *bun.QueryEvent) {
	elapsed := time.Since(event.StartTime)
	if elapsed < h.threshold {
		return
	}
	query := event.Query
	if len(query) > maxLoggedQuery {
		query = query[:maxLoggedQuery] + "..."
	}
	fields := []zap.Field{
		zap.String("pool", h.role),
		zap.String("operation", event.Operation()),
		zap.Duration("elapsed", elapsed),
		zap.String("query", query),
	}
	if event.Err != nil && !errors.Is(event.Err, sql.ErrNoRows) {
		fields = append(fields, zap.Error(event.Err))
	}
	h.logger.Warn("slow query", fields...)
}
