package migration

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"strings"
	"text/tabwriter"

	"github.com/pressly/goose/v3"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/hatch/internal/config"
	"github.com/Additional-Code/hatch/internal/database"
)

//go:embed sql/*.sql
var embedded embed.FS

// Module provides the migrator to Fx.
var Module = fx.Provide(New)

// Migrator applies the embedded schema with a goose provider bound to the
// writer pool.
type Migrator struct {
	provider *goose.Provider
	logger   *zap.Logger
}

// Files returns the embedded migration sources.
func Files() fs.FS {
	sub, err := fs.Sub(embedded, "sql")
	if err != nil {
		panic(err)
	}
	return sub
}

// New constructs a goose-backed migrator.
func New(cfg config.Config, conns *database.Connections, logger *zap.Logger) (*Migrator, error) {
	dialect, err := gooseDialect(cfg.Database.Driver)
	if err != nil {
		return nil, err
	}

	provider, err := goose.NewProvider(dialect, conns.Writer.DB, Files())
	if err != nil {
		return nil, fmt.Errorf("create migration provider: %w", err)
	}

	return &Migrator{provider: provider, logger: logger}, nil
}

// Up applies all pending migrations.
func (m *Migrator) Up(ctx context.Context) error {
	results, err := m.provider.Up(ctx)
	if err != nil {
		if isNoMigrationErr(err) {
			m.logger.Info("no migrations to apply")

			return nil
		}
		return err
	}

	for _, r := range results {
		m.logger.Info("migration applied", zap.String("file", r.Source.Path), zap.Duration("took", r.Duration))
	}
	m.logger.Info("migrations applied", zap.Int("count", len(results)))

	return nil
}

// Down rolls back migrations. Steps <=0 defaults to 1; all=true rolls everything back.
func (m *Migrator) Down(ctx context.Context, steps int, all bool) error {
	if all {
		results, err := m.provider.DownTo(ctx, 0)
		if err != nil && !isNoMigrationErr(err) {
			return err
		}
		m.logger.Info("migrations rolled back", zap.String("mode", "all"), zap.Int("count", len(results)))

		return nil
	}

	if steps <= 0 {
		steps = 1
	}

	rolled := 0
	for ; rolled < steps; rolled++ {
		r, err := m.provider.Down(ctx)
		if err != nil {
			if isNoMigrationErr(err) {
				m.logger.Info("no migrations to rollback")

				break
			}
			return err
		}
		m.logger.Info("migration rolled back", zap.String("file", r.Source.Path))
	}

	m.logger.Info("migrations rolled back", zap.Int("steps", rolled))

	return nil
}

// Status writes the applied state of every migration to w.
func (m *Migrator) Status(ctx context.Context, w io.Writer) error {
	statuses, err := m.provider.Status(ctx)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "VERSION\tSTATE\tAPPLIED AT\tFILE")
	for _, s := range statuses {
		applied := "-"
		if !s.AppliedAt.IsZero() {
			applied = s.AppliedAt.UTC().Format("2006-01-02 15:04:05")
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", s.Source.Version, s.State, applied, s.Source.Path)
	}
	return tw.Flush()
}

// The embedded migrations are written in PostgreSQL syntax.
func gooseDialect(driver string) (goose.Dialect, error) {
	switch driver {
	case "postgres", "pg":
		return goose.DialectPostgres, nil
	default:
		return "", fmt.Errorf("migrations are only provided for postgres, not %s", driver)
	}
}

func isNoMigrationErr(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, goose.ErrNoNextVersion) || errors.Is(err, goose.ErrNoMigrationFiles) {
		return true
	}

	return strings.Contains(err.Error(), "no migrations")
}
