// Package migrate applies the embedded goose migrations on startup.
package migrate

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"go.uber.org/zap"

	"github.com/and161185/txguard/migrations"
)

// Up runs all pending migrations and returns the resulting schema version.
func Up(ctx context.Context, dsn string, log *zap.Logger) (int64, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return 0, err
	}
	defer db.Close()

	p, err := goose.NewProvider(goose.DialectPostgres, db, migrations.FS)
	if err != nil {
		return 0, fmt.Errorf("migrate: provider: %w", err)
	}

	results, err := p.Up(ctx)
	for _, r := range results {
		log.Info("migration applied",
			zap.Int64("version", r.Source.Version),
			zap.String("file", r.Source.Path),
			zap.Duration("took", r.Duration),
		)
	}
	if err != nil {
		return 0, fmt.Errorf("migrate: up: %w", err)
	}
	return p.GetDBVersion(ctx)
}
