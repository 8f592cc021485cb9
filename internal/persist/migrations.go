package persist

import (
	"context"
	"embed"
	"fmt"
	"io/fs"

	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"go.uber.org/zap"
)

//go:embed migrations/*.sql
var embedded embed.FS

// journalMigrations returns the journal schema migrations rooted at their
// own directory, the layout goose expects.
func journalMigrations() (fs.FS, error) {
	return fs.Sub(embedded, "migrations")
}

// Migrate brings the prediction journal schema up to date.
func (db *DB) Migrate(ctx context.Context) error {
	fsys, err := journalMigrations()
	if err != nil {
		return fmt.Errorf("journal migrations: %w", err)
	}
	sqlDB := stdlib.OpenDBFromPool(db.Pool)
	defer sqlDB.Close()

	provider, err := goose.NewProvider(goose.DialectPostgres, sqlDB, fsys)
	if err != nil {
		return fmt.Errorf("journal migrations: %w", err)
	}
	results, err := provider.Up(ctx)
	if err != nil {
		return fmt.Errorf("run journal migrations: %w", err)
	}
	for _, r := range results {
		db.log.Info("journal migration applied",
			zap.Int64("version", r.Source.Version),
			zap.String("file", r.Source.Path),
			zap.Duration("took", r.Duration),
		)
	}
	return nil
}
