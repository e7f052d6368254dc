package cardservice

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/mysqldialect"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	_ "modernc.org/sqlite"
)

//go:embed migrations
var embeddedMigrations embed.FS

const (
	DBMemory   = "mem"
	DBSQLite   = "sqlite"
	DBPostgres = "postgres"
	DBMySQL    = "mysql"
)

// OpenRepository builds the repository for the configured backend. SQL
// backends are migrated before the repository is returned.
func OpenRepository(ctx context.Context, cfg DBConfig) (*Repository, error) {
	if cfg.Type == DBMemory {
		return NewRepository(), nil
	}
	db, err := OpenDB(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return NewSQLRepository(db), nil
}

// OpenDB opens, tunes, pings and migrates the database behind cfg.
func OpenDB(ctx context.Context, cfg DBConfig) (*bun.DB, error) {
	switch cfg.Type {
	case DBSQLite, DBPostgres, DBMySQL:
	default:
		return nil, fmt.Errorf("unsupported db type %q (want mem, sqlite, postgres or mysql)", cfg.Type)
	}
	if cfg.DSN == "" {
		return nil, fmt.Errorf("db.dsn is required for %s backend", cfg.Type)
	}

	sqlDB, err := sql.Open(cfg.Type, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", cfg.Type, err)
	}

	maxOpen, maxIdle, lifetime := cfg.MaxOpenConns, cfg.MaxIdleConns, 5*time.Minute
	// Every connection to ":memory:" is a separate database, so keep exactly one forever.
	if cfg.Type == DBSQLite && strings.Contains(cfg.DSN, ":memory:") {
		maxOpen, maxIdle, lifetime = 1, 1, 0
	}
	sqlDB.SetMaxOpenConns(maxOpen)
	sqlDB.SetMaxIdleConns(maxIdle)
	sqlDB.SetConnMaxLifetime(lifetime)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := sqlDB.PingContext(pingCtx); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("ping %s: %w", cfg.Type, err)
	}

	if err := Migrate(ctx, sqlDB, cfg.Type); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("migrate %s: %w", cfg.Type, err)
	}

	return newBunDB(sqlDB, cfg.Type), nil
}

func newBunDB(sqlDB *sql.DB, dbType string) *bun.DB {
	switch dbType {
	case DBPostgres:
		return bun.NewDB(sqlDB, pgdialect.New())
	case DBMySQL:
		return bun.NewDB(sqlDB, mysqldialect.New())
	default:
		return bun.NewDB(sqlDB, sqlitedialect.New())
	}
}

// Migrate applies the embedded migrations for dbType that are not yet
// recorded in schema_migrations, each in its own transaction.
func Migrate(ctx context.Context, db *sql.DB, dbType string) error {
	dir := path.Join("migrations", dbType)
	entries, err := fs.ReadDir(embeddedMigrations, dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("no migrations for %s", dbType)
		}
		return fmt.Errorf("reading migrations: %w", err)
	}

	var ups []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".up.sql") {
			ups = append(ups, e.Name())
		}
	}
	sort.Strings(ups)

	createTable := `CREATE TABLE IF NOT EXISTS schema_migrations (version TEXT PRIMARY KEY, applied_at TIMESTAMP NOT NULL)`
	if dbType == DBMySQL {
		createTable = `CREATE TABLE IF NOT EXISTS schema_migrations (version VARCHAR(191) PRIMARY KEY, applied_at DATETIME(6) NOT NULL)`
	}
	if _, err := db.ExecContext(ctx, createTable); err != nil {
		return fmt.Errorf("creating schema_migrations: %w", err)
	}

	selectQ := "SELECT 1 FROM schema_migrations WHERE version = ?"
	insertQ := "INSERT INTO schema_migrations(version, applied_at) VALUES(?, ?)"
	if dbType == DBPostgres {
		selectQ = "SELECT 1 FROM schema_migrations WHERE version = $1"
		insertQ = "INSERT INTO schema_migrations(version, applied_at) VALUES($1, $2)"
	}

	for _, name := range ups {
		version := strings.TrimSuffix(name, ".up.sql")

		var one int
		err := db.QueryRowContext(ctx, selectQ, version).Scan(&one)
		if err == nil {
			continue
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("checking migration %s: %w", version, err)
		}

		data, err := embeddedMigrations.ReadFile(path.Join(dir, name))
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}

		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin migration %s: %w", version, err)
		}
		for _, stmt := range splitStatements(string(data)) {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				_ = tx.Rollback()
				return fmt.Errorf("executing migration %s: %w", version, err)
			}
		}
		if _, err := tx.ExecContext(ctx, insertQ, version, time.Now().UTC()); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("recording migration %s: %w", version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %s: %w", version, err)
		}
	}
	return nil
}

// splitStatements breaks a migration file on ';'. Migration files must not
// contain semicolons inside literals.
func splitStatements(script string) []string {
	var out []string
	for _, s := range strings.Split(script, ";") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
