package migrations

import (
	"context"
	"fmt"
	"io/fs"
	"strings"

	settings "github.com/goliatone/go-account-settings"
)

const (
	DialectPostgres = "postgres"
	DialectSQLite   = "sqlite"
)

const migrationsDir = "data/sql/migrations"

// Source is the migration tree of one dialect. Postgres files live at the
// root of the tree, sqlite alternatives under sqlite/.
type Source struct {
	Dialect string
	Path    string
	FS      fs.FS
}

// SourceFor resolves the embedded migrations for dialect.
func SourceFor(dialect string) (Source, error) {
	return sourceFrom(settings.GetMigrationsFS(), dialect)
}

func sourceFrom(root fs.FS, dialect string) (Source, error) {
	if root == nil {
		return Source{}, fmt.Errorf("migrations: filesystem is required")
	}
	base, err := fs.Sub(root, migrationsDir)
	if err != nil {
		return Source{}, fmt.Errorf("migrations: resolve %s: %w", migrationsDir, err)
	}

	src := Source{Dialect: strings.TrimSpace(strings.ToLower(dialect))}
	switch src.Dialect {
	case DialectPostgres:
		src.Path = migrationsDir
		src.FS = base
	case DialectSQLite:
		src.Path = migrationsDir + "/sqlite"
		if src.FS, err = fs.Sub(base, "sqlite"); err != nil {
			return Source{}, fmt.Errorf("migrations: resolve %s: %w", src.Path, err)
		}
	default:
		return Source{}, fmt.Errorf("migrations: unsupported dialect %q", dialect)
	}

	matches, err := fs.Glob(src.FS, "*.up.sql")
	if err != nil {
		return Source{}, fmt.Errorf("migrations: glob %s: %w", src.Path, err)
	}
	if len(matches) == 0 {
		return Source{}, fmt.Errorf("migrations: %s has no *.up.sql files", src.Path)
	}
	return src, nil
}

// DialectForDriver maps a database/sql driver name to its migration dialect.
func DialectForDriver(driver string) (string, error) {
	switch strings.TrimSpace(strings.ToLower(driver)) {
	case "postgres", "pgx", "pg":
		return DialectPostgres, nil
	case "sqlite", "sqlite3":
		return DialectSQLite, nil
	default:
		return "", fmt.Errorf("migrations: unsupported driver %q", driver)
	}
}

// RegisterDialect hands the migration tree for dialect to registerFS, e.g. a
// go-persistence-bun client's RegisterSQLMigrations.
func RegisterDialect(ctx context.Context, dialect string, registerFS func(fsys fs.FS)) (Source, error) {
	if registerFS == nil {
		return Source{}, fmt.Errorf("migrations: register function is required")
	}
	if ctx != nil {
		if err := ctx.Err(); err != nil {
			return Source{}, err
		}
	}
	src, err := SourceFor(dialect)
	if err != nil {
		return Source{}, err
	}
	registerFS(src.FS)
	return src, nil
}
