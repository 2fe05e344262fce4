package sqlstore

import (
	"embed"
	"io/fs"
)

//go:embed migrations/sqlite/*.sql migrations/postgres/*.sql
var migrationFiles embed.FS

// MigrationFS returns the embedded migration files for the dialect.
func MigrationFS(d Dialect) fs.FS {
	dir := "migrations/sqlite"
	if d == DialectPostgres {
		dir = "migrations/postgres"
	}
	sub, err := fs.Sub(migrationFiles, dir)
	if err != nil {
		panic(err)
	}
	return sub
}
