// Package migration applies numbered SQL migration files to SQLite databases.
//
// Migration files are read from an fs.FS, usually an embedded directory, and
// follow the naming convention {version}_{description}.sql (for example
// "001_initial_schema.sql"). Each file runs in its own transaction and is
// recorded in the schema_migrations table together with its checksum, so a
// file that was edited after being applied is detected on the next run.
//
// Example usage:
//
//	manager := migration.NewMigrationManager(
//		migration.NewFileScanner(migrationFS),
//		migration.NewSQLiteExecutor(db),
//		logger,
//	)
//	if err := manager.RunMigrations(ctx); err != nil {
//		return err
//	}
package migration
