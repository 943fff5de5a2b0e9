// Package database provides the SQLite store behind the item value cache.
//
// It manages:
//   - Opening the database with WAL mode and a busy timeout
//   - Forward-only schema migrations read from any fs.FS
//   - A transaction helper
//
// Database files are created with 0600 permissions. All queries use
// parameterised statements.
//
// Usage:
//
//	db, err := database.Open(cfg.Database)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer db.Close()
//
//	if _, err := db.Migrate(ctx, migrations.FS); err != nil {
//	    log.Fatal(err)
//	}
//
// Migration files are named YYYYMMDD_HHMMSS_description.up.sql. Matching
// .down.sql files may sit beside them for manual rollback; Migrate ignores
// them.
package database
