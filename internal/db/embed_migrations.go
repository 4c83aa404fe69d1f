package db

import "embed"

// MigrationFS embeds the SQL migration files for the session and audit
// tables. Used by the migrate runner (cmd/migrate).
//
//go:embed migrations/*.sql
var MigrationFS embed.FS
