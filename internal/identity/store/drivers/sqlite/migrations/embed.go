package migrations

import "embed"

// Migrations holds the schema applied by Store.ApplyMigrations.
//
//go:embed *.sql
var Migrations embed.FS
