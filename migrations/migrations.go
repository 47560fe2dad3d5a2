// Package migrations embeds the schema files applied at startup by
// database.RunMigrations.
package migrations

import "embed"

// FS holds every *.up.sql file in this directory.
//
//go:embed *.sql
var FS embed.FS
