// Package migrations embeds the SQL schema for the SQLite graph store.
package migrations

import "embed"

// FS holds every *.sql file in this directory. Pass it to
// database.DB.Migrate with dir ".".
//
//go:embed *.sql
var FS embed.FS
