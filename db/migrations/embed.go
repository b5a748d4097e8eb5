// Package migrations embeds the schema for each supported SQL engine.
package migrations

import "embed"

// Postgres holds the golang-migrate files for the postgres store.
//
//go:embed postgres/*.sql
var Postgres embed.FS

// SQLite holds the golang-migrate files for the sqlite store.
//
//go:embed sqlite/*.sql
var SQLite embed.FS
