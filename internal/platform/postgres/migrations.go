package postgres

import "embed"

// Migrations holds the embedded goose migration files so the server
// binary can apply the schema without an on-disk migrations
// directory.
//
//go:embed migrations/*.sql
var Migrations embed.FS
