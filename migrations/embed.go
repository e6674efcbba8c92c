// Package migrations embeds the database schema.
package migrations

import _ "embed"

//go:embed 001_init.sql
var Init string
