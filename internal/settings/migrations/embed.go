// Package migrations embeds the settings database schema.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
