// Package migrations embeds the SQL migration files so the server binary
// can run them without external assets.
package migrations

import "embed"

//go:embed postgres/*.sql
var FS embed.FS
