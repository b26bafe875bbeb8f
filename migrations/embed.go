// Package migrations embeds the SQL schema migrations into the binary so the
// controller can migrate its database without the .sql files on disk.
package migrations

import "embed"

// FS holds every YYYYMMDD_HHMMSS_name.{up,down}.sql file in this directory.
//
//go:embed *.sql
var FS embed.FS
