// Package migrations embeds the switch's SQL migration files into the
// binary so no schema files need to ship alongside it.
package migrations

import "embed"

// FS holds every .sql file in this directory at its root.
//
//go:embed *.sql
var FS embed.FS
