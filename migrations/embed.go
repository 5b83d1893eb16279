// Package migrations embeds the goose SQL migrations so the binary and tests
// can migrate regardless of the working directory.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
