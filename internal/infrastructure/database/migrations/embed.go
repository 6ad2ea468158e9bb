package migrations

import "embed"

// FS holds the PostgreSQL schema, applied in lexical file order.
//
//go:embed *.sql
var FS embed.FS
