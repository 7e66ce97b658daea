package db

import "embed"

// SchemaDir is the directory inside Schema holding the local table definitions.
const SchemaDir = "schema"

//go:embed schema/*.sql
var Schema embed.FS
