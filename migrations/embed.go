// Package migrations embeds the SQL schema files into the binary.
//
// Importing this package (for its side effect) registers the files with the
// database package so that DB.Migrate can apply them.
package migrations

import (
	"embed"

	"github.com/nerrad567/gray-logic-huebridge/internal/infrastructure/database"
)

//go:embed *.sql
var migrationsFS embed.FS

func init() {
	database.MigrationsFS = migrationsFS
	database.MigrationsDir = "."
}
