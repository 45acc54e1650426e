// Package migrations embeds the SQL schema migrations into the binary so
// the service can migrate a fresh database without files on disk.
package migrations

import (
	"embed"

	"github.com/nerrad567/rfcontrol-core/internal/infrastructure/database"
)

//go:embed *.sql
var migrationsFS embed.FS

func init() {
	database.MigrationsFS = migrationsFS
	database.MigrationsDir = "."
}
