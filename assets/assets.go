// Package assets embeds the files shipped inside the binaries.
package assets

import "embed"

// FS holds the email templates and the database migrations.
//
//go:embed all:templates migrations
var FS embed.FS

const (
	EmailTemplatesDir = "templates/email"
	MigrationsDir     = "migrations"
)

// MigrationsFor returns the migrations directory of a database dialect: postgres or sqlite.
func MigrationsFor(dialect string) string {
	return MigrationsDir + "/" + dialect
}
