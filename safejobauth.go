package safejobauth

import (
	"embed"
	"io/fs"

	"github.com/juho05/log"
)

// Version is reported by the health endpoint.
const Version = "0.1.0"

//go:embed emails
var emailFS embed.FS

//go:embed migrations/sqlite
var sqliteMigrationsFS embed.FS

//go:embed migrations/postgres
var postgresMigrationsFS embed.FS

var (
	EmailFS              fs.FS
	SQLiteMigrationsFS   fs.FS
	PostgresMigrationsFS fs.FS
)

func init() {
	var err error
	EmailFS, err = fs.Sub(emailFS, "emails")
	if err != nil {
		log.Fatal(err)
	}
	SQLiteMigrationsFS, err = fs.Sub(sqliteMigrationsFS, "migrations/sqlite")
	if err != nil {
		log.Fatal(err)
	}
	PostgresMigrationsFS, err = fs.Sub(postgresMigrationsFS, "migrations/postgres")
	if err != nil {
		log.Fatal(err)
	}
}
