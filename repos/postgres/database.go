package postgres

import (
	"database/sql"
	"errors"
	"fmt"
	"net/http"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	migrate "github.com/rubenv/sql-migrate"

	"github.com/juho05/log"

	safejobauth "github.com/safejob-nl/auth"
	"github.com/safejob-nl/auth/config"
	"github.com/safejob-nl/auth/repos"
)

type DB struct {
	db *sqlx.DB
}

func ConstructDSN(dbName, host string, port int, user, password string) string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable", user, password, host, port, dbName)
}

func autoMigrate(db *sql.DB) error {
	migrations := &migrate.HttpFileSystemMigrationSource{
		FileSystem: http.FS(safejobauth.PostgresMigrationsFS),
	}
	log.Trace("Migrating database...")
	n, err := migrate.Exec(db, "postgres", migrations, migrate.Up)
	log.Tracef("Applied %d migrations!", n)
	if err != nil {
		return err
	}
	return nil
}

func Connect(dsn string) (repos.DB, error) {
	log.Trace("Connecting to Postgres database...")
	db, err := sqlx.Connect("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("connect DB: %w", err)
	}

	if config.AutoMigrate() {
		err = autoMigrate(db.DB)
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("auto migrate: %w", err)
		}
	}

	return &DB{
		db: db,
	}, nil
}

func (d *DB) Close() error {
	return d.db.Close()
}

func repoErrResult(format string, result sql.Result, err error) error {
	if err == nil {
		if rows, err := result.RowsAffected(); err == nil && rows == 0 {
			return fmt.Errorf(format, repos.ErrNoRecord)
		}
		return nil
	}
	return repoErr(format, err)
}

func repoErr(format string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		err = repos.ErrNoRecord
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
		err = repos.ErrExists
	}
	return fmt.Errorf(format, err)
}
