package service

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"

	apperrors "github.com/allisson/vault/internal/errors"
	leaseDomain "github.com/allisson/vault/internal/lease/domain"
)

// connectTimeout bounds the connection attempt to a target database.
const connectTimeout = 10 * time.Second

// Provisioner creates and drops credentials on target databases.
type Provisioner interface {
	// CreateUser creates the backend user and grants it the lease privileges.
	CreateUser(ctx context.Context, config leaseDomain.BackendConfig, username, password string) error

	// DropUser removes the backend user.
	DropUser(ctx context.Context, config leaseDomain.BackendConfig, username string) error
}

// sqlProvisioner opens a short-lived admin connection per operation; nothing
// is pooled across leases.
type sqlProvisioner struct{}

// NewSQLProvisioner creates a Provisioner backed by per-operation database
// connections.
func NewSQLProvisioner() Provisioner {
	return &sqlProvisioner{}
}

// CreateUser provisions the lease user on the target database.
func (s *sqlProvisioner) CreateUser(
	ctx context.Context,
	config leaseDomain.BackendConfig,
	username, password string,
) error {
	switch config.BackendType {
	case leaseDomain.BackendPostgreSQL:
		return s.execute(ctx, config, []string{
			fmt.Sprintf(`CREATE ROLE %s WITH LOGIN PASSWORD %s`,
				pgIdent(username), pgLiteral(password)),
			fmt.Sprintf(`GRANT CONNECT ON DATABASE %s TO %s`,
				pgIdent(config.Database), pgIdent(username)),
			fmt.Sprintf(`GRANT USAGE ON SCHEMA public TO %s`, pgIdent(username)),
		})
	case leaseDomain.BackendMySQL:
		return s.execute(ctx, config, []string{
			fmt.Sprintf(`CREATE USER '%s'@'%%' IDENTIFIED BY '%s'`,
				username, mysqlEscape(password)),
			fmt.Sprintf("GRANT SELECT, INSERT, UPDATE, DELETE ON `%s`.* TO '%s'@'%%'",
				config.Database, username),
			`FLUSH PRIVILEGES`,
		})
	default:
		return leaseDomain.ErrUnsupportedBackend
	}
}

// DropUser removes the lease user from the target database.
func (s *sqlProvisioner) DropUser(
	ctx context.Context,
	config leaseDomain.BackendConfig,
	username string,
) error {
	switch config.BackendType {
	case leaseDomain.BackendPostgreSQL:
		return s.execute(ctx, config, []string{
			fmt.Sprintf(`DROP ROLE IF EXISTS %s`, pgIdent(username)),
		})
	case leaseDomain.BackendMySQL:
		return s.execute(ctx, config, []string{
			fmt.Sprintf(`DROP USER IF EXISTS '%s'@'%%'`, username),
			`FLUSH PRIVILEGES`,
		})
	default:
		return leaseDomain.ErrUnsupportedBackend
	}
}

// execute opens an admin connection, runs the statements in order and closes
// the connection on every exit path.
func (s *sqlProvisioner) execute(
	ctx context.Context,
	config leaseDomain.BackendConfig,
	statements []string,
) error {
	driver, dsn, err := adminDSN(config)
	if err != nil {
		return err
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return apperrors.Wrap(err, "failed to open backend connection")
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return apperrors.Wrap(err, "failed to reach backend database")
	}

	for _, statement := range statements {
		if _, err := db.ExecContext(ctx, statement); err != nil {
			return apperrors.Wrap(err, "failed to execute backend statement")
		}
	}
	return nil
}

func adminDSN(config leaseDomain.BackendConfig) (driver, dsn string, err error) {
	switch config.BackendType {
	case leaseDomain.BackendPostgreSQL:
		return "postgres", fmt.Sprintf(
			"host=%s port=%s dbname=%s user=%s password=%s sslmode=disable connect_timeout=10",
			config.Host, config.Port, config.Database, config.AdminUser, config.AdminPassword,
		), nil
	case leaseDomain.BackendMySQL:
		return "mysql", fmt.Sprintf(
			"%s:%s@tcp(%s:%s)/%s?timeout=10s",
			config.AdminUser, config.AdminPassword, config.Host, config.Port, config.Database,
		), nil
	default:
		return "", "", leaseDomain.ErrUnsupportedBackend
	}
}

// pgIdent double-quotes a PostgreSQL identifier.
func pgIdent(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

// pgLiteral single-quotes a PostgreSQL string literal.
func pgLiteral(s string) string {
	return `'` + strings.ReplaceAll(s, `'`, `''`) + `'`
}

// mysqlEscape escapes backslashes and single quotes for a MySQL literal.
func mysqlEscape(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return strings.ReplaceAll(s, `'`, `\'`)
}
