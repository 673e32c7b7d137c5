package db

import (
	"embed"
	"errors"
	"fmt"
	"net/url"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/rqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

const defaultRqlitePort = "4001"

// ParseRqliteURL parses an http(s) rqlite URL, defaulting the port to 4001.
// Query parameters, e.g. level=strong, are kept for gorqlite.
func ParseRqliteURL(s string) (u RqliteURL, err error) {
	if s == "" {
		return u, errors.New("db: rqlite URL is required")
	}
	parsed, err := url.Parse(s)
	if err != nil {
		return u, fmt.Errorf("db: parse rqlite URL failed: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return u, fmt.Errorf("db: parse rqlite URL failed: invalid scheme %q", parsed.Scheme)
	}
	if parsed.Hostname() == "" {
		return u, errors.New("db: parse rqlite URL failed: missing host")
	}
	if parsed.Port() == "" {
		parsed.Host = parsed.Hostname() + ":" + defaultRqlitePort
	}
	return RqliteURL{URL: parsed}, nil
}

type RqliteURL struct {
	URL *url.URL
}

// String is safe to log: the password is redacted.
func (ru RqliteURL) String() string {
	return ru.URL.Redacted()
}

func (ru RqliteURL) DataSourceName() string {
	return ru.URL.String()
}

// MigrateDatabaseURL is the URL used by the golang-migrate rqlite driver,
// which rejects gorqlite's query parameters.
func (ru RqliteURL) MigrateDatabaseURL() string {
	u := &url.URL{
		Scheme: "rqlite",
		User:   ru.URL.User,
		Host:   ru.URL.Host,
	}
	if ru.URL.Scheme == "http" {
		u.RawQuery = url.Values{"x-connect-insecure": []string{"true"}}.Encode()
	}
	return u.String()
}

//go:embed migrations/*.sql
var migrations embed.FS

// Migrate applies pending migrations and returns the schema version.
func Migrate(u RqliteURL) (version uint, err error) {
	src, err := iofs.New(migrations, "migrations")
	if err != nil {
		return 0, fmt.Errorf("db: migrate failed to create iofs: %w", err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, u.MigrateDatabaseURL())
	if err != nil {
		return 0, fmt.Errorf("db: migrate failed to connect to %s: %w", u, err)
	}
	defer m.Close()
	if err = m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return 0, fmt.Errorf("db: migrate up failed: %w", err)
	}
	version, dirty, err := m.Version()
	if err != nil {
		return 0, fmt.Errorf("db: failed to read schema version: %w", err)
	}
	if dirty {
		return version, fmt.Errorf("db: schema version %d is dirty", version)
	}
	return version, nil
}
