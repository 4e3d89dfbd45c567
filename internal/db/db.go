package db

import (
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/openjsw/openposta/internal/config"
)

// Connect opens the mail store's Postgres backend from its config
// block. sqlx.Connect pings, so a bad binding surfaces here and the
// caller can fall back to the not-bound mode.
func Connect(c config.DBConfig) (*sqlx.DB, error) {
	dsn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)
	return sqlx.Connect("postgres", dsn)
}
