package db

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/openjsw/openposta/internal/config"
)

func TestConnectBadBinding(t *testing.T) {
	_, err := Connect(config.DBConfig{
		Host:     "127.0.0.1",
		Port:     1,
		User:     "mail",
		Password: "mail",
		DBName:   "openposta",
		SSLMode:  "disable",
	})
	assert.Error(t, err, "an unreachable binding surfaces at connect time")
}
