package database

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestPostgresConfig_DSN(t *testing.T) {
	cfg := PostgresConfig{Host: "db", Port: "5432", User: "shop", Password: "pw", DBName: "shopswift", SSLMode: "disable", TimeZone: "UTC"}

	assert.Equal(t, "host=db user=shop password=pw dbname=shopswift port=5432 sslmode=disable TimeZone=UTC", cfg.DSN())
}

func TestConnect_RequiresCredentials(t *testing.T) {
	_, err := Connect(context.Background(), PostgresConfig{}, zap.NewNop())

	assert.ErrorContains(t, err, "POSTGRES_USER")
}

func TestNewRedisClient_InvalidURL(t *testing.T) {
	_, err := NewRedisClient(context.Background(), "not-a-url")

	assert.ErrorContains(t, err, "invalid redis url")
}

func TestClose_NilDB(t *testing.T) {
	assert.NoError(t, Close(nil))
}
