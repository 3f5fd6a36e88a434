package postgres

import (
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/Bandejas-api/pkg/config"
)

func TestTunePool_LimitesYCodecDecimal(t *testing.T) {
	cfg := config.DBConfig{Host: "localhost", Port: 5432, User: "app", Password: "p@ss", DBName: "bandejas", SSLMode: "disable"}
	pc, err := pgxpool.ParseConfig(cfg.ConnectionString())
	require.NoError(t, err)

	tunePool(pc)
	assert.Equal(t, int32(25), pc.MaxConns)
	assert.Equal(t, int32(2), pc.MinConns)
	assert.Equal(t, time.Hour, pc.MaxConnLifetime)
	assert.NotNil(t, pc.AfterConnect, "registra el codec NUMERIC en cada conexión")
	assert.Equal(t, "localhost", pc.ConnConfig.Host)
}
