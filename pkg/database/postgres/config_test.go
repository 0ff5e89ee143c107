package postgres

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfig_Validate(t *testing.T) {
	var nilCfg *Config
	assert.ErrorIs(t, nilCfg.Validate(), ErrNilConfig)

	require.NoError(t, DefaultConfig().Validate())

	both := DefaultConfig()
	both.Master = &DBConfig{Host: "m", Port: 5432, User: "u", DBName: "d"}
	assert.ErrorIs(t, both.Validate(), ErrInvalidConfig)

	badPort := DefaultConfig()
	badPort.Standalone.Port = 70000
	assert.ErrorIs(t, badPort.Validate(), ErrInvalidConfig)

	badPool := DefaultConfig()
	badPool.Pool.MinConns = 20
	assert.ErrorIs(t, badPool.Validate(), ErrInvalidConfig)
}

func TestDBConfig_ConnString(t *testing.T) {
	d := DBConfig{Host: "db", Port: 5432, User: "relay", Password: "pw", DBName: "cargo", SSLMode: "disable"}
	assert.Equal(t,
		"host=db port=5432 user=relay password=pw dbname=cargo sslmode=disable connect_timeout=10",
		d.connString(10_000_000_000),
	)
}

func TestQueryBuilder_DollarPlaceholders(t *testing.T) {
	sql, args, err := QueryBuilder.Select("id").From("containers").
		Where("id = ?", "MSKU1234567").ToSql()
	require.NoError(t, err)
	assert.Equal(t, "SELECT id FROM containers WHERE id = $1", sql)
	assert.Equal(t, []any{"MSKU1234567"}, args)
}

func TestNew_InvalidConfigFailsFast(t *testing.T) {
	_, err := New(context.Background(), &Config{Pool: PoolConfig{MaxConns: 1, MinConns: 5}})
	assert.ErrorIs(t, err, ErrInvalidConfig)
}
