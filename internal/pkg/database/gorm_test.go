package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gormlogger "gorm.io/gorm/logger"
)

func TestOpen_SQLiteInMemory(t *testing.T) {
	db, err := Open(Config{Driver: "sqlite", DSN: "file::memory:", MaxOpenConns: 1})
	require.NoError(t, err)

	var one int
	require.NoError(t, db.Raw("SELECT 1").Scan(&one).Error)
	assert.Equal(t, 1, one)
	assert.Equal(t, "sqlite", db.Dialector.Name())
}

func TestOpen_UnsupportedDriver(t *testing.T) {
	_, err := Open(Config{Driver: "oracle"})
	assert.Error(t, err)
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, gormlogger.Silent, parseLevel("silent"))
	assert.Equal(t, gormlogger.Info, parseLevel("info"))
	assert.Equal(t, gormlogger.Warn, parseLevel(""))
}
