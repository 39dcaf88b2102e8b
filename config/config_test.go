package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { _ = os.Chdir(wd) })

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":8081", cfg.HTTP.Addr)
	assert.Equal(t, "/api", cfg.HTTP.BasePath)
	assert.Equal(t, []string{"*"}, cfg.HTTP.CORSOrigins)
	assert.Equal(t, 30*time.Second, cfg.HTTP.ShutdownTimeout)
	assert.Equal(t, DriverSQLite, cfg.Database.Driver)
	assert.Equal(t, "consignment", cfg.Database.Name)
	assert.Equal(t, "contacts", cfg.Database.Collection)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Empty(t, cfg.S3Config.BackupBucket)
}

func TestLoadFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "crm.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
http:
  addr: ":9000"
  shutdown_timeout: 5s
database:
  driver: mongo
  dsn: mongodb://localhost:27017
seed:
  csv_source: s3://seeds/contacts.csv
`), 0o600))

	t.Setenv("CRM_DATABASE_COLLECTION", "leads")
	t.Setenv("CRM_LOG_LEVEL", "debug")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9000", cfg.HTTP.Addr)
	assert.Equal(t, 5*time.Second, cfg.HTTP.ShutdownTimeout)
	assert.Equal(t, DriverMongo, cfg.Database.Driver)
	assert.Equal(t, "mongodb://localhost:27017", cfg.Database.DSN)
	assert.Equal(t, "leads", cfg.Database.Collection)
	assert.Equal(t, "s3://seeds/contacts.csv", cfg.Seed.CSVSource)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := Config{
		HTTP:     HTTPConfig{BasePath: "/api"},
		Database: DatabaseConfig{Driver: DriverSQLite, DSN: "crm.db"},
	}
	require.NoError(t, valid.Validate())

	bad := valid
	bad.Database.Driver = "postgres"
	assert.ErrorContains(t, bad.Validate(), "unsupported database driver")

	bad = valid
	bad.Database.DSN = ""
	assert.Error(t, bad.Validate())

	bad = valid
	bad.Database = DatabaseConfig{Driver: DriverMongo, DSN: "mongodb://x"}
	assert.Error(t, bad.Validate())

	bad = valid
	bad.HTTP.BasePath = "api"
	assert.Error(t, bad.Validate())
}

func TestConnectDatabaseSQLite(t *testing.T) {
	ctx := context.Background()
	db, err := ConnectDatabase(ctx, DatabaseConfig{Driver: DriverSQLite, DSN: filepath.Join(t.TempDir(), "x.db")})
	require.NoError(t, err)
	defer db.Close()

	var mode string
	require.NoError(t, db.QueryRowContext(ctx, "PRAGMA journal_mode").Scan(&mode))
	assert.Equal(t, "wal", mode)

	_, err = ConnectDatabase(ctx, DatabaseConfig{Driver: DriverMongo, DSN: "mongodb://x"})
	assert.Error(t, err)
}

func TestMySQLDSNForcesFoundRows(t *testing.T) {
	dsn, err := mysqlDSN("crm:secret@tcp(db:3306)/crm")
	require.NoError(t, err)
	assert.Contains(t, dsn, "clientFoundRows=true")
	assert.Contains(t, dsn, "parseTime=true")

	_, err = mysqlDSN("not a dsn")
	assert.Error(t, err)
}
