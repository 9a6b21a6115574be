package storage

import (
	"path/filepath"

	"github.com/thisdougb/telemetry/internal/config"
)

// DBFileName is the database file created inside the data directory.
const DBFileName = "telemetry.db"

// Config holds all configuration options for the persistence system
type Config struct {
	Persistent  bool
	DataPath    string
	DBPath      string
	Synchronous string
}

// LoadConfig builds the storage configuration for a data directory. An empty
// data path selects the in-memory backend.
func LoadConfig(dataPath string) *Config {
	cfg := &Config{
		Persistent:  dataPath != "",
		DataPath:    dataPath,
		Synchronous: config.StringValue("TELEMETRY_SQLITE_SYNC"),
	}
	if cfg.Persistent {
		cfg.DBPath = filepath.Join(dataPath, DBFileName)
	}
	return cfg
}

// NewBackend creates the backend the configuration asks for.
func NewBackend(cfg *Config) (Backend, error) {
	if !cfg.Persistent {
		return NewMemoryBackend(), nil
	}
	return NewSQLiteBackend(SQLiteConfig{
		DBPath:      cfg.DBPath,
		Synchronous: cfg.Synchronous,
	})
}

// TestConfig returns a configuration suitable for testing
func TestConfig() *Config {
	return &Config{Persistent: false}
}
