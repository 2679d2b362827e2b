// Package backend opens the kv.Store selected by configuration.
package backend

import (
	"fmt"
	"os"
	"path/filepath"

	"keepsake/internal/config"
	"keepsake/internal/kv"
	boltstore "keepsake/internal/kv/bolt"
	"keepsake/internal/kv/memory"
	"keepsake/internal/kv/sqlite"
	"keepsake/internal/logging"
)

var logger = logging.For("backend")

// Open creates the data directory if needed and opens the configured backend.
func Open(cfg config.StoreConfig) (kv.Store, error) {
	if cfg.Backend == config.BackendMemory {
		logger.Debug("opened store", "backend", cfg.Backend)
		return memory.New(), nil
	}

	path := cfg.DBPath()
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("creating data dir: %w", err)
	}

	var (
		st  kv.Store
		err error
	)
	switch cfg.Backend {
	case config.BackendBolt:
		st, err = boltstore.Open(path)
	case config.BackendSQLite:
		st, err = sqlite.Open(path)
	default:
		return nil, fmt.Errorf("unknown backend %q", cfg.Backend)
	}
	if err != nil {
		return nil, err
	}
	logger.Debug("opened store", "backend", cfg.Backend, "path", path)
	return st, nil
}
