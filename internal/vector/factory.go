package vector

import (
	"fmt"

	"github.com/hyperjump/kangae/internal/config"
	"go.uber.org/zap"
)

// Supported backends.
const (
	// BackendMemory keeps points in process. Good for tests and small deployments.
	BackendMemory = "memory"
	// BackendSQLite persists points to a local SQLite file and scans them on search.
	BackendSQLite = "sqlite"
	// BackendQdrant delegates storage and search to a Qdrant server over gRPC.
	BackendQdrant = "qdrant"
)

// NewStore creates the store selected by cfg.Backend. An empty backend means memory.
func NewStore(cfg *config.VectorConfig, logger *zap.Logger) (Store, error) {
	switch cfg.Backend {
	case BackendMemory, "":
		logger.Info("vector store initialized", zap.String("backend", BackendMemory))
		return NewMemoryStore(), nil
	case BackendSQLite:
		s, err := NewSQLiteStore(cfg.DatabasePath)
		if err != nil {
			return nil, err
		}
		logger.Info("vector store initialized", zap.String("backend", BackendSQLite), zap.String("path", cfg.DatabasePath))
		return s, nil
	case BackendQdrant:
		return NewQdrantStore(cfg.Qdrant, logger)
	default:
		return nil, fmt.Errorf("unknown vector backend: %s (supported: memory, sqlite, qdrant)", cfg.Backend)
	}
}
