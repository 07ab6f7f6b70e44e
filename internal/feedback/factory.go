package feedback

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
)

// DefaultSQLitePath returns ~/.obesity-compass/feedback.db, or a path in
// the working directory when the home directory is unknown.
func DefaultSQLitePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".obesity-compass", "feedback.db")
	}
	return filepath.Join(home, ".obesity-compass", "feedback.db")
}

// NewStore opens the configured backend. databaseURL is only used for postgres.
func NewStore(backend, sqlitePath, databaseURL string) (Store, error) {
	switch backend {
	case "", BackendSQLite:
		if sqlitePath == "" {
			sqlitePath = DefaultSQLitePath()
		}
		return NewSQLiteStore(sqlitePath)
	case BackendPostgres:
		if databaseURL == "" {
			return nil, fmt.Errorf("postgres feedback backend requires a database URL")
		}
		return NewPostgresStoreFromURL(databaseURL)
	default:
		return nil, fmt.Errorf("unknown feedback backend %q", backend)
	}
}
