package store

import (
	"context"
	"strings"
)

// Open selects a store backend from the database URL. postgres:// and
// postgresql:// URLs open a PostgresStore; anything else is treated as a
// SQLite file path (empty resolves to the default under ~/.ragchat).
func Open(ctx context.Context, databaseURL string, maxConns int32) (ConversationStore, error) {
	if strings.HasPrefix(databaseURL, "postgres://") || strings.HasPrefix(databaseURL, "postgresql://") {
		return OpenPostgres(ctx, databaseURL, maxConns)
	}

	path := databaseURL
	if path == "" {
		var err error
		path, err = DefaultSQLitePath()
		if err != nil {
			return nil, err
		}
	}
	return OpenSQLite(path)
}
