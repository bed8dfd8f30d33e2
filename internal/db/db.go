package db

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"strings"

	"github.com/scriptoria/deepresearch/internal/config"

	_ "github.com/tursodatabase/libsql-client-go/libsql"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS validation_results (
  id TEXT PRIMARY KEY,
  graph_id TEXT NOT NULL,
  validation_data TEXT NOT NULL,
  created_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_validation_results_graph ON validation_results(graph_id);
`

// Open connects to the validation database. file: urls use the embedded
// sqlite driver; libsql:// and http(s):// urls go to a remote libsql server.
func Open(ctx context.Context, cfg config.Config) (*sql.DB, error) {
	driver, dsn, err := buildDSN(cfg.ValidationDBURL, cfg.ValidationDBAuthToken)
	if err != nil {
		return nil, err
	}

	database, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s db: %w", driver, err)
	}
	if driver == "sqlite" {
		// sqlite serializes writers; one connection avoids SQLITE_BUSY.
		database.SetMaxOpenConns(1)
	}

	if err := database.PingContext(ctx); err != nil {
		_ = database.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}
	if err := Migrate(ctx, database); err != nil {
		_ = database.Close()
		return nil, err
	}
	return database, nil
}

func Migrate(ctx context.Context, database *sql.DB) error {
	for _, stmt := range strings.Split(schema, ";") {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if _, err := database.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

func buildDSN(rawURL, authToken string) (string, string, error) {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return "", "", fmt.Errorf("empty database url")
	}

	if strings.HasPrefix(rawURL, "file:") {
		return "sqlite", rawURL, nil
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "", "", fmt.Errorf("parse database url: %w", err)
	}

	switch parsed.Scheme {
	case "libsql", "http", "https", "ws", "wss":
	default:
		return "", "", fmt.Errorf("unsupported database scheme %q", parsed.Scheme)
	}

	query := parsed.Query()
	if query.Get("authToken") == "" && strings.TrimSpace(authToken) != "" {
		query.Set("authToken", strings.TrimSpace(authToken))
		parsed.RawQuery = query.Encode()
	}
	return "libsql", parsed.String(), nil
}
