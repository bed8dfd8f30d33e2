package citation

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Store keeps the latest validation result per task graph.
type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

func recordID(graphID string) string {
	return graphID + "_validation"
}

func (s *Store) Save(ctx context.Context, result Result) error {
	graphID := strings.TrimSpace(result.GraphID)
	if graphID == "" {
		return errors.New("graph id must be a non-empty string")
	}

	payload, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("encode validation result: %w", err)
	}

	query := `
INSERT INTO validation_results (id, graph_id, validation_data, created_at)
VALUES (?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
  validation_data = excluded.validation_data,
  created_at = excluded.created_at;
`
	if _, err := s.db.ExecContext(ctx, query, recordID(graphID), graphID, string(payload), time.Now().UTC().Format(time.RFC3339)); err != nil {
		return fmt.Errorf("save validation result: %w", err)
	}
	return nil
}

// Load returns the stored result for graphID; the boolean is false when
// none exists.
func (s *Store) Load(ctx context.Context, graphID string) (Result, bool, error) {
	graphID = strings.TrimSpace(graphID)
	if graphID == "" {
		return Result{}, false, errors.New("graph id must be a non-empty string")
	}

	var payload string
	err := s.db.QueryRowContext(ctx, `SELECT validation_data FROM validation_results WHERE id = ?;`, recordID(graphID)).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return Result{}, false, nil
	}
	if err != nil {
		return Result{}, false, fmt.Errorf("load validation result: %w", err)
	}

	var result Result
	if err := json.Unmarshal([]byte(payload), &result); err != nil {
		return Result{}, false, fmt.Errorf("decode validation result: %w", err)
	}
	return result, true, nil
}
