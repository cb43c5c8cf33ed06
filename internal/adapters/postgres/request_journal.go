package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/openevac/evacmap/internal/core/domain"
)

// RequestJournal implements ports.RequestJournal. Every dispatched path
// request lands here with the zone snapshot it was computed against, so an
// after-action review can replay what the operator saw.
type RequestJournal struct {
	db *DB
}

func NewRequestJournal(db *DB) *RequestJournal {
	return &RequestJournal{db: db}
}

// RecordDispatch inserts the pending request.
func (j *RequestJournal) RecordDispatch(ctx context.Context, sessionID string, req *domain.PathRequest) error {
	snapshot, err := json.Marshal(req.Snapshot)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	start, err := json.Marshal(req.Start)
	if err != nil {
		return fmt.Errorf("marshal start: %w", err)
	}

	_, err = j.db.Pool.Exec(ctx, `
		INSERT INTO path_requests (session_id, request_id, start_point, snapshot, state, dispatched_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (session_id, request_id, dispatched_at) DO NOTHING
	`, sessionID, req.ID, start, snapshot, string(req.State), req.DispatchedAt)
	return err
}

// RecordOutcome writes the terminal state for a dispatched request.
func (j *RequestJournal) RecordOutcome(ctx context.Context, sessionID string, req *domain.PathRequest) error {
	var path []byte
	if len(req.Path) > 0 {
		var err error
		path, err = json.Marshal(req.Path)
		if err != nil {
			return fmt.Errorf("marshal path: %w", err)
		}
	}

	_, err := j.db.Pool.Exec(ctx, `
		UPDATE path_requests
		SET state = $1, path = $2, failure_cause = $3, completed_at = $4
		WHERE session_id = $5 AND request_id = $6 AND dispatched_at = $7
	`, string(req.State), path, req.FailureCause, req.CompletedAt, sessionID, req.ID, req.DispatchedAt)
	return err
}

// ListBySession returns journaled requests for one session, oldest first.
func (j *RequestJournal) ListBySession(ctx context.Context, sessionID string, limit int) ([]domain.PathRequest, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	rows, err := j.db.Pool.Query(ctx, `
		SELECT request_id, start_point, snapshot, state, COALESCE(path, 'null'),
		       COALESCE(failure_cause, ''), dispatched_at, completed_at
		FROM path_requests
		WHERE session_id = $1
		ORDER BY dispatched_at, request_id
		LIMIT $2
	`, sessionID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.PathRequest
	for rows.Next() {
		var (
			req          domain.PathRequest
			startJSON    []byte
			snapshotJSON []byte
			pathJSON     []byte
			state        string
		)
		if err := rows.Scan(&req.ID, &startJSON, &snapshotJSON, &state,
			&pathJSON, &req.FailureCause, &req.DispatchedAt, &req.CompletedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(startJSON, &req.Start); err != nil {
			return nil, fmt.Errorf("decode start: %w", err)
		}
		if err := json.Unmarshal(snapshotJSON, &req.Snapshot); err != nil {
			return nil, fmt.Errorf("decode snapshot: %w", err)
		}
		if err := json.Unmarshal(pathJSON, &req.Path); err != nil {
			return nil, fmt.Errorf("decode path: %w", err)
		}
		req.State = domain.RequestState(state)
		out = append(out, req)
	}
	return out, rows.Err()
}
