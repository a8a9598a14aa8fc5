package postgres

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/spigell/hh-coverbot/internal/entity"
	"github.com/spigell/hh-coverbot/internal/errs"
	"github.com/spigell/hh-coverbot/internal/generation"
)

// CheckpointStore implements generation.Checkpoints on Postgres. One row per
// (user, vacancy) draft slot, the context serialized as JSONB.
type CheckpointStore struct{ db *DB }

func NewCheckpointStore(db *DB) *CheckpointStore { return &CheckpointStore{db: db} }

func (s *CheckpointStore) Get(ctx context.Context, key generation.Key) (*entity.WorkflowState, error) {
	const q = `
SELECT context, response, comments, updated_at
FROM workflow_states WHERE user_id=$1 AND vacancy_id=$2`
	row := s.db.Pool.QueryRow(ctx, q, key.UserID, key.VacancyID)

	return scanState(row)
}

func (s *CheckpointStore) Latest(ctx context.Context, userID string) (*entity.WorkflowState, error) {
	const q = `
SELECT context, response, comments, updated_at
FROM workflow_states WHERE user_id=$1
ORDER BY updated_at DESC LIMIT 1`
	row := s.db.Pool.QueryRow(ctx, q, userID)

	return scanState(row)
}

func (s *CheckpointStore) Put(ctx context.Context, key generation.Key, state *entity.WorkflowState) error {
	rawContext, err := json.Marshal(state.Context)
	if err != nil {
		return err
	}

	const q = `
INSERT INTO workflow_states (user_id, vacancy_id, context, response, comments, updated_at)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (user_id, vacancy_id) DO UPDATE
SET context=EXCLUDED.context,
    response=EXCLUDED.response,
    comments=EXCLUDED.comments,
    updated_at=EXCLUDED.updated_at`
	_, err = s.db.Pool.Exec(ctx, q, key.UserID, key.VacancyID, rawContext, state.Response, state.Comments, state.UpdatedAt)

	return err
}

func scanState(row pgx.Row) (*entity.WorkflowState, error) {
	var (
		rawContext []byte
		state      entity.WorkflowState
	)
	if err := row.Scan(&rawContext, &state.Response, &state.Comments, &state.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.ErrNotFound
		}
		return nil, err
	}

	if err := json.Unmarshal(rawContext, &state.Context); err != nil {
		return nil, err
	}

	return &state, nil
}
