// Package storage defines repository contracts for the relational entities.
// Implementations live in the postgres subpackage. Resumes are owned by their
// user and job experience by its resume: deleting the owner deletes them too.
package storage

import (
	"context"

	"github.com/google/uuid"

	"github.com/spigell/hh-coverbot/internal/entity"
)

// UserRepository persists platform users together with their resumes.
type UserRepository interface {
	Get(ctx context.Context, id uuid.UUID) (*entity.User, error)
	GetByHHID(ctx context.Context, hhID string) (*entity.User, error)
	Create(ctx context.Context, user *entity.User) (*entity.User, error)
	Update(ctx context.Context, user *entity.User) (*entity.User, error)
	Delete(ctx context.Context, id uuid.UUID) error
}
