package api

import (
	"context"
	"time"

	"taskflow-api/domain"
)

// Storage abstracts persistence for handlers.
type Storage interface {
	InsertTask(ctx context.Context, t domain.Task) error
	GetTask(ctx context.Context, ownerID, id string) (*domain.Task, error)
	UpdateTask(ctx context.Context, t domain.Task) error
	DeleteTask(ctx context.Context, ownerID, id string) error
	ListTasks(ctx context.Context, ownerID string, f domain.TaskFilter, now time.Time) ([]domain.Task, error)

	GetOwner(ctx context.Context, id string) (*domain.Owner, error)
	FindOwnerByEmail(ctx context.Context, email string) (*domain.Owner, error)
	UpsertOwner(ctx context.Context, o domain.Owner) error
	ListOwners(ctx context.Context) ([]domain.Owner, error)

	EnqueueDigest(ctx context.Context, req domain.DigestRequest) error
}

// Authenticator is implemented by types able to extract identities from
// Authorization headers.
type Authenticator interface {
	IdentityFromAuthHeader(string) (*Identity, error)
}
