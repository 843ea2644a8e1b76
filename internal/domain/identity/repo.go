package identity

import (
	"context"

	"github.com/google/uuid"
)

type AccountRepository interface {
	Create(ctx context.Context, a *Account) error
	GetByID(ctx context.Context, id uuid.UUID) (*Account, error)
	GetByEmail(ctx context.Context, email string) (*Account, error)
	ListByRole(ctx context.Context, role string, limit, offset int) ([]*Account, int, error)
}

// Directory resolves accounts by id. The scheduling engine depends on it to
// check roles and find contact addresses.
type Directory interface {
	GetAccount(ctx context.Context, id uuid.UUID) (*Account, error)
}
