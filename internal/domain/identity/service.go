package identity

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

type Service struct {
	accounts AccountRepository
}

func NewService(accounts AccountRepository) *Service {
	return &Service{accounts: accounts}
}

func (s *Service) CreateAccount(ctx context.Context, a *Account) error {
	if err := a.Validate(); err != nil {
		return err
	}
	if err := s.accounts.Create(ctx, a); err != nil {
		return fmt.Errorf("create account: %w", err)
	}
	return nil
}

// GetAccount satisfies Directory.
func (s *Service) GetAccount(ctx context.Context, id uuid.UUID) (*Account, error) {
	return s.accounts.GetByID(ctx, id)
}

func (s *Service) GetAccountByEmail(ctx context.Context, email string) (*Account, error) {
	return s.accounts.GetByEmail(ctx, email)
}

func (s *Service) ListDoctors(ctx context.Context, limit, offset int) ([]*Account, int, error) {
	return s.accounts.ListByRole(ctx, RoleDoctor, limit, offset)
}
