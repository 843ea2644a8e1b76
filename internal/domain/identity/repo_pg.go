package identity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/clinic/booking/internal/platform/db"
)

type accountRepoPG struct{ db db.Querier }

func NewAccountRepoPG(q db.Querier) AccountRepository { return &accountRepoPG{db: q} }

const accountCols = `id, role, email, display_name, created_at`

func (r *accountRepoPG) scanAccount(row pgx.Row) (*Account, error) {
	var a Account
	if err := row.Scan(&a.ID, &a.Role, &a.Email, &a.DisplayName, &a.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}
	return &a, nil
}

func (r *accountRepoPG) Create(ctx context.Context, a *Account) error {
	a.ID = uuid.New()
	a.CreatedAt = time.Now().UTC()
	_, err := db.Conn(ctx, r.db).Exec(ctx, `
		INSERT INTO account (id, role, email, display_name, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		a.ID, a.Role, a.Email, a.DisplayName, a.CreatedAt)
	if db.IsUniqueViolation(err, "account_email_key") {
		return fmt.Errorf("%w: %s", ErrEmailTaken, a.Email)
	}
	return err
}

func (r *accountRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Account, error) {
	return r.scanAccount(db.Conn(ctx, r.db).QueryRow(ctx,
		`SELECT `+accountCols+` FROM account WHERE id = $1`, id))
}

func (r *accountRepoPG) GetByEmail(ctx context.Context, email string) (*Account, error) {
	return r.scanAccount(db.Conn(ctx, r.db).QueryRow(ctx,
		`SELECT `+accountCols+` FROM account WHERE email = $1`, email))
}

func (r *accountRepoPG) ListByRole(ctx context.Context, role string, limit, offset int) ([]*Account, int, error) {
	conn := db.Conn(ctx, r.db)

	var total int
	if err := conn.QueryRow(ctx, `SELECT COUNT(*) FROM account WHERE role = $1`, role).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := conn.Query(ctx, `SELECT `+accountCols+` FROM account WHERE role = $1
		ORDER BY display_name, id LIMIT $2 OFFSET $3`, role, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []*Account
	for rows.Next() {
		a, err := r.scanAccount(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, a)
	}
	return items, total, rows.Err()
}
