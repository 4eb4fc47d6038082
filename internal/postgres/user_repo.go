package postgres

import (
	"context"
	"errors"

	"github.com/cwrk-planet/support-chat/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type UserRepository struct {
	db *pgxpool.Pool
}

func NewUserRepository(db *pgxpool.Pool) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	var u domain.User
	err := r.db.QueryRow(ctx,
		`SELECT id, email, first_name, last_name, is_staff FROM users WHERE id = $1`,
		id).Scan(&u.ID, &u.Email, &u.FirstName, &u.LastName, &u.IsStaff)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrUserNotFound
		}
		return nil, err
	}
	return &u, nil
}

func (r *UserRepository) GetByIDs(ctx context.Context, ids []string) ([]domain.User, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := r.db.Query(ctx,
		`SELECT id, email, first_name, last_name, is_staff FROM users WHERE id = ANY($1)`,
		ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.User
	for rows.Next() {
		var u domain.User
		if err := rows.Scan(&u.ID, &u.Email, &u.FirstName, &u.LastName, &u.IsStaff); err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

// FirstStaff — получатель сообщений от обычного пользователя.
func (r *UserRepository) FirstStaff(ctx context.Context) (*domain.User, error) {
	var u domain.User
	err := r.db.QueryRow(ctx,
		`SELECT id, email, first_name, last_name, is_staff FROM users WHERE is_staff = true ORDER BY id LIMIT 1`,
	).Scan(&u.ID, &u.Email, &u.FirstName, &u.LastName, &u.IsStaff)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNoStaffAvailable
		}
		return nil, err
	}
	return &u, nil
}
