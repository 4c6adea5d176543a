package approver

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	// ErrNotFound signals that no approver profile exists for the identifier.
	ErrNotFound = errors.New("approver: not found")
	// ErrDuplicateProfile signals the account already has an approver profile.
	ErrDuplicateProfile = errors.New("approver: profile already exists for user")
)

// Repository handles data access for approver profiles.
type Repository interface {
	Create(ctx context.Context, userID string) (Profile, error)
	GetByID(ctx context.Context, id string) (Profile, error)
	GetByUserID(ctx context.Context, userID string) (Profile, error)
	List(ctx context.Context) ([]Profile, error)
}

// PGRepository implements Repository backed by PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

func (r *PGRepository) Create(ctx context.Context, userID string) (Profile, error) {
	const insertSQL = `
		INSERT INTO approvers (user_id)
		VALUES ($1)
		RETURNING id, user_id, active, created_at, updated_at
	`

	profile, err := scanProfile(r.pool.QueryRow(ctx, insertSQL, userID))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Profile{}, ErrDuplicateProfile
		}
		return Profile{}, fmt.Errorf("approver: create: %w", err)
	}
	return profile, nil
}

func (r *PGRepository) GetByID(ctx context.Context, id string) (Profile, error) {
	const selectSQL = `
		SELECT id, user_id, active, created_at, updated_at
		FROM approvers
		WHERE id = $1
	`

	profile, err := scanProfile(r.pool.QueryRow(ctx, selectSQL, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Profile{}, ErrNotFound
		}
		return Profile{}, fmt.Errorf("approver: get by id: %w", err)
	}
	return profile, nil
}

func (r *PGRepository) GetByUserID(ctx context.Context, userID string) (Profile, error) {
	const selectSQL = `
		SELECT id, user_id, active, created_at, updated_at
		FROM approvers
		WHERE user_id = $1
	`

	profile, err := scanProfile(r.pool.QueryRow(ctx, selectSQL, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Profile{}, ErrNotFound
		}
		return Profile{}, fmt.Errorf("approver: get by user id: %w", err)
	}
	return profile, nil
}

func (r *PGRepository) List(ctx context.Context) ([]Profile, error) {
	const selectSQL = `
		SELECT id, user_id, active, created_at, updated_at
		FROM approvers
		ORDER BY created_at
	`

	rows, err := r.pool.Query(ctx, selectSQL)
	if err != nil {
		return nil, fmt.Errorf("approver: list: %w", err)
	}
	defer rows.Close()

	profiles := []Profile{}
	for rows.Next() {
		profile, err := scanProfile(rows)
		if err != nil {
			return nil, err
		}
		profiles = append(profiles, profile)
	}
	return profiles, rows.Err()
}

func scanProfile(row pgx.Row) (Profile, error) {
	var p Profile
	return p, row.Scan(&p.ID, &p.UserID, &p.Active, &p.CreatedAt, &p.UpdatedAt)
}
