package company

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	// ErrNotFound signals that the company does not exist.
	ErrNotFound = errors.New("company: not found")
	// ErrDuplicateNIT signals that the tax identifier is already registered.
	ErrDuplicateNIT = errors.New("company: nit already exists")
)

// Repository handles data access for companies and domain entities.
type Repository interface {
	Create(ctx context.Context, name, nit string) (Company, error)
	GetByID(ctx context.Context, id string) (Company, error)
	GetOrCreateEntity(ctx context.Context, tx pgx.Tx, entityType EntityType, objectID string) (DomainEntity, error)
}

// PGRepository implements Repository backed by PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

func (r *PGRepository) Create(ctx context.Context, name, nit string) (Company, error) {
	const insertSQL = `
		INSERT INTO companies (name, nit)
		VALUES ($1, $2)
		RETURNING id, name, nit, active, created_at, updated_at
	`

	c, err := scanCompany(r.pool.QueryRow(ctx, insertSQL, name, nit))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Company{}, ErrDuplicateNIT
		}
		return Company{}, fmt.Errorf("company: create: %w", err)
	}
	return c, nil
}

func (r *PGRepository) GetByID(ctx context.Context, id string) (Company, error) {
	const selectSQL = `
		SELECT id, name, nit, active, created_at, updated_at
		FROM companies
		WHERE id = $1
	`

	c, err := scanCompany(r.pool.QueryRow(ctx, selectSQL, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Company{}, ErrNotFound
		}
		return Company{}, fmt.Errorf("company: get by id: %w", err)
	}
	return c, nil
}

// GetOrCreateEntity resolves the domain entity for (entityType, objectID),
// creating it inside the caller's transaction when absent. The unique
// constraint on (entity_type, object_id) makes concurrent upserts safe.
func (r *PGRepository) GetOrCreateEntity(ctx context.Context, tx pgx.Tx, entityType EntityType, objectID string) (DomainEntity, error) {
	if !ValidEntityType(entityType) {
		return DomainEntity{}, fmt.Errorf("company: invalid entity type %q", entityType)
	}

	const upsertSQL = `
		INSERT INTO domain_entities (entity_type, object_id, name)
		VALUES ($1, $2, $3)
		ON CONFLICT (entity_type, object_id) DO UPDATE SET updated_at = get_tx_timestamp()
		RETURNING id, entity_type, object_id, name, description, created_at, updated_at
	`

	name := fmt.Sprintf("%s %s", entityType, objectID)
	row := tx.QueryRow(ctx, upsertSQL, entityType, objectID, name)

	var e DomainEntity
	if err := row.Scan(&e.ID, &e.EntityType, &e.ObjectID, &e.Name, &e.Description, &e.CreatedAt, &e.UpdatedAt); err != nil {
		return DomainEntity{}, fmt.Errorf("company: get or create entity: %w", err)
	}
	return e, nil
}

func scanCompany(row pgx.Row) (Company, error) {
	var c Company
	return c, row.Scan(&c.ID, &c.Name, &c.NIT, &c.Active, &c.CreatedAt, &c.UpdatedAt)
}
