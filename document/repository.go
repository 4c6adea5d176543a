package document

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	// ErrNotFound signals that the document does not exist.
	ErrNotFound = errors.New("document: not found")
	// ErrDuplicateBucketKey signals another document already claims the key.
	ErrDuplicateBucketKey = errors.New("document: bucket key already exists")
)

const documentColumns = `id, company_id, domain_entity_id, name, size_bytes, mime_type, file_hash,
       bucket_key, validation_status, creator_id, created_at, updated_at, last_download_at`

// Repository handles data access for documents.
type Repository interface {
	Insert(ctx context.Context, tx pgx.Tx, params InsertParams) (Document, error)
	Get(ctx context.Context, id string) (Document, error)
	GetTx(ctx context.Context, tx pgx.Tx, id string) (Document, error)
	List(ctx context.Context, filters Filters) ([]Document, int, error)
	TouchDownload(ctx context.Context, id string) (Document, error)
}

// InsertParams contains write parameters for creating documents.
type InsertParams struct {
	ID               string
	CompanyID        string
	DomainEntityID   string
	Name             string
	SizeBytes        int64
	MimeType         string
	FileHash         *string
	BucketKey        string
	ValidationStatus *Status
	CreatorID        *string
}

// PGRepository implements Repository backed by PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

func (r *PGRepository) Insert(ctx context.Context, tx pgx.Tx, params InsertParams) (Document, error) {
	const insertSQL = `
        INSERT INTO documents (id, company_id, domain_entity_id, name, size_bytes, mime_type,
            file_hash, bucket_key, validation_status, creator_id)
        VALUES (COALESCE(NULLIF($1, '')::uuid, gen_random_uuid()), $2, $3, $4, $5, $6, $7, $8, $9, $10)
        RETURNING ` + documentColumns

	row := tx.QueryRow(ctx, insertSQL,
		params.ID,
		params.CompanyID,
		params.DomainEntityID,
		params.Name,
		params.SizeBytes,
		params.MimeType,
		params.FileHash,
		params.BucketKey,
		params.ValidationStatus,
		params.CreatorID,
	)

	doc, err := scanDocument(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Document{}, ErrDuplicateBucketKey
		}
		return Document{}, fmt.Errorf("document: insert: %w", err)
	}
	return doc, nil
}

func (r *PGRepository) Get(ctx context.Context, id string) (Document, error) {
	query := `SELECT ` + documentColumns + ` FROM documents WHERE id = $1`

	doc, err := scanDocument(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Document{}, ErrNotFound
		}
		return Document{}, fmt.Errorf("document: get: %w", err)
	}
	return doc, nil
}

// GetTx reads the document inside the caller's transaction so creation can
// return the row as the workflow initializer left it.
func (r *PGRepository) GetTx(ctx context.Context, tx pgx.Tx, id string) (Document, error) {
	query := `SELECT ` + documentColumns + ` FROM documents WHERE id = $1`

	doc, err := scanDocument(tx.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Document{}, ErrNotFound
		}
		return Document{}, fmt.Errorf("document: get in tx: %w", err)
	}
	return doc, nil
}

func (r *PGRepository) List(ctx context.Context, filters Filters) ([]Document, int, error) {
	if filters.Page <= 0 {
		filters.Page = 1
	}
	if filters.PageSize <= 0 || filters.PageSize > 100 {
		filters.PageSize = 20
	}
	if filters.SortOrder == "" {
		filters.SortOrder = "desc"
	}

	base := `SELECT ` + documentColumns + ` FROM documents`
	where := []string{"1=1"}
	args := []any{}

	if filters.CompanyID != "" {
		where = append(where, fmt.Sprintf("company_id=$%d", len(args)+1))
		args = append(args, filters.CompanyID)
	}
	if filters.EntityID != "" {
		where = append(where, fmt.Sprintf("domain_entity_id=$%d", len(args)+1))
		args = append(args, filters.EntityID)
	}
	if filters.Status != "" {
		where = append(where, fmt.Sprintf("validation_status=$%d", len(args)+1))
		args = append(args, filters.Status)
	}

	whereClause := " WHERE " + strings.Join(where, " AND ")

	sortKey := mapSortKey(filters.SortKey)
	sortOrder := strings.ToUpper(filters.SortOrder)
	if sortOrder != "ASC" && sortOrder != "DESC" {
		sortOrder = "DESC"
	}

	limit := filters.PageSize
	offset := (filters.Page - 1) * filters.PageSize

	query := fmt.Sprintf(`%s%s ORDER BY %s %s LIMIT %d OFFSET %d`, base, whereClause, sortKey, sortOrder, limit, offset)
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("document: query list: %w", err)
	}
	defer rows.Close()

	list := []Document{}
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, 0, err
		}
		list = append(list, doc)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM documents%s", whereClause)
	var total int
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("document: count list: %w", err)
	}

	return list, total, nil
}

// TouchDownload stamps the last download timestamp and returns the row.
func (r *PGRepository) TouchDownload(ctx context.Context, id string) (Document, error) {
	query := `
		UPDATE documents
		SET last_download_at = get_tx_timestamp(),
		    updated_at = get_tx_timestamp()
		WHERE id = $1
		RETURNING ` + documentColumns

	doc, err := scanDocument(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Document{}, ErrNotFound
		}
		return Document{}, fmt.Errorf("document: touch download: %w", err)
	}
	return doc, nil
}

func scanDocument(row pgx.Row) (Document, error) {
	var doc Document
	return doc, row.Scan(
		&doc.ID,
		&doc.CompanyID,
		&doc.DomainEntityID,
		&doc.Name,
		&doc.SizeBytes,
		&doc.MimeType,
		&doc.FileHash,
		&doc.BucketKey,
		&doc.ValidationStatus,
		&doc.CreatorID,
		&doc.CreatedAt,
		&doc.UpdatedAt,
		&doc.LastDownloadAt,
	)
}

func mapSortKey(key string) string {
	switch key {
	case "name":
		return "name"
	case "sizeBytes":
		return "size_bytes"
	case "validationStatus":
		return "validation_status"
	case "updatedAt":
		return "updated_at"
	case "createdAt":
		fallthrough
	default:
		return "created_at"
	}
}
