package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/flatwithoutbrokerage/flatapi/types"
	"github.com/google/uuid"
)

// ContactRepository persists contact-access audit rows. Rows are never
// updated.
type ContactRepository struct {
	db *sql.DB
}

func NewContactRepository(db *sql.DB) *ContactRepository {
	return &ContactRepository{db: db}
}

// Create appends one audit row with a fresh id and timestamp.
func (r *ContactRepository) Create(ctx context.Context, access types.ContactAccess) (types.ContactAccess, error) {
	access.ID = uuid.NewString()
	access.Timestamp = time.Now().UTC()

	const query = `
		INSERT INTO contact_access (id, viewer_id, owner_id, property_id, timestamp)
		VALUES ($1, $2, $3, $4, $5)`
	if _, err := r.db.ExecContext(
		ctx,
		query,
		access.ID,
		access.ViewerID,
		access.OwnerID,
		access.PropertyID,
		access.Timestamp,
	); err != nil {
		return types.ContactAccess{}, err
	}
	return access, nil
}

// ListByViewer returns a viewer's reveals newest first.
func (r *ContactRepository) ListByViewer(ctx context.Context, viewerID string, offset, limit int) ([]types.ContactAccess, int, error) {
	return r.list(ctx, ` WHERE c.viewer_id = $1`, []any{viewerID}, offset, limit)
}

// List returns every reveal newest first.
func (r *ContactRepository) List(ctx context.Context, offset, limit int) ([]types.ContactAccess, int, error) {
	return r.list(ctx, "", nil, offset, limit)
}

func (r *ContactRepository) CountByProperty(ctx context.Context, propertyID string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM contact_access WHERE property_id = $1`, propertyID).Scan(&count)
	return count, err
}

func (r *ContactRepository) list(ctx context.Context, where string, args []any, offset, limit int) ([]types.ContactAccess, int, error) {
	if offset < 0 {
		offset = 0
	}
	if limit < 1 {
		limit = 20
	}

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM contact_access c`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `
		SELECT c.id, c.viewer_id, c.owner_id, c.property_id, c.timestamp, COALESCE(p.title, '')
		FROM contact_access c
		LEFT JOIN properties p ON p.id = c.property_id` + where +
		fmt.Sprintf(` ORDER BY c.timestamp DESC, c.id DESC OFFSET $%d LIMIT $%d`, len(args)+1, len(args)+2)
	rows, err := r.db.QueryContext(ctx, query, append(args, offset, limit)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	accesses := make([]types.ContactAccess, 0, limit)
	for rows.Next() {
		var access types.ContactAccess
		if err := rows.Scan(
			&access.ID,
			&access.ViewerID,
			&access.OwnerID,
			&access.PropertyID,
			&access.Timestamp,
			&access.PropertyTitle,
		); err != nil {
			return nil, 0, err
		}
		accesses = append(accesses, access)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return accesses, total, nil
}
