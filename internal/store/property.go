package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/flatwithoutbrokerage/flatapi/internal/search"
	"github.com/flatwithoutbrokerage/flatapi/types"
	"github.com/google/uuid"
)

const propertySelect = `
	SELECT p.id, p.title, p.description, p.type, p.listing_type, p.status,
	       p.price, p.deposit, p.maintenance, p.bhk, p.bathrooms, p.built_up_area,
	       p.furnishing, p.tenant_type, p.availability, p.locality, p.city, p.state,
	       p.pincode, p.address, p.latitude, p.longitude, p.images, p.amenities,
	       p.contact_phone, p.views, p.owner_id, p.created_at, p.updated_at,
	       u.id, u.name, u.is_verified
	FROM properties p
	LEFT JOIN users u ON u.id = p.owner_id`

// PropertyRepository handles persistence for properties.
type PropertyRepository struct {
	db *sql.DB
}

func NewPropertyRepository(db *sql.DB) *PropertyRepository {
	return &PropertyRepository{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProperty(s rowScanner) (types.Property, error) {
	var row propertyRow
	var owner ownerRow
	if err := s.Scan(
		&row.ID,
		&row.Title,
		&row.Description,
		&row.Type,
		&row.ListingType,
		&row.Status,
		&row.Price,
		&row.Deposit,
		&row.Maintenance,
		&row.BHK,
		&row.Bathrooms,
		&row.BuiltUpArea,
		&row.Furnishing,
		&row.TenantType,
		&row.Availability,
		&row.Locality,
		&row.City,
		&row.State,
		&row.Pincode,
		&row.Address,
		&row.Latitude,
		&row.Longitude,
		&row.Images,
		&row.Amenities,
		&row.ContactPhone,
		&row.Views,
		&row.OwnerID,
		&row.CreatedAt,
		&row.UpdatedAt,
		&owner.ID,
		&owner.Name,
		&owner.IsVerified,
	); err != nil {
		return types.Property{}, err
	}
	return toDomain(row, &owner), nil
}

func (r *PropertyRepository) Get(ctx context.Context, id string) (types.Property, error) {
	property, err := scanProperty(r.db.QueryRowContext(ctx, propertySelect+` WHERE p.id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Property{}, ErrNotFound
		}
		return types.Property{}, err
	}
	return property, nil
}

// GetByIdempotencyKey returns the listing an owner created with key.
func (r *PropertyRepository) GetByIdempotencyKey(ctx context.Context, ownerID, key string) (types.Property, error) {
	property, err := scanProperty(r.db.QueryRowContext(ctx,
		propertySelect+` WHERE p.owner_id = $1 AND p.idempotency_key = $2`, ownerID, key))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Property{}, ErrNotFound
		}
		return types.Property{}, err
	}
	return property, nil
}

// Find returns one window of the properties matching c and the total number
// of matching rows ignoring the window.
func (r *PropertyRepository) Find(ctx context.Context, c search.Criteria) ([]types.Property, int, error) {
	where, args, err := whereClause(c)
	if err != nil {
		return nil, 0, err
	}

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM properties p`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	limit := c.Limit
	if limit < 1 {
		limit = search.DefaultLimit
	}
	listQuery := propertySelect + where +
		fmt.Sprintf(` ORDER BY p.created_at DESC, p.id DESC OFFSET $%d LIMIT $%d`, len(args)+1, len(args)+2)
	rows, err := r.db.QueryContext(ctx, listQuery, append(args, c.Offset(), limit)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	properties := make([]types.Property, 0, limit)
	for rows.Next() {
		property, err := scanProperty(rows)
		if err != nil {
			return nil, 0, err
		}
		properties = append(properties, property)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	return properties, total, nil
}

// Create inserts a new property. A non-empty idempotencyKey is stored with
// the row and is unique per owner.
func (r *PropertyRepository) Create(ctx context.Context, property types.Property, idempotencyKey string) (types.Property, error) {
	if property.ID == "" {
		property.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	property.CreatedAt = now
	property.UpdatedAt = now

	row := toRow(property)
	var key sql.NullString
	if idempotencyKey != "" {
		key = sql.NullString{String: idempotencyKey, Valid: true}
	}

	const query = `
		INSERT INTO properties (
			id, title, description, type, listing_type, status,
			price, deposit, maintenance, bhk, bathrooms, built_up_area,
			furnishing, tenant_type, availability, locality, city, state,
			pincode, address, latitude, longitude, images, amenities,
			contact_phone, views, owner_id, idempotency_key, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15,
		        $16, $17, $18, $19, $20, $21, $22, $23, $24, $25, $26, $27, $28, $29, $30)`
	if _, err := r.db.ExecContext(
		ctx,
		query,
		row.ID,
		row.Title,
		row.Description,
		row.Type,
		row.ListingType,
		row.Status,
		row.Price,
		row.Deposit,
		row.Maintenance,
		row.BHK,
		row.Bathrooms,
		row.BuiltUpArea,
		row.Furnishing,
		row.TenantType,
		row.Availability,
		row.Locality,
		row.City,
		row.State,
		row.Pincode,
		row.Address,
		row.Latitude,
		row.Longitude,
		row.Images,
		row.Amenities,
		row.ContactPhone,
		row.Views,
		row.OwnerID,
		key,
		row.CreatedAt,
		row.UpdatedAt,
	); err != nil {
		return types.Property{}, err
	}

	return r.Get(ctx, property.ID)
}

// Update applies the supplied fields of patch and refreshes updated_at.
func (r *PropertyRepository) Update(ctx context.Context, id string, patch types.PropertyPatch) (types.Property, error) {
	assignments := patchAssignments(patch)
	sets := make([]string, 0, len(assignments)+1)
	args := make([]any, 0, len(assignments)+2)
	for _, a := range assignments {
		args = append(args, a.value)
		sets = append(sets, fmt.Sprintf("%s = $%d", a.column, len(args)))
	}
	args = append(args, time.Now().UTC())
	sets = append(sets, fmt.Sprintf("updated_at = $%d", len(args)))
	args = append(args, id)

	query := fmt.Sprintf(`UPDATE properties SET %s WHERE id = $%d`, strings.Join(sets, ", "), len(args))
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return types.Property{}, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return types.Property{}, err
	}
	if affected == 0 {
		return types.Property{}, ErrNotFound
	}

	return r.Get(ctx, id)
}

// Delete removes the contact-access rows of a property before the property
// itself, in one transaction.
func (r *PropertyRepository) Delete(ctx context.Context, id string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, `DELETE FROM contact_access WHERE property_id = $1`, id); err != nil {
		return err
	}
	result, err := tx.ExecContext(ctx, `DELETE FROM properties WHERE id = $1`, id)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return tx.Commit()
}

func (r *PropertyRepository) IncrementViews(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `UPDATE properties SET views = views + 1 WHERE id = $1`, id)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

var fieldColumns = map[search.Field]string{
	search.FieldTitle:       "p.title",
	search.FieldDescription: "p.description",
	search.FieldLocality:    "p.locality",
	search.FieldCity:        "p.city",
	search.FieldType:        "p.type",
	search.FieldListingType: "p.listing_type",
	search.FieldBHK:         "p.bhk",
	search.FieldFurnishing:  "p.furnishing",
	search.FieldPrice:       "p.price",
	search.FieldStatus:      "p.status",
	search.FieldOwnerID:     "p.owner_id",
}

// whereClause renders the predicates of c as a parameterised WHERE clause.
func whereClause(c search.Criteria) (string, []any, error) {
	if len(c.Predicates) == 0 {
		return "", nil, nil
	}

	var args []any
	conditions := make([]string, 0, len(c.Predicates))
	for _, pred := range c.Predicates {
		columns := make([]string, len(pred.Fields))
		for i, f := range pred.Fields {
			column, ok := fieldColumns[f]
			if !ok {
				return "", nil, fmt.Errorf("store: unsupported search field %q", f)
			}
			columns[i] = column
		}

		switch pred.Op {
		case search.OpEq:
			parts := make([]string, len(columns))
			for i, column := range columns {
				args = append(args, pred.Value)
				parts[i] = fmt.Sprintf("%s = $%d", column, len(args))
			}
			conditions = append(conditions, strings.Join(parts, " AND "))
		case search.OpContains:
			args = append(args, "%"+escapeLike(fmt.Sprint(pred.Value))+"%")
			parts := make([]string, len(columns))
			for i, column := range columns {
				parts[i] = fmt.Sprintf(`%s ILIKE $%d ESCAPE '\'`, column, len(args))
			}
			conditions = append(conditions, "("+strings.Join(parts, " OR ")+")")
		case search.OpGte, search.OpLte:
			op := ">="
			if pred.Op == search.OpLte {
				op = "<="
			}
			parts := make([]string, len(columns))
			for i, column := range columns {
				args = append(args, pred.Value)
				parts[i] = fmt.Sprintf("%s %s $%d", column, op, len(args))
			}
			conditions = append(conditions, strings.Join(parts, " AND "))
		default:
			return "", nil, fmt.Errorf("store: unsupported search operator %s", pred.Op)
		}
	}

	return " WHERE " + strings.Join(conditions, " AND "), args, nil
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
