package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/flatwithoutbrokerage/flatapi/types"
	"github.com/lib/pq"
)

const userSelect = `
	SELECT id, name, email, phone, role, is_verified, credits, avatar, created_at, updated_at
	FROM users`

const uniqueViolation = "23505"

// UserRepository handles persistence for users.
type UserRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

func scanUser(s rowScanner) (types.User, error) {
	var user types.User
	var name, email, phone, avatar sql.NullString
	var role string
	if err := s.Scan(
		&user.ID,
		&name,
		&email,
		&phone,
		&role,
		&user.IsVerified,
		&user.Credits,
		&avatar,
		&user.CreatedAt,
		&user.UpdatedAt,
	); err != nil {
		return types.User{}, err
	}
	user.Name = stringPtr(name)
	user.Email = stringPtr(email)
	user.Phone = stringPtr(phone)
	user.Avatar = stringPtr(avatar)
	user.Role = types.Role(role)
	return user, nil
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (types.User, error) {
	user, err := scanUser(r.db.QueryRowContext(ctx, userSelect+` WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.User{}, ErrNotFound
		}
		return types.User{}, err
	}
	return user, nil
}

// Upsert inserts the user if no row with the same id exists and returns the
// stored row. An email already claimed by another account is dropped rather
// than failing the sign-in.
func (r *UserRepository) Upsert(ctx context.Context, user types.User) (types.User, error) {
	now := time.Now().UTC()
	const query = `
		INSERT INTO users (id, name, email, phone, role, is_verified, credits, avatar, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO NOTHING`
	insert := func(email *string) error {
		_, err := r.db.ExecContext(
			ctx,
			query,
			user.ID,
			nullString(user.Name),
			nullString(email),
			nullString(user.Phone),
			string(user.Role),
			user.IsVerified,
			user.Credits,
			nullString(user.Avatar),
			now,
			now,
		)
		return err
	}

	err := insert(user.Email)
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation && user.Email != nil {
		err = insert(nil)
	}
	if err != nil {
		return types.User{}, err
	}
	return r.GetByID(ctx, user.ID)
}

func (r *UserRepository) Update(ctx context.Context, user types.User) (types.User, error) {
	user.UpdatedAt = time.Now().UTC()

	const query = `
		UPDATE users
		SET name = $1,
			phone = $2,
			role = $3,
			is_verified = $4,
			credits = $5,
			avatar = $6,
			updated_at = $7
		WHERE id = $8`
	result, err := r.db.ExecContext(
		ctx,
		query,
		nullString(user.Name),
		nullString(user.Phone),
		string(user.Role),
		user.IsVerified,
		user.Credits,
		nullString(user.Avatar),
		user.UpdatedAt,
		user.ID,
	)
	if err != nil {
		return types.User{}, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return types.User{}, err
	}
	if affected == 0 {
		return types.User{}, ErrNotFound
	}
	return r.GetByID(ctx, user.ID)
}

func (r *UserRepository) UpdateRole(ctx context.Context, id string, from, to types.Role) (bool, error) {
	result, err := r.db.ExecContext(
		ctx,
		`UPDATE users SET role = $1, updated_at = $2 WHERE id = $3 AND role = $4`,
		string(to),
		time.Now().UTC(),
		id,
		string(from),
	)
	if err != nil {
		return false, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// List returns users newest first. q matches name or email, case-insensitively.
func (r *UserRepository) List(ctx context.Context, q string, offset, limit int) ([]types.User, int, error) {
	if offset < 0 {
		offset = 0
	}
	if limit < 1 {
		limit = 20
	}

	where := ""
	var args []any
	if q != "" {
		args = append(args, "%"+escapeLike(q)+"%")
		where = ` WHERE (name ILIKE $1 ESCAPE '\' OR email ILIKE $1 ESCAPE '\')`
	}

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM users`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	listQuery := userSelect + where +
		fmt.Sprintf(` ORDER BY created_at DESC, id DESC OFFSET $%d LIMIT $%d`, len(args)+1, len(args)+2)
	rows, err := r.db.QueryContext(ctx, listQuery, append(args, offset, limit)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	users := make([]types.User, 0, limit)
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, 0, err
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return users, total, nil
}

// Delete removes a user together with every dependent row. Children go first
// so that a failure can only leave orphans, never dangling references.
func (r *UserRepository) Delete(ctx context.Context, id string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	statements := []string{
		`DELETE FROM contact_access WHERE viewer_id = $1 OR owner_id = $1`,
		`DELETE FROM contact_access WHERE property_id IN (SELECT id FROM properties WHERE owner_id = $1)`,
		`DELETE FROM properties WHERE owner_id = $1`,
	}
	for _, stmt := range statements {
		if _, err := tx.ExecContext(ctx, stmt, id); err != nil {
			return err
		}
	}

	result, err := tx.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
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
