package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"

	"manageease/internal/apperr"
	"manageease/internal/models"
)

const userColumns = `id, first_name, last_name, email, password_hash, is_active, created_at, updated_at`

// userColumnsWritable lists the columns UpdateUser accepts.
var userColumnsWritable = map[string]struct{}{
	"first_name":    {},
	"last_name":     {},
	"email":         {},
	"password_hash": {},
	"is_active":     {},
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (models.User, error) {
	var u models.User
	err := row.Scan(&u.ID, &u.FirstName, &u.LastName, &u.Email, &u.PasswordHash, &u.IsActive, &u.CreatedAt, &u.UpdatedAt)
	return u, err
}

// CreateUser inserts a user. The email is stored lower-cased and must be
// unique regardless of case.
func (s *Store) CreateUser(ctx context.Context, u models.User) (models.User, error) {
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	u.CreatedAt = u.CreatedAt.UTC()
	u.UpdatedAt = u.UpdatedAt.UTC()

	_, err := s.db.ExecContext(ctx, `INSERT INTO users(`+userColumns+`) VALUES(?, ?, ?, ?, ?, ?, ?, ?)`,
		u.ID, u.FirstName, u.LastName, u.Email, u.PasswordHash, u.IsActive, u.CreatedAt, u.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return models.User{}, apperr.New(apperr.ErrConflict, "user with this email already exists")
		}
		return models.User{}, fmt.Errorf("insert user: %w", err)
	}
	return s.GetUser(ctx, u.ID)
}

// GetUser fetches a single user by id.
func (s *Store) GetUser(ctx context.Context, id string) (models.User, error) {
	u, err := scanUser(s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return models.User{}, apperr.New(apperr.ErrNotFound, "user not found")
	}
	if err != nil {
		return models.User{}, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

// FindUserByEmail looks a user up by email, ignoring case.
func (s *Store) FindUserByEmail(ctx context.Context, email string) (models.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	u, err := scanUser(s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE email = ? COLLATE NOCASE`, email))
	if errors.Is(err, sql.ErrNoRows) {
		return models.User{}, apperr.New(apperr.ErrNotFound, "user not found")
	}
	if err != nil {
		return models.User{}, fmt.Errorf("find user by email: %w", err)
	}
	return u, nil
}

// GetUsersByID returns the users among ids that exist, keyed by id.
func (s *Store) GetUsersByID(ctx context.Context, ids []string) (map[string]models.User, error) {
	unique := make(map[string]struct{}, len(ids))
	args := make([]any, 0, len(ids))
	for _, id := range ids {
		if _, dup := unique[id]; dup || id == "" {
			continue
		}
		unique[id] = struct{}{}
		args = append(args, id)
	}

	out := make(map[string]models.User, len(args))
	if len(args) == 0 {
		return out, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(args)), ", ")
	rows, err := s.db.QueryContext(ctx, `SELECT `+userColumns+` FROM users WHERE id IN (`+placeholders+`)`, args...)
	if err != nil {
		return nil, fmt.Errorf("get users: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		out[u.ID] = u
	}
	return out, rows.Err()
}

// ListActiveUsers returns up to limit active users whose name or email
// contains search, ordered by first name.
func (s *Store) ListActiveUsers(ctx context.Context, search string, limit int) ([]models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE is_active = 1`
	var args []any
	if search = strings.ToLower(strings.TrimSpace(search)); search != "" {
		query += ` AND (instr(lower(first_name), ?) > 0 OR instr(lower(last_name), ?) > 0 OR instr(lower(email), ?) > 0)`
		args = append(args, search, search, search)
	}
	query += ` ORDER BY first_name COLLATE NOCASE, last_name COLLATE NOCASE, id LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	users := []models.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// UpdateUser writes the given columns and bumps updated_at.
func (s *Store) UpdateUser(ctx context.Context, id string, changes map[string]any) (models.User, error) {
	if len(changes) == 0 {
		return s.GetUser(ctx, id)
	}

	cols := make([]string, 0, len(changes))
	for col := range changes {
		if _, ok := userColumnsWritable[col]; !ok {
			return models.User{}, fmt.Errorf("update user: column %q is not writable", col)
		}
		cols = append(cols, col)
	}
	sort.Strings(cols)

	set := make([]string, 0, len(cols)+1)
	args := make([]any, 0, len(cols)+2)
	for _, col := range cols {
		v := changes[col]
		if col == "email" {
			if email, ok := v.(string); ok {
				v = strings.ToLower(strings.TrimSpace(email))
			}
		}
		set = append(set, col+" = ?")
		args = append(args, v)
	}
	set = append(set, "updated_at = ?")
	args = append(args, time.Now().UTC(), id)

	res, err := s.db.ExecContext(ctx, `UPDATE users SET `+strings.Join(set, ", ")+` WHERE id = ?`, args...)
	if err != nil {
		if isUniqueViolation(err) {
			return models.User{}, apperr.New(apperr.ErrConflict, "user with this email already exists")
		}
		return models.User{}, fmt.Errorf("update user: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return models.User{}, err
	}
	if affected == 0 {
		return models.User{}, apperr.New(apperr.ErrNotFound, "user not found")
	}
	return s.GetUser(ctx, id)
}

// DeleteUser removes a user and, through the foreign keys, every task they
// created or are assigned to.
func (s *Store) DeleteUser(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return apperr.New(apperr.ErrNotFound, "user not found")
	}
	return nil
}

// CountTasksByStatus counts the tasks assigned to a user per status.
func (s *Store) CountTasksByStatus(ctx context.Context, assigneeID string) (models.TaskCounts, error) {
	var counts models.TaskCounts
	err := s.db.QueryRowContext(ctx, `SELECT
            COALESCE(SUM(CASE WHEN status = 'completed' THEN 1 ELSE 0 END), 0),
            COALESCE(SUM(CASE WHEN status <> 'completed' THEN 1 ELSE 0 END), 0)
        FROM tasks WHERE assignee_id = ?`, assigneeID).Scan(&counts.Completed, &counts.Active)
	if err != nil {
		return models.TaskCounts{}, fmt.Errorf("count tasks: %w", err)
	}
	return counts, nil
}

func isUniqueViolation(err error) bool {
	var se sqlite3.Error
	return errors.As(err, &se) && se.ExtendedCode == sqlite3.ErrConstraintUnique
}

func isForeignKeyViolation(err error) bool {
	var se sqlite3.Error
	return errors.As(err, &se) && se.ExtendedCode == sqlite3.ErrConstraintForeignKey
}
