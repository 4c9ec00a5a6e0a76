package store

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/antomihe/SustainableCity/apperr"

	"github.com/google/uuid"
)

const (
	RoleStudent  = "Student"
	RoleAdmin    = "Admin"
	RoleOperator = "Operator"
)

type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"createdAt"`
}

const userSelectCols = `id, email, name, role, created_at`

func scanUser(row interface{ Scan(...any) error }) (*User, error) {
	var u User
	var createdAt any
	if err := row.Scan(&u.ID, &u.Email, &u.Name, &u.Role, &createdAt); err != nil {
		return nil, err
	}
	u.CreatedAt = parseTime(createdAt)
	return &u, nil
}

func scanUsers(rows *sql.Rows) ([]*User, error) {
	var users []*User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func (db *DB) CreateUser(u *User) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	if u.Role == "" {
		u.Role = RoleStudent
	}
	var taken int
	if err := db.QueryRow(db.Q(`SELECT COUNT(*) FROM users WHERE email=?`), u.Email).Scan(&taken); err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	if taken > 0 {
		return apperr.Conflict("email %s is already registered", u.Email)
	}
	_, err := db.Exec(db.Q(`INSERT INTO users (id, email, name, role) VALUES (?, ?, ?, ?)`), u.ID, u.Email, u.Name, u.Role)
	if err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	stored, err := db.GetUser(u.ID)
	if err != nil {
		return err
	}
	*u = *stored
	return nil
}

func (db *DB) GetUser(id string) (*User, error) {
	row := db.QueryRow(db.Q(fmt.Sprintf(`SELECT %s FROM users WHERE id=?`, userSelectCols)), id)
	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("user %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

func (db *DB) ListUsersByRole(role string) ([]*User, error) {
	rows, err := db.Query(db.Q(fmt.Sprintf(`SELECT %s FROM users WHERE role=? ORDER BY name, id`, userSelectCols)), role)
	if err != nil {
		return nil, fmt.Errorf("list users by role: %w", err)
	}
	defer rows.Close()
	return scanUsers(rows)
}

// ExistingOperatorIDs returns the subset of ids that are users with the Operator role.
func (db *DB) ExistingOperatorIDs(ids []string) ([]string, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	q := fmt.Sprintf(`SELECT id FROM users WHERE role=? AND id IN (%s)`, placeholders(len(ids)))
	args := append([]any{RoleOperator}, stringArgs(ids)...)
	rows, err := db.Query(db.Q(q), args...)
	if err != nil {
		return nil, fmt.Errorf("existing operator ids: %w", err)
	}
	defer rows.Close()
	var found []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		found = append(found, id)
	}
	return found, rows.Err()
}

// DeleteUser removes the user and its assignments.
func (db *DB) DeleteUser(id string) error {
	return db.withTx(func(tx *sql.Tx) error {
		if _, err := tx.Exec(db.Q(`DELETE FROM operator_assignments WHERE operator_id=?`), id); err != nil {
			return fmt.Errorf("delete user assignments: %w", err)
		}
		res, err := tx.Exec(db.Q(`DELETE FROM users WHERE id=?`), id)
		if err != nil {
			return fmt.Errorf("delete user: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return apperr.NotFound("user %s not found", id)
		}
		return nil
	})
}
