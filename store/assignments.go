package store

import (
	"database/sql"
	"fmt"
	"time"
)

type Assignment struct {
	OperatorID  string    `json:"operatorId"`
	ContainerID string    `json:"containerId"`
	AssignedAt  time.Time `json:"assignedAt"`
}

const assignmentSelectCols = `operator_id, container_id, assigned_at`

func scanAssignment(row interface{ Scan(...any) error }) (*Assignment, error) {
	var a Assignment
	var assignedAt any
	if err := row.Scan(&a.OperatorID, &a.ContainerID, &assignedAt); err != nil {
		return nil, err
	}
	a.AssignedAt = parseTime(assignedAt)
	return &a, nil
}

func scanAssignments(rows *sql.Rows) ([]*Assignment, error) {
	assignments := []*Assignment{}
	for rows.Next() {
		a, err := scanAssignment(rows)
		if err != nil {
			return nil, err
		}
		assignments = append(assignments, a)
	}
	return assignments, rows.Err()
}

// ReplaceOperatorAssignments swaps the operator's whole container set in one
// transaction. Container ids that no longer exist at insert time are skipped.
func (db *DB) ReplaceOperatorAssignments(operatorID string, containerIDs []string) ([]*Assignment, error) {
	var result []*Assignment
	err := db.withTx(func(tx *sql.Tx) error {
		if _, err := tx.Exec(db.Q(`DELETE FROM operator_assignments WHERE operator_id=?`), operatorID); err != nil {
			return fmt.Errorf("clear operator assignments: %w", err)
		}
		for _, cid := range dedupe(containerIDs) {
			_, err := tx.Exec(db.Q(`INSERT INTO operator_assignments (operator_id, container_id) SELECT CAST(? AS TEXT), id FROM containers WHERE id=?`), operatorID, cid)
			if err != nil {
				return fmt.Errorf("insert assignment %s/%s: %w", operatorID, cid, err)
			}
		}
		rows, err := tx.Query(db.Q(fmt.Sprintf(`SELECT %s FROM operator_assignments WHERE operator_id=? ORDER BY container_id`, assignmentSelectCols)), operatorID)
		if err != nil {
			return fmt.Errorf("reload operator assignments: %w", err)
		}
		defer rows.Close()
		result, err = scanAssignments(rows)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// ReplaceContainerAssignments swaps the container's whole operator set in one
// transaction. Ids that are not operators at insert time are skipped.
func (db *DB) ReplaceContainerAssignments(containerID string, operatorIDs []string) ([]*Assignment, error) {
	var result []*Assignment
	err := db.withTx(func(tx *sql.Tx) error {
		if _, err := tx.Exec(db.Q(`DELETE FROM operator_assignments WHERE container_id=?`), containerID); err != nil {
			return fmt.Errorf("clear container assignments: %w", err)
		}
		for _, oid := range dedupe(operatorIDs) {
			_, err := tx.Exec(db.Q(`INSERT INTO operator_assignments (operator_id, container_id) SELECT id, CAST(? AS TEXT) FROM users WHERE id=? AND role=?`), containerID, oid, RoleOperator)
			if err != nil {
				return fmt.Errorf("insert assignment %s/%s: %w", oid, containerID, err)
			}
		}
		rows, err := tx.Query(db.Q(fmt.Sprintf(`SELECT %s FROM operator_assignments WHERE container_id=? ORDER BY operator_id`, assignmentSelectCols)), containerID)
		if err != nil {
			return fmt.Errorf("reload container assignments: %w", err)
		}
		defer rows.Close()
		result, err = scanAssignments(rows)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (db *DB) ListAssignmentsByOperator(operatorID string) ([]*Assignment, error) {
	rows, err := db.Query(db.Q(fmt.Sprintf(`SELECT %s FROM operator_assignments WHERE operator_id=? ORDER BY container_id`, assignmentSelectCols)), operatorID)
	if err != nil {
		return nil, fmt.Errorf("list assignments by operator: %w", err)
	}
	defer rows.Close()
	return scanAssignments(rows)
}

func (db *DB) ListAssignmentsByContainer(containerID string) ([]*Assignment, error) {
	rows, err := db.Query(db.Q(fmt.Sprintf(`SELECT %s FROM operator_assignments WHERE container_id=? ORDER BY operator_id`, assignmentSelectCols)), containerID)
	if err != nil {
		return nil, fmt.Errorf("list assignments by container: %w", err)
	}
	defer rows.Close()
	return scanAssignments(rows)
}

// ListContainersForOperator returns the containers assigned to the operator.
func (db *DB) ListContainersForOperator(operatorID string) ([]*Container, error) {
	q := fmt.Sprintf(`SELECT %s FROM containers c JOIN operator_assignments a ON a.container_id = c.id WHERE a.operator_id=? ORDER BY c.location, c.id`, containerCols("c"))
	rows, err := db.Query(db.Q(q), operatorID)
	if err != nil {
		return nil, fmt.Errorf("list containers for operator: %w", err)
	}
	defer rows.Close()
	containers, err := scanContainers(rows)
	if containers == nil && err == nil {
		containers = []*Container{}
	}
	return containers, err
}

// ListOperatorsForContainer returns the operators assigned to the container.
func (db *DB) ListOperatorsForContainer(containerID string) ([]*User, error) {
	q := `SELECT u.id, u.email, u.name, u.role, u.created_at FROM users u JOIN operator_assignments a ON a.operator_id = u.id WHERE a.container_id=? ORDER BY u.name, u.id`
	rows, err := db.Query(db.Q(q), containerID)
	if err != nil {
		return nil, fmt.Errorf("list operators for container: %w", err)
	}
	defer rows.Close()
	users, err := scanUsers(rows)
	if users == nil && err == nil {
		users = []*User{}
	}
	return users, err
}

// DeleteAssignment removes one pair and reports whether it existed.
func (db *DB) DeleteAssignment(operatorID, containerID string) (bool, error) {
	res, err := db.Exec(db.Q(`DELETE FROM operator_assignments WHERE operator_id=? AND container_id=?`), operatorID, containerID)
	if err != nil {
		return false, fmt.Errorf("delete assignment: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func dedupe(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}
