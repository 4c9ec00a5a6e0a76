package store

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/antomihe/SustainableCity/apperr"
	"github.com/antomihe/SustainableCity/geo"

	"github.com/google/uuid"
)

const (
	StatusOK      = "OK"
	StatusFull    = "FULL"
	StatusDamaged = "DAMAGED"
)

const TypeGeneral = "GENERAL"

var ContainerStatuses = []string{StatusOK, StatusFull, StatusDamaged}

var ContainerTypes = []string{
	TypeGeneral, "PAPER", "PLASTIC", "GLASS", "ORGANIC", "METAL",
	"ELECTRONICS", "BATTERIES", "CLOTHING", "OIL", "OTHERS",
}

func ValidStatus(s string) bool { return contains(ContainerStatuses, s) }
func ValidType(s string) bool   { return contains(ContainerTypes, s) }

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

type Coordinates struct {
	Lat float64 `json:"lat" validate:"gte=-90,lte=90"`
	Lng float64 `json:"lng" validate:"gte=-180,lte=180"`
}

func (c Coordinates) Point() geo.Point { return geo.Point{Lat: c.Lat, Lng: c.Lng} }

type Container struct {
	ID                  string       `json:"id"`
	Location            string       `json:"location"`
	Coordinates         *Coordinates `json:"coordinates,omitempty"`
	Capacity            int          `json:"capacity"`
	FillLevel           int          `json:"fillLevel"`
	Type                string       `json:"type"`
	Status              string       `json:"status"`
	IncidentDescription string       `json:"incidentDescription,omitempty"`
	LastEmptiedAt       *time.Time   `json:"lastEmptiedAt,omitempty"`
	CreatedAt           time.Time    `json:"createdAt"`
	UpdatedAt           time.Time    `json:"updatedAt"`
}

// Clone returns a deep copy so callers can keep a snapshot across a mutation.
func (c *Container) Clone() *Container {
	cp := *c
	if c.Coordinates != nil {
		coords := *c.Coordinates
		cp.Coordinates = &coords
	}
	if c.LastEmptiedAt != nil {
		t := *c.LastEmptiedAt
		cp.LastEmptiedAt = &t
	}
	return &cp
}

const containerSelectCols = `id, location, lat, lng, capacity, fill_level, container_type, status, incident_description, last_emptied_at, created_at, updated_at`

// containerCols qualifies the select columns with a table alias for joins.
func containerCols(alias string) string {
	cols := strings.Split(containerSelectCols, ", ")
	for i, c := range cols {
		cols[i] = alias + "." + c
	}
	return strings.Join(cols, ", ")
}

func scanContainer(row interface{ Scan(...any) error }) (*Container, error) {
	var c Container
	var lat, lng sql.NullFloat64
	var description sql.NullString
	var lastEmptied, createdAt, updatedAt any
	err := row.Scan(&c.ID, &c.Location, &lat, &lng, &c.Capacity, &c.FillLevel, &c.Type, &c.Status,
		&description, &lastEmptied, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	if lat.Valid && lng.Valid {
		c.Coordinates = &Coordinates{Lat: lat.Float64, Lng: lng.Float64}
	}
	c.IncidentDescription = description.String
	c.LastEmptiedAt = parseTimePtr(lastEmptied)
	c.CreatedAt = parseTime(createdAt)
	c.UpdatedAt = parseTime(updatedAt)
	return &c, nil
}

func scanContainers(rows *sql.Rows) ([]*Container, error) {
	var containers []*Container
	for rows.Next() {
		c, err := scanContainer(rows)
		if err != nil {
			return nil, err
		}
		containers = append(containers, c)
	}
	return containers, rows.Err()
}

// containerArgs returns the mutable columns in update order.
func (db *DB) containerArgs(c *Container) []any {
	var lat, lng, description, lastEmptied any
	if c.Coordinates != nil {
		lat, lng = c.Coordinates.Lat, c.Coordinates.Lng
	}
	if c.IncidentDescription != "" {
		description = c.IncidentDescription
	}
	if c.LastEmptiedAt != nil {
		lastEmptied = db.dialect.TimeValue(*c.LastEmptiedAt)
	}
	return []any{c.Location, lat, lng, c.Capacity, c.FillLevel, c.Type, c.Status, description, lastEmptied}
}

// CreateContainer inserts c, assigning an id when empty, and reloads the stored row into c.
func (db *DB) CreateContainer(c *Container) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	args := append([]any{c.ID}, db.containerArgs(c)...)
	_, err := db.Exec(db.Q(`INSERT INTO containers (id, location, lat, lng, capacity, fill_level, container_type, status, incident_description, last_emptied_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`), args...)
	if err != nil {
		return fmt.Errorf("create container: %w", err)
	}
	stored, err := db.GetContainer(c.ID)
	if err != nil {
		return err
	}
	*c = *stored
	return nil
}

func (db *DB) GetContainer(id string) (*Container, error) {
	row := db.QueryRow(db.Q(fmt.Sprintf(`SELECT %s FROM containers WHERE id=?`, containerSelectCols)), id)
	c, err := scanContainer(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("container %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get container: %w", err)
	}
	return c, nil
}

func (db *DB) ListContainers() ([]*Container, error) {
	rows, err := db.Query(fmt.Sprintf(`SELECT %s FROM containers ORDER BY location, id`, containerSelectCols))
	if err != nil {
		return nil, fmt.Errorf("list containers: %w", err)
	}
	defer rows.Close()
	return scanContainers(rows)
}

// ListContainersByStatus returns containers whose status is one of statuses.
func (db *DB) ListContainersByStatus(statuses ...string) ([]*Container, error) {
	if len(statuses) == 0 {
		return nil, nil
	}
	q := fmt.Sprintf(`SELECT %s FROM containers WHERE status IN (%s) ORDER BY location, id`, containerSelectCols, placeholders(len(statuses)))
	rows, err := db.Query(db.Q(q), stringArgs(statuses)...)
	if err != nil {
		return nil, fmt.Errorf("list containers by status: %w", err)
	}
	defer rows.Close()
	return scanContainers(rows)
}

// ListContainersNeedingAttention returns containers above the fill threshold
// or flagged FULL/DAMAGED.
func (db *DB) ListContainersNeedingAttention(threshold int) ([]*Container, error) {
	q := fmt.Sprintf(`SELECT %s FROM containers WHERE fill_level > ? OR status IN (?, ?) ORDER BY location, id`, containerSelectCols)
	rows, err := db.Query(db.Q(q), threshold, StatusFull, StatusDamaged)
	if err != nil {
		return nil, fmt.Errorf("list containers needing attention: %w", err)
	}
	defer rows.Close()
	return scanContainers(rows)
}

// ExistingContainerIDs returns the subset of ids that exist.
func (db *DB) ExistingContainerIDs(ids []string) ([]string, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	q := fmt.Sprintf(`SELECT id FROM containers WHERE id IN (%s)`, placeholders(len(ids)))
	rows, err := db.Query(db.Q(q), stringArgs(ids)...)
	if err != nil {
		return nil, fmt.Errorf("existing container ids: %w", err)
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

// ContainerFilter narrows FindContainers. Zero values mean no constraint.
type ContainerFilter struct {
	Text     string
	Statuses []string
	Types    []string
	Box      *geo.Box
}

// FindContainers applies status, type and box in SQL. The text match runs on
// the rows afterwards with Unicode case folding, since SQLite's LOWER only
// folds ASCII. With a box set, containers without coordinates are excluded.
func (db *DB) FindContainers(f ContainerFilter) ([]*Container, error) {
	var where []string
	var args []any
	if len(f.Statuses) > 0 {
		where = append(where, fmt.Sprintf(`status IN (%s)`, placeholders(len(f.Statuses))))
		args = append(args, stringArgs(f.Statuses)...)
	}
	if len(f.Types) > 0 {
		where = append(where, fmt.Sprintf(`container_type IN (%s)`, placeholders(len(f.Types))))
		args = append(args, stringArgs(f.Types)...)
	}
	if f.Box != nil {
		where = append(where, `lat IS NOT NULL AND lng IS NOT NULL AND lat BETWEEN ? AND ? AND lng BETWEEN ? AND ?`)
		args = append(args, f.Box.MinLat, f.Box.MaxLat, f.Box.MinLng, f.Box.MaxLng)
	}

	q := fmt.Sprintf(`SELECT %s FROM containers`, containerSelectCols)
	if len(where) > 0 {
		q += ` WHERE ` + strings.Join(where, ` AND `)
	}
	q += ` ORDER BY location, id`

	rows, err := db.Query(db.Q(q), args...)
	if err != nil {
		return nil, fmt.Errorf("find containers: %w", err)
	}
	defer rows.Close()
	containers, err := scanContainers(rows)
	if err != nil {
		return nil, err
	}
	return matchLocation(containers, f.Text), nil
}

// matchLocation keeps containers whose location contains text, ignoring case.
func matchLocation(containers []*Container, text string) []*Container {
	text = strings.ToLower(strings.TrimSpace(text))
	if text == "" {
		return containers
	}
	kept := containers[:0]
	for _, c := range containers {
		if strings.Contains(strings.ToLower(c.Location), text) {
			kept = append(kept, c)
		}
	}
	return kept
}

// MutateContainer loads the container inside a transaction, locking the row
// where the driver supports it, applies fn to a copy and writes the result.
// It returns the state before and after. If fn fails nothing is written.
func (db *DB) MutateContainer(id string, fn func(c *Container) error) (before, after *Container, err error) {
	err = db.withTx(func(tx *sql.Tx) error {
		q := fmt.Sprintf(`SELECT %s FROM containers WHERE id=?%s`, containerSelectCols, db.dialect.ForUpdate())
		current, err := scanContainer(tx.QueryRow(db.Q(q), id))
		if errors.Is(err, sql.ErrNoRows) {
			return apperr.NotFound("container %s not found", id)
		}
		if err != nil {
			return fmt.Errorf("load container: %w", err)
		}
		before = current
		next := current.Clone()
		if err := fn(next); err != nil {
			return err
		}

		args := append(db.containerArgs(next), id)
		_, err = tx.Exec(db.Q(`UPDATE containers SET location=?, lat=?, lng=?, capacity=?, fill_level=?, container_type=?, status=?, incident_description=?, last_emptied_at=?, updated_at=datetime('now','localtime') WHERE id=?`), args...)
		if err != nil {
			return fmt.Errorf("update container: %w", err)
		}

		after, err = scanContainer(tx.QueryRow(db.Q(fmt.Sprintf(`SELECT %s FROM containers WHERE id=?`, containerSelectCols)), id))
		if err != nil {
			return fmt.Errorf("reload container: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return before, after, nil
}

// DeleteContainer removes the container and its assignments.
func (db *DB) DeleteContainer(id string) error {
	return db.withTx(func(tx *sql.Tx) error {
		if _, err := tx.Exec(db.Q(`DELETE FROM operator_assignments WHERE container_id=?`), id); err != nil {
			return fmt.Errorf("delete container assignments: %w", err)
		}
		res, err := tx.Exec(db.Q(`DELETE FROM containers WHERE id=?`), id)
		if err != nil {
			return fmt.Errorf("delete container: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return apperr.NotFound("container %s not found", id)
		}
		return nil
	})
}
