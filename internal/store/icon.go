package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Icon is a carousel icon as stored.
type Icon struct {
	ID        string    `json:"id"`
	Caption   string    `json:"caption"`
	Image     string    `json:"image"` // URL or file path
	Position  int       `json:"position"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IconRepository provides CRUD operations for icons.
type IconRepository struct {
	db *sql.DB
}

// Icons returns the icon repository for this store.
func (s *Store) Icons() *IconRepository {
	return &IconRepository{db: s.db}
}

const iconColumns = `id, caption, image, position, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanIcon(row rowScanner) (*Icon, error) {
	i := &Icon{}
	if err := row.Scan(&i.ID, &i.Caption, &i.Image, &i.Position, &i.CreatedAt, &i.UpdatedAt); err != nil {
		return nil, err
	}
	return i, nil
}

// Create inserts an icon. An empty ID is filled with a new UUID and a
// negative Position appends the icon to the end of the belt.
func (r *IconRepository) Create(i *Icon) error {
	if i.ID == "" {
		i.ID = uuid.NewString()
	}
	if i.Position < 0 {
		next, err := r.nextPosition()
		if err != nil {
			return err
		}
		i.Position = next
	}

	now := time.Now()
	i.CreatedAt = now
	i.UpdatedAt = now

	_, err := r.db.Exec(
		`INSERT INTO icons (`+iconColumns+`) VALUES (?, ?, ?, ?, ?, ?)`,
		i.ID, i.Caption, i.Image, i.Position, i.CreatedAt, i.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting icon %q: %w", i.Caption, err)
	}
	return nil
}

func (r *IconRepository) nextPosition() (int, error) {
	var max sql.NullInt64
	if err := r.db.QueryRow(`SELECT MAX(position) FROM icons`).Scan(&max); err != nil {
		return 0, err
	}
	if !max.Valid {
		return 0, nil
	}
	return int(max.Int64) + 1, nil
}

// GetByID retrieves an icon by its ID.
func (r *IconRepository) GetByID(id string) (*Icon, error) {
	i, err := scanIcon(r.db.QueryRow(`SELECT `+iconColumns+` FROM icons WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return i, err
}

// List returns every icon in belt order.
func (r *IconRepository) List() ([]*Icon, error) {
	rows, err := r.db.Query(`SELECT ` + iconColumns + ` FROM icons ORDER BY position, created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var icons []*Icon
	for rows.Next() {
		i, err := scanIcon(rows)
		if err != nil {
			return nil, err
		}
		icons = append(icons, i)
	}
	return icons, rows.Err()
}

// Count returns the number of icons.
func (r *IconRepository) Count() (int, error) {
	var n int
	err := r.db.QueryRow(`SELECT COUNT(*) FROM icons`).Scan(&n)
	return n, err
}

// Update rewrites an icon's caption, image and position.
func (r *IconRepository) Update(i *Icon) error {
	i.UpdatedAt = time.Now()

	result, err := r.db.Exec(
		`UPDATE icons SET caption = ?, image = ?, position = ?, updated_at = ? WHERE id = ?`,
		i.Caption, i.Image, i.Position, i.UpdatedAt, i.ID,
	)
	if err != nil {
		return err
	}
	return affectedOne(result)
}

// Delete removes an icon and, by cascade, its action.
func (r *IconRepository) Delete(id string) error {
	result, err := r.db.Exec(`DELETE FROM icons WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return affectedOne(result)
}

// SeedIcon is one icon, optionally with an action, to insert on first run.
type SeedIcon struct {
	Caption string
	Image   string
	Plugin  string
	Action  string
	Params  json.RawMessage
}

// Seed inserts icons in order when the table is empty and reports whether
// it did. An existing icon set is never touched.
func (r *IconRepository) Seed(seeds []SeedIcon) (bool, error) {
	tx, err := r.db.Begin()
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	var n int
	if err := tx.QueryRow(`SELECT COUNT(*) FROM icons`).Scan(&n); err != nil {
		return false, err
	}
	if n > 0 {
		return false, nil
	}

	now := time.Now()
	for pos, seed := range seeds {
		id := uuid.NewString()
		if _, err := tx.Exec(
			`INSERT INTO icons (`+iconColumns+`) VALUES (?, ?, ?, ?, ?, ?)`,
			id, seed.Caption, seed.Image, pos, now, now,
		); err != nil {
			return false, fmt.Errorf("seeding icon %q: %w", seed.Caption, err)
		}

		if seed.Plugin == "" || seed.Action == "" {
			continue
		}
		params := "{}"
		if len(seed.Params) > 0 {
			params = string(seed.Params)
		}
		if _, err := tx.Exec(
			`INSERT INTO icon_actions (icon_id, plugin_name, action_name, params, enabled, created_at)
			 VALUES (?, ?, ?, ?, 1, ?)`,
			id, seed.Plugin, seed.Action, params, now,
		); err != nil {
			return false, fmt.Errorf("seeding action for %q: %w", seed.Caption, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return false, err
	}
	return true, nil
}
