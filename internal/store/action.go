package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"time"
)

// Action binds an icon to a plugin action run on selection.
type Action struct {
	IconID     string          `json:"icon_id"`
	PluginName string          `json:"plugin"`
	ActionName string          `json:"action"`
	Params     json.RawMessage `json:"params,omitempty"`
	Enabled    bool            `json:"enabled"`
	CreatedAt  time.Time       `json:"created_at"`
}

// ActionRepository provides CRUD operations for icon actions.
type ActionRepository struct {
	db *sql.DB
}

// Actions returns the action repository for this store.
func (s *Store) Actions() *ActionRepository {
	return &ActionRepository{db: s.db}
}

const actionColumns = `icon_id, plugin_name, action_name, params, enabled, created_at`

func scanAction(row rowScanner) (*Action, error) {
	a := &Action{}
	var params string
	var enabled int
	if err := row.Scan(&a.IconID, &a.PluginName, &a.ActionName, &params, &enabled, &a.CreatedAt); err != nil {
		return nil, err
	}
	a.Params = json.RawMessage(params)
	a.Enabled = enabled != 0
	return a, nil
}

// Set creates or replaces the action of an icon. It returns ErrNotFound
// when the icon does not exist.
func (r *ActionRepository) Set(a *Action) error {
	params := a.Params
	if len(params) == 0 {
		params = json.RawMessage("{}")
	}
	enabled := 0
	if a.Enabled {
		enabled = 1
	}
	a.CreatedAt = time.Now()

	_, err := r.db.Exec(
		`INSERT INTO icon_actions (`+actionColumns+`) VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(icon_id) DO UPDATE SET
			plugin_name = excluded.plugin_name,
			action_name = excluded.action_name,
			params = excluded.params,
			enabled = excluded.enabled`,
		a.IconID, a.PluginName, a.ActionName, string(params), enabled, a.CreatedAt,
	)
	if err != nil && isForeignKeyViolation(err) {
		return ErrNotFound
	}
	return err
}

// GetByIconID returns the icon's action, or nil, nil when it has none.
func (r *ActionRepository) GetByIconID(iconID string) (*Action, error) {
	a, err := scanAction(r.db.QueryRow(`SELECT `+actionColumns+` FROM icon_actions WHERE icon_id = ?`, iconID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return a, err
}

// List returns every action keyed by icon ID.
func (r *ActionRepository) List() (map[string]*Action, error) {
	rows, err := r.db.Query(`SELECT ` + actionColumns + ` FROM icon_actions`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	actions := make(map[string]*Action)
	for rows.Next() {
		a, err := scanAction(rows)
		if err != nil {
			return nil, err
		}
		actions[a.IconID] = a
	}
	return actions, rows.Err()
}

// Delete removes the action of an icon.
func (r *ActionRepository) Delete(iconID string) error {
	result, err := r.db.Exec(`DELETE FROM icon_actions WHERE icon_id = ?`, iconID)
	if err != nil {
		return err
	}
	return affectedOne(result)
}
