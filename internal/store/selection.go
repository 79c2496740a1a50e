package store

import (
	"database/sql"
	"time"
)

// DefaultHistoryLimit caps Recent when no limit is given.
const DefaultHistoryLimit = 50

// Selection is one pinch selection and the outcome of its action.
type Selection struct {
	ID         int64     `json:"id"`
	IconID     string    `json:"icon_id"`
	Caption    string    `json:"caption"`
	PluginName string    `json:"plugin,omitempty"`
	ActionName string    `json:"action,omitempty"`
	Success    bool      `json:"success"`
	Error      string    `json:"error,omitempty"`
	SelectedAt time.Time `json:"selected_at"`
}

// SelectionRepository records selection history.
type SelectionRepository struct {
	db *sql.DB
}

// Selections returns the selection repository for this store.
func (s *Store) Selections() *SelectionRepository {
	return &SelectionRepository{db: s.db}
}

// Record appends sel to the history and sets its ID.
func (r *SelectionRepository) Record(sel *Selection) error {
	if sel.SelectedAt.IsZero() {
		sel.SelectedAt = time.Now()
	}

	result, err := r.db.Exec(
		`INSERT INTO selections (icon_id, caption, plugin_name, action_name, success, error, selected_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		sel.IconID, sel.Caption, sel.PluginName, sel.ActionName, sel.Success, sel.Error, sel.SelectedAt,
	)
	if err != nil {
		return err
	}

	sel.ID, err = result.LastInsertId()
	return err
}

// Recent returns up to limit selections, newest first.
func (r *SelectionRepository) Recent(limit int) ([]*Selection, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}

	rows, err := r.db.Query(
		`SELECT id, icon_id, caption, plugin_name, action_name, success, error, selected_at
		 FROM selections ORDER BY selected_at DESC, id DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Selection
	for rows.Next() {
		s := &Selection{}
		var iconID sql.NullString
		var success int
		if err := rows.Scan(&s.ID, &iconID, &s.Caption, &s.PluginName, &s.ActionName, &success, &s.Error, &s.SelectedAt); err != nil {
			return nil, err
		}
		s.IconID = iconID.String
		s.Success = success != 0
		out = append(out, s)
	}
	return out, rows.Err()
}
