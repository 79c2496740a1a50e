package store

// runMigrations creates the schema. Every statement is idempotent.
func (s *Store) runMigrations() error {
	migrations := []string{
		// Carousel icons in belt order.
		`CREATE TABLE IF NOT EXISTS icons (
			id TEXT PRIMARY KEY,
			caption TEXT NOT NULL,
			image TEXT NOT NULL,
			position INTEGER NOT NULL,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		// Plugin action run when an icon is selected. At most one per icon.
		`CREATE TABLE IF NOT EXISTS icon_actions (
			icon_id TEXT PRIMARY KEY REFERENCES icons(id) ON DELETE CASCADE,
			plugin_name TEXT NOT NULL,
			action_name TEXT NOT NULL,
			params TEXT NOT NULL DEFAULT '{}',
			enabled INTEGER NOT NULL DEFAULT 1,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		// Key-value application settings.
		`CREATE TABLE IF NOT EXISTS settings (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)`,

		// Selection history.
		`CREATE TABLE IF NOT EXISTS selections (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			icon_id TEXT,
			caption TEXT NOT NULL,
			plugin_name TEXT NOT NULL DEFAULT '',
			action_name TEXT NOT NULL DEFAULT '',
			success INTEGER NOT NULL DEFAULT 1,
			error TEXT NOT NULL DEFAULT '',
			selected_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE INDEX IF NOT EXISTS idx_icons_position ON icons(position)`,
		`CREATE INDEX IF NOT EXISTS idx_selections_selected_at ON selections(selected_at)`,
	}

	for _, migration := range migrations {
		if _, err := s.db.Exec(migration); err != nil {
			return err
		}
	}
	return nil
}
