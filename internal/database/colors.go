package database

// ColorSet returns every key -> hex color assigned in a color set.
func (db *DB) ColorSet(set string) (map[string]string, error) {
	rows, err := db.conn.Query("SELECT id, color FROM color_sets WHERE color_set = ?", set)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var id, color string
		if err := rows.Scan(&id, &color); err != nil {
			return nil, err
		}
		out[id] = color
	}
	return out, rows.Err()
}

// AssignColor stores color for key in set unless a color is already stored,
// and returns whichever color is stored afterwards.
func (db *DB) AssignColor(set, key, color string) (string, error) {
	if _, err := db.conn.Exec(
		`INSERT INTO color_sets (color_set, id, color) VALUES (?, ?, ?)
		ON CONFLICT (color_set, id) DO NOTHING`, set, key, color,
	); err != nil {
		return "", err
	}
	var stored string
	err := db.conn.QueryRow(
		"SELECT color FROM color_sets WHERE color_set = ? AND id = ?", set, key,
	).Scan(&stored)
	return stored, err
}
