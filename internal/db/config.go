package db

import (
	"fmt"
	"strconv"

	"sphere-cms/internal/config"
)

// ApplyStoredConfig overlays settings saved through the API on top of cfg.
// Only sphere presentation settings are stored; everything else comes from
// the config file and environment.
func (d *DB) ApplyStoredConfig(cfg *config.Config) error {
	rows, err := d.sql.Query("SELECT key, value FROM config")
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	defer rows.Close()

	m := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return fmt.Errorf("scan config: %w", err)
		}
		m[k] = v
	}
	if err := rows.Err(); err != nil {
		return err
	}

	if v, ok := m["sphere_radius"]; ok {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 {
			cfg.Sphere.Radius = f
		}
	}
	if v, ok := m["sphere_width"]; ok {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Sphere.Width = n
		}
	}
	if v, ok := m["sphere_height"]; ok {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Sphere.Height = n
		}
	}
	return nil
}

// SaveSphereConfig persists the sphere presentation settings.
func (d *DB) SaveSphereConfig(s config.SphereConfig) error {
	pairs := map[string]string{
		"sphere_radius": strconv.FormatFloat(s.Radius, 'g', -1, 64),
		"sphere_width":  strconv.Itoa(s.Width),
		"sphere_height": strconv.Itoa(s.Height),
	}

	tx, err := d.sql.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare("INSERT OR REPLACE INTO config (key, value) VALUES (?, ?)")
	if err != nil {
		return err
	}
	defer stmt.Close()

	for k, v := range pairs {
		if _, err := stmt.Exec(k, v); err != nil {
			return fmt.Errorf("save config %s: %w", k, err)
		}
	}
	return tx.Commit()
}
