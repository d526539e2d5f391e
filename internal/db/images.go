package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Image is a catalogue record with its primary file.
type Image struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Date        string    `json:"date,omitempty"` // YYYY-MM-DD, empty when unset
	Category    string    `json:"category"`
	FileName    string    `json:"file_name"`
	CreatedAt   time.Time `json:"created_at"`
}

// ImageInput holds the fields of a new image.
type ImageInput struct {
	Name        string
	Description string
	Date        string
	Category    string
	FileName    string
}

// ImagePatch is a partial update; nil fields are left untouched.
type ImagePatch struct {
	Name        *string
	Description *string
	Date        *string
	Category    *string
	FileName    *string
}

// IsEmpty reports whether the patch changes nothing.
func (p ImagePatch) IsEmpty() bool {
	return p.Name == nil && p.Description == nil && p.Date == nil && p.Category == nil && p.FileName == nil
}

const imageColumns = `id, name, description, date, category, file_name, created_at`

// nullableDate stores an empty date as NULL.
func nullableDate(s string) sql.NullString {
	s = strings.TrimSpace(s)
	return sql.NullString{String: s, Valid: s != ""}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanImage(row rowScanner) (Image, error) {
	var (
		img     Image
		date    sql.NullString
		created string
	)
	if err := row.Scan(&img.ID, &img.Name, &img.Description, &date, &img.Category, &img.FileName, &created); err != nil {
		return Image{}, err
	}
	img.Date = date.String
	img.CreatedAt = parseTime(created)
	return img, nil
}

// ListImages returns all images, newest first.
func (d *DB) ListImages(ctx context.Context) ([]Image, error) {
	rows, err := d.sql.QueryContext(ctx, `
		SELECT `+imageColumns+`
		  FROM images
		 ORDER BY created_at DESC, rowid DESC`)
	if err != nil {
		return nil, fmt.Errorf("list images: %w", err)
	}
	defer rows.Close()

	images := []Image{}
	for rows.Next() {
		img, err := scanImage(rows)
		if err != nil {
			return nil, fmt.Errorf("scan image: %w", err)
		}
		images = append(images, img)
	}
	return images, rows.Err()
}

// GetImage returns one image by ID.
func (d *DB) GetImage(ctx context.Context, id string) (Image, error) {
	img, err := scanImage(d.sql.QueryRowContext(ctx, `SELECT `+imageColumns+` FROM images WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return Image{}, fmt.Errorf("image %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return Image{}, fmt.Errorf("get image: %w", err)
	}
	return img, nil
}

// AddImage inserts a new image and returns the stored row.
func (d *DB) AddImage(ctx context.Context, in ImageInput) (Image, error) {
	id := uuid.NewString()
	_, err := d.sql.ExecContext(ctx, `
		INSERT INTO images (id, name, description, date, category, file_name, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id, in.Name, in.Description, nullableDate(in.Date), in.Category, in.FileName, d.timestamp(),
	)
	if err != nil {
		return Image{}, fmt.Errorf("add image: %w", err)
	}
	return d.GetImage(ctx, id)
}

// UpdateImage applies a partial update and returns the stored row.
func (d *DB) UpdateImage(ctx context.Context, id string, p ImagePatch) (Image, error) {
	var (
		sets []string
		args []any
	)
	if p.Name != nil {
		sets = append(sets, "name = ?")
		args = append(args, *p.Name)
	}
	if p.Description != nil {
		sets = append(sets, "description = ?")
		args = append(args, *p.Description)
	}
	if p.Date != nil {
		sets = append(sets, "date = ?")
		args = append(args, nullableDate(*p.Date))
	}
	if p.Category != nil {
		sets = append(sets, "category = ?")
		args = append(args, *p.Category)
	}
	if p.FileName != nil {
		sets = append(sets, "file_name = ?")
		args = append(args, *p.FileName)
	}
	if len(sets) == 0 {
		return d.GetImage(ctx, id)
	}

	args = append(args, id)
	res, err := d.sql.ExecContext(ctx, `UPDATE images SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...)
	if err != nil {
		return Image{}, fmt.Errorf("update image: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return Image{}, fmt.Errorf("image %s: %w", id, ErrNotFound)
	}
	return d.GetImage(ctx, id)
}

// DeleteImage removes an image and its detail rows.
func (d *DB) DeleteImage(ctx context.Context, id string) error {
	tx, err := d.sql.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM image_details WHERE image_id = ?`, id); err != nil {
		return fmt.Errorf("delete image details: %w", err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM images WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete image: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("image %s: %w", id, ErrNotFound)
	}
	return tx.Commit()
}
