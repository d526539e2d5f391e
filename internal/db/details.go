package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ImageDetail is one of the ordered secondary files of an image.
type ImageDetail struct {
	ID        string    `json:"id"`
	ImageID   string    `json:"image_id"`
	FileName  string    `json:"file_name"`
	Order     int       `json:"order"`
	CreatedAt time.Time `json:"created_at"`
}

// DetailInput holds the fields of a new detail row.
// A nil Order appends after the current last detail.
type DetailInput struct {
	ImageID  string
	FileName string
	Order    *int
}

// ListImageDetails returns the details of an image in display order.
func (d *DB) ListImageDetails(ctx context.Context, imageID string) ([]ImageDetail, error) {
	rows, err := d.sql.QueryContext(ctx, `
		SELECT id, image_id, file_name, "order", created_at
		  FROM image_details
		 WHERE image_id = ?
		 ORDER BY "order" ASC, created_at ASC, rowid ASC`, imageID)
	if err != nil {
		return nil, fmt.Errorf("list image details: %w", err)
	}
	defer rows.Close()

	details := []ImageDetail{}
	for rows.Next() {
		var (
			det     ImageDetail
			created string
		)
		if err := rows.Scan(&det.ID, &det.ImageID, &det.FileName, &det.Order, &created); err != nil {
			return nil, fmt.Errorf("scan image detail: %w", err)
		}
		det.CreatedAt = parseTime(created)
		details = append(details, det)
	}
	return details, rows.Err()
}

// AddImageDetail inserts a detail row for an existing image.
func (d *DB) AddImageDetail(ctx context.Context, in DetailInput) (ImageDetail, error) {
	tx, err := d.sql.BeginTx(ctx, nil)
	if err != nil {
		return ImageDetail{}, err
	}
	defer tx.Rollback()

	var exists int
	err = tx.QueryRowContext(ctx, `SELECT 1 FROM images WHERE id = ?`, in.ImageID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return ImageDetail{}, fmt.Errorf("image %s: %w", in.ImageID, ErrNotFound)
	}
	if err != nil {
		return ImageDetail{}, fmt.Errorf("check image: %w", err)
	}

	order := 0
	if in.Order != nil {
		order = *in.Order
	} else {
		var maxOrder sql.NullInt64
		if err := tx.QueryRowContext(ctx, `SELECT MAX("order") FROM image_details WHERE image_id = ?`, in.ImageID).Scan(&maxOrder); err != nil {
			return ImageDetail{}, fmt.Errorf("next order: %w", err)
		}
		if maxOrder.Valid {
			order = int(maxOrder.Int64) + 1
		}
	}

	det := ImageDetail{
		ID:       uuid.NewString(),
		ImageID:  in.ImageID,
		FileName: in.FileName,
		Order:    order,
	}
	created := d.timestamp()
	_, err = tx.ExecContext(ctx, `
		INSERT INTO image_details (id, image_id, file_name, "order", created_at)
		VALUES (?, ?, ?, ?, ?)`,
		det.ID, det.ImageID, det.FileName, det.Order, created,
	)
	if err != nil {
		return ImageDetail{}, fmt.Errorf("add image detail: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return ImageDetail{}, err
	}
	det.CreatedAt = parseTime(created)
	return det, nil
}

// GetImageDetail returns one detail row by ID.
func (d *DB) GetImageDetail(ctx context.Context, id string) (ImageDetail, error) {
	var (
		det     ImageDetail
		created string
	)
	err := d.sql.QueryRowContext(ctx, `
		SELECT id, image_id, file_name, "order", created_at
		  FROM image_details WHERE id = ?`, id).
		Scan(&det.ID, &det.ImageID, &det.FileName, &det.Order, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return ImageDetail{}, fmt.Errorf("image detail %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return ImageDetail{}, fmt.Errorf("get image detail: %w", err)
	}
	det.CreatedAt = parseTime(created)
	return det, nil
}

// DeleteImageDetail removes one detail row.
func (d *DB) DeleteImageDetail(ctx context.Context, id string) error {
	res, err := d.sql.ExecContext(ctx, `DELETE FROM image_details WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete image detail: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("image detail %s: %w", id, ErrNotFound)
	}
	return nil
}
