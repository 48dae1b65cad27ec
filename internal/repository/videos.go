package repository

import (
	"context"

	"github.com/atinyakov/tavola/internal/models"
	"github.com/google/uuid"
)

// VideoRepository manages locally hosted videos.
type VideoRepository struct {
	DB DBTX
}

// NewVideoRepository creates a VideoRepository over db.
func NewVideoRepository(db DBTX) *VideoRepository {
	return &VideoRepository{DB: db}
}

const videoColumns = `id, title, description, video_url, thumbnail_url, sort_order, created_at, updated_at`

func scanVideo(row interface{ Scan(...any) error }) (*models.Video, error) {
	var v models.Video
	err := row.Scan(&v.ID, &v.Title, &v.Description, &v.VideoURL, &v.ThumbnailURL,
		&v.SortOrder, &v.CreatedAt, &v.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func (r *VideoRepository) List(ctx context.Context) ([]models.Video, error) {
	rows, err := r.DB.QueryContext(ctx,
		`SELECT `+videoColumns+` FROM videos ORDER BY sort_order, created_at DESC`)
	if err != nil {
		return nil, wrapErr("list videos", err)
	}
	defer rows.Close()

	videos := []models.Video{}
	for rows.Next() {
		v, err := scanVideo(rows)
		if err != nil {
			return nil, wrapErr("scan video", err)
		}
		videos = append(videos, *v)
	}
	return videos, wrapErr("list videos", rows.Err())
}

func (r *VideoRepository) Create(ctx context.Context, v *models.Video) (*models.Video, error) {
	created, err := scanVideo(r.DB.QueryRowContext(ctx, `
		INSERT INTO videos (id, title, description, video_url, thumbnail_url, sort_order)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING `+videoColumns,
		uuid.NewString(), v.Title, v.Description, v.VideoURL, v.ThumbnailURL, v.SortOrder))
	if err != nil {
		return nil, wrapErr("create video", err)
	}
	return created, nil
}

func (r *VideoRepository) Update(ctx context.Context, v *models.Video) (*models.Video, error) {
	updated, err := scanVideo(r.DB.QueryRowContext(ctx, `
		UPDATE videos
		   SET title = $2, description = $3, video_url = $4, thumbnail_url = $5,
		       sort_order = $6, updated_at = NOW()
		 WHERE id = $1
		RETURNING `+videoColumns,
		v.ID, v.Title, v.Description, v.VideoURL, v.ThumbnailURL, v.SortOrder))
	if err != nil {
		return nil, wrapErr("update video", err)
	}
	return updated, nil
}

func (r *VideoRepository) Delete(ctx context.Context, id string) error {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM videos WHERE id = $1`, id)
	if err != nil {
		return wrapDeleteErr("delete video", err)
	}
	return requireAffected("delete video", res)
}
