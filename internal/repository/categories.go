package repository

import (
	"context"

	"github.com/atinyakov/tavola/internal/models"
	"github.com/google/uuid"
)

// CategoryRepository manages gallery categories.
type CategoryRepository struct {
	DB DBTX
}

// NewCategoryRepository creates a CategoryRepository over db.
func NewCategoryRepository(db DBTX) *CategoryRepository {
	return &CategoryRepository{DB: db}
}

const categoryColumns = `id, name, slug, sort_order, created_at, updated_at`

func scanCategory(row interface{ Scan(...any) error }) (*models.Category, error) {
	var c models.Category
	if err := row.Scan(&c.ID, &c.Name, &c.Slug, &c.SortOrder, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	return &c, nil
}

// List returns all categories in display order.
func (r *CategoryRepository) List(ctx context.Context) ([]models.Category, error) {
	rows, err := r.DB.QueryContext(ctx,
		`SELECT `+categoryColumns+` FROM categories ORDER BY sort_order, name`)
	if err != nil {
		return nil, wrapErr("list categories", err)
	}
	defer rows.Close()

	categories := []models.Category{}
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, wrapErr("scan category", err)
		}
		categories = append(categories, *c)
	}
	return categories, wrapErr("list categories", rows.Err())
}

// Create inserts c. An empty slug is derived from the name.
func (r *CategoryRepository) Create(ctx context.Context, c *models.Category) (*models.Category, error) {
	slug := c.Slug
	if slug == "" {
		slug = models.Slugify(c.Name)
	}
	created, err := scanCategory(r.DB.QueryRowContext(ctx, `
		INSERT INTO categories (id, name, slug, sort_order)
		VALUES ($1, $2, $3, $4)
		RETURNING `+categoryColumns,
		uuid.NewString(), c.Name, slug, c.SortOrder))
	if err != nil {
		return nil, wrapErr("create category", err)
	}
	return created, nil
}

// Update replaces the editable fields of the category c.ID.
func (r *CategoryRepository) Update(ctx context.Context, c *models.Category) (*models.Category, error) {
	slug := c.Slug
	if slug == "" {
		slug = models.Slugify(c.Name)
	}
	updated, err := scanCategory(r.DB.QueryRowContext(ctx, `
		UPDATE categories
		   SET name = $2, slug = $3, sort_order = $4, updated_at = NOW()
		 WHERE id = $1
		RETURNING `+categoryColumns,
		c.ID, c.Name, slug, c.SortOrder))
	if err != nil {
		return nil, wrapErr("update category", err)
	}
	return updated, nil
}

// Delete removes the category. It fails with ErrConflict while dishes use it.
func (r *CategoryRepository) Delete(ctx context.Context, id string) error {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM categories WHERE id = $1`, id)
	if err != nil {
		return wrapDeleteErr("delete category", err)
	}
	return requireAffected("delete category", res)
}
