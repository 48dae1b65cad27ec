package repository

import (
	"context"

	"github.com/atinyakov/tavola/internal/models"
	"github.com/google/uuid"
)

// DishRepository manages gallery dishes.
type DishRepository struct {
	DB DBTX
}

// NewDishRepository creates a DishRepository over db.
func NewDishRepository(db DBTX) *DishRepository {
	return &DishRepository{DB: db}
}

const dishColumns = `id, title, description, image_url, category_id, sort_order, created_at, updated_at`

func scanDish(row interface{ Scan(...any) error }) (*models.Dish, error) {
	var d models.Dish
	err := row.Scan(&d.ID, &d.Title, &d.Description, &d.ImageURL, &d.CategoryID,
		&d.SortOrder, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// List returns dishes in display order, restricted to categoryID when it is set.
func (r *DishRepository) List(ctx context.Context, categoryID string) ([]models.Dish, error) {
	rows, err := r.DB.QueryContext(ctx, `
		SELECT `+dishColumns+` FROM dishes
		 WHERE ($1 = '' OR category_id = $1)
		 ORDER BY sort_order, created_at
	`, categoryID)
	if err != nil {
		return nil, wrapErr("list dishes", err)
	}
	defer rows.Close()

	dishes := []models.Dish{}
	for rows.Next() {
		d, err := scanDish(rows)
		if err != nil {
			return nil, wrapErr("scan dish", err)
		}
		dishes = append(dishes, *d)
	}
	return dishes, wrapErr("list dishes", rows.Err())
}

// Get returns the dish with id, or ErrNotFound.
func (r *DishRepository) Get(ctx context.Context, id string) (*models.Dish, error) {
	d, err := scanDish(r.DB.QueryRowContext(ctx,
		`SELECT `+dishColumns+` FROM dishes WHERE id = $1`, id))
	if err != nil {
		return nil, wrapErr("get dish", err)
	}
	return d, nil
}

// Create inserts d. An unknown category yields ErrBadRequest.
func (r *DishRepository) Create(ctx context.Context, d *models.Dish) (*models.Dish, error) {
	created, err := scanDish(r.DB.QueryRowContext(ctx, `
		INSERT INTO dishes (id, title, description, image_url, category_id, sort_order)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING `+dishColumns,
		uuid.NewString(), d.Title, d.Description, d.ImageURL, d.CategoryID, d.SortOrder))
	if err != nil {
		return nil, wrapErr("create dish", err)
	}
	return created, nil
}

// Update replaces the editable fields of the dish d.ID.
func (r *DishRepository) Update(ctx context.Context, d *models.Dish) (*models.Dish, error) {
	updated, err := scanDish(r.DB.QueryRowContext(ctx, `
		UPDATE dishes
		   SET title = $2, description = $3, image_url = $4, category_id = $5,
		       sort_order = $6, updated_at = NOW()
		 WHERE id = $1
		RETURNING `+dishColumns,
		d.ID, d.Title, d.Description, d.ImageURL, d.CategoryID, d.SortOrder))
	if err != nil {
		return nil, wrapErr("update dish", err)
	}
	return updated, nil
}

// Delete removes the dish with id.
func (r *DishRepository) Delete(ctx context.Context, id string) error {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM dishes WHERE id = $1`, id)
	if err != nil {
		return wrapDeleteErr("delete dish", err)
	}
	return requireAffected("delete dish", res)
}
