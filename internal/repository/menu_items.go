package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/atinyakov/tavola/internal/common"
	"github.com/atinyakov/tavola/internal/models"
	"github.com/google/uuid"
	"github.com/lib/pq"
)

// TxBeginner starts transactions. *sql.DB satisfies it.
type TxBeginner interface {
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
}

// MenuItemRepository manages the priced menu.
type MenuItemRepository struct {
	DB interface {
		DBTX
		TxBeginner
	}
}

// NewMenuItemRepository creates a MenuItemRepository over db.
func NewMenuItemRepository(db *sql.DB) *MenuItemRepository {
	return &MenuItemRepository{DB: db}
}

const menuItemColumns = `id, name, description, price, section, available, sort_order, created_at, updated_at`

func scanMenuItem(row interface{ Scan(...any) error }) (*models.MenuItem, error) {
	var m models.MenuItem
	err := row.Scan(&m.ID, &m.Name, &m.Description, &m.Price, &m.Section, &m.Available,
		&m.SortOrder, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// List returns the menu grouped by section. With onlyAvailable set, items
// marked unavailable are left out.
func (r *MenuItemRepository) List(ctx context.Context, onlyAvailable bool) ([]models.MenuItem, error) {
	rows, err := r.DB.QueryContext(ctx, `
		SELECT `+menuItemColumns+` FROM menu_items
		 WHERE ($1 = FALSE OR available)
		 ORDER BY section, sort_order, name
	`, onlyAvailable)
	if err != nil {
		return nil, wrapErr("list menu items", err)
	}
	defer rows.Close()

	items := []models.MenuItem{}
	for rows.Next() {
		m, err := scanMenuItem(rows)
		if err != nil {
			return nil, wrapErr("scan menu item", err)
		}
		items = append(items, *m)
	}
	return items, wrapErr("list menu items", rows.Err())
}

func (r *MenuItemRepository) Create(ctx context.Context, m *models.MenuItem) (*models.MenuItem, error) {
	created, err := scanMenuItem(r.DB.QueryRowContext(ctx, `
		INSERT INTO menu_items (id, name, description, price, section, available, sort_order)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING `+menuItemColumns,
		uuid.NewString(), m.Name, m.Description, m.Price, m.Section, m.Available, m.SortOrder))
	if err != nil {
		return nil, wrapErr("create menu item", err)
	}
	return created, nil
}

func (r *MenuItemRepository) Update(ctx context.Context, m *models.MenuItem) (*models.MenuItem, error) {
	updated, err := scanMenuItem(r.DB.QueryRowContext(ctx, `
		UPDATE menu_items
		   SET name = $2, description = $3, price = $4, section = $5, available = $6,
		       sort_order = $7, updated_at = NOW()
		 WHERE id = $1
		RETURNING `+menuItemColumns,
		m.ID, m.Name, m.Description, m.Price, m.Section, m.Available, m.SortOrder))
	if err != nil {
		return nil, wrapErr("update menu item", err)
	}
	return updated, nil
}

func (r *MenuItemRepository) Delete(ctx context.Context, id string) error {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM menu_items WHERE id = $1`, id)
	if err != nil {
		return wrapDeleteErr("delete menu item", err)
	}
	return requireAffected("delete menu item", res)
}

// Reorder sets sort_order of each id to its position in ids. Either every id
// exists and all are updated, or nothing changes and ErrNotFound is returned.
func (r *MenuItemRepository) Reorder(ctx context.Context, ids []string) error {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return wrapErr("begin reorder", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE menu_items AS m
		   SET sort_order = o.ord - 1, updated_at = NOW()
		  FROM unnest($1::text[]) WITH ORDINALITY AS o(id, ord)
		 WHERE m.id = o.id
	`, pq.Array(ids))
	if err != nil {
		return wrapErr("reorder menu items", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return wrapErr("reorder menu items", err)
	}
	if n != int64(len(ids)) {
		return fmt.Errorf("reorder menu items: %w: %d of %d ids exist", common.ErrNotFound, n, len(ids))
	}
	return wrapErr("commit reorder", tx.Commit())
}
