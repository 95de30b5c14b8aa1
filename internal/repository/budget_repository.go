package repository

import (
	"context"
	"fmt"

	"budgetbook/internal/model"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type BudgetRepository struct {
	db *pgxpool.Pool
}

func NewBudgetRepository(db *pgxpool.Pool) *BudgetRepository {
	return &BudgetRepository{db: db}
}

// RunAtomic executes a function within a transaction. The transaction is
// stored in the context so that repository methods called inside fn run
// against it instead of the pool; a commit only happens when fn returns nil.
func (r *BudgetRepository) RunAtomic(ctx context.Context, fn func(ctx context.Context) error) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	// Rollback is a no-op once the commit succeeds
	defer tx.Rollback(ctx)

	ctx = context.WithValue(ctx, txKey{}, tx)

	if err := fn(ctx); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

type txKey struct{}

func (r *BudgetRepository) getExecutor(ctx context.Context) PgxExecutor {
	if tx, ok := ctx.Value(txKey{}).(pgx.Tx); ok {
		return tx
	}
	return r.db
}

// PgxExecutor is an interface that matches both *pgxpool.Pool and pgx.Tx
type PgxExecutor interface {
	Exec(ctx context.Context, sql string, arguments ...any) (commandTag pgconn.CommandTag, err error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// GetUserInfo returns the singleton ledger row
func (r *BudgetRepository) GetUserInfo(ctx context.Context) (model.UserInfo, error) {
	var info model.UserInfo
	err := r.getExecutor(ctx).QueryRow(ctx,
		"SELECT id, total_budget, payments, remaining_budget FROM userinfo LIMIT 1",
	).Scan(&info.ID, &info.TotalBudget, &info.Payments, &info.RemainingBudget)
	if err != nil {
		return model.UserInfo{}, fmt.Errorf("failed to get user info: %w", err)
	}
	return info, nil
}

// GetUserInfoForUpdate locks the ledger row and returns it. Must be called
// inside RunAtomic so that concurrent mutations serialize on the row lock.
func (r *BudgetRepository) GetUserInfoForUpdate(ctx context.Context) (model.UserInfo, error) {
	var info model.UserInfo
	err := r.getExecutor(ctx).QueryRow(ctx,
		"SELECT id, total_budget, payments, remaining_budget FROM userinfo LIMIT 1 FOR UPDATE",
	).Scan(&info.ID, &info.TotalBudget, &info.Payments, &info.RemainingBudget)
	if err != nil {
		return model.UserInfo{}, fmt.Errorf("failed to lock user info: %w", err)
	}
	return info, nil
}

// UpdateUserInfo writes back all three ledger fields
func (r *BudgetRepository) UpdateUserInfo(ctx context.Context, info model.UserInfo) error {
	_, err := r.getExecutor(ctx).Exec(ctx,
		"UPDATE userinfo SET total_budget = $1, payments = $2, remaining_budget = $3 WHERE id = $4",
		info.TotalBudget, info.Payments, info.RemainingBudget, info.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update user info: %w", err)
	}
	return nil
}

// CreateItem inserts a new item; id and date are assigned by the database
func (r *BudgetRepository) CreateItem(ctx context.Context, item model.Item) (model.Item, error) {
	err := r.getExecutor(ctx).QueryRow(ctx,
		"INSERT INTO items (name, price, quantity, category) VALUES ($1, $2, $3, $4) RETURNING id, date",
		item.Name, item.Price, item.Quantity, item.Category,
	).Scan(&item.ID, &item.Date)
	if err != nil {
		return model.Item{}, fmt.Errorf("failed to create item: %w", err)
	}
	return item, nil
}

func (r *BudgetRepository) ListItems(ctx context.Context) ([]model.Item, error) {
	rows, err := r.getExecutor(ctx).Query(ctx,
		"SELECT id, name, price, quantity, category, date FROM items ORDER BY id",
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list items: %w", err)
	}
	defer rows.Close()

	return scanItems(rows)
}

func (r *BudgetRepository) ListItemsByCategory(ctx context.Context, category string) ([]model.Item, error) {
	rows, err := r.getExecutor(ctx).Query(ctx,
		"SELECT id, name, price, quantity, category, date FROM items WHERE category = $1 ORDER BY id",
		category,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list items by category: %w", err)
	}
	defer rows.Close()

	return scanItems(rows)
}

func scanItems(rows pgx.Rows) ([]model.Item, error) {
	var items []model.Item
	for rows.Next() {
		var it model.Item
		if err := rows.Scan(&it.ID, &it.Name, &it.Price, &it.Quantity, &it.Category, &it.Date); err != nil {
			return nil, fmt.Errorf("failed to scan item: %w", err)
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read items: %w", err)
	}
	return items, nil
}

func (r *BudgetRepository) DeleteAllItems(ctx context.Context) error {
	_, err := r.getExecutor(ctx).Exec(ctx, "DELETE FROM items")
	if err != nil {
		return fmt.Errorf("failed to delete items: %w", err)
	}
	return nil
}

// ResetUserInfo zeroes the ledger fields; the row itself is kept
func (r *BudgetRepository) ResetUserInfo(ctx context.Context) error {
	_, err := r.getExecutor(ctx).Exec(ctx,
		"UPDATE userinfo SET total_budget = 0, payments = 0, remaining_budget = 0",
	)
	if err != nil {
		return fmt.Errorf("failed to reset user info: %w", err)
	}
	return nil
}
