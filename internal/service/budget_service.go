package service

import (
	"context"
	"errors"
	"math"
	"strings"

	"budgetbook/internal/model"

	"github.com/jackc/pgx/v5"
)

var (
	ErrUserInfoNotFound   = errors.New("user info not found")
	ErrInsufficientBudget = errors.New("insufficient budget")
	ErrNegativeBudget     = errors.New("budget cannot be negative")
	ErrInvalidAmount      = errors.New("amount must be a finite number")
	ErrEmptyName          = errors.New("name is required")
	ErrEmptyCategory      = errors.New("category is required")
	ErrNegativePrice      = errors.New("price cannot be negative")
	ErrInvalidQuantity    = errors.New("quantity must be a positive integer")
)

// Repository is the persistence contract for the budget ledger. Mutations
// that touch the ledger row go through RunAtomic so that the read-check-write
// cycle is a single transaction.
type Repository interface {
	RunAtomic(ctx context.Context, fn func(ctx context.Context) error) error
	GetUserInfo(ctx context.Context) (model.UserInfo, error)
	GetUserInfoForUpdate(ctx context.Context) (model.UserInfo, error)
	UpdateUserInfo(ctx context.Context, info model.UserInfo) error
	CreateItem(ctx context.Context, item model.Item) (model.Item, error)
	ListItems(ctx context.Context) ([]model.Item, error)
	ListItemsByCategory(ctx context.Context, category string) ([]model.Item, error)
	DeleteAllItems(ctx context.Context) error
	ResetUserInfo(ctx context.Context) error
}

type BudgetService struct {
	repo Repository
}

func NewBudgetService(repo Repository) *BudgetService {
	return &BudgetService{repo: repo}
}

// TopUpBudget adds amount to the total budget (negative amounts act as
// withdrawals) and recomputes the remaining budget. The new total may not
// go below zero.
func (s *BudgetService) TopUpBudget(ctx context.Context, amount float64) (model.UserInfo, error) {
	if math.IsNaN(amount) || math.IsInf(amount, 0) {
		return model.UserInfo{}, ErrInvalidAmount
	}

	var updated model.UserInfo
	err := s.repo.RunAtomic(ctx, func(ctx context.Context) error {
		info, err := s.repo.GetUserInfoForUpdate(ctx)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrUserInfoNotFound
			}
			return err
		}

		newTotal := info.TotalBudget + amount
		if newTotal < 0 {
			return ErrNegativeBudget
		}

		info.TotalBudget = newTotal
		info.RemainingBudget = newTotal - info.Payments
		if err := s.repo.UpdateUserInfo(ctx, info); err != nil {
			return err
		}

		updated = info
		return nil
	})
	if err != nil {
		return model.UserInfo{}, err
	}
	return updated, nil
}

// RecordPurchase creates an item and debits the ledger by price*quantity in
// one transaction. The purchase is rejected outright when the remaining
// budget is strictly less than the total price; an exactly-affordable
// purchase goes through.
func (s *BudgetService) RecordPurchase(ctx context.Context, name, category string, price float64, quantity int) (model.Item, error) {
	if strings.TrimSpace(name) == "" {
		return model.Item{}, ErrEmptyName
	}
	if strings.TrimSpace(category) == "" {
		return model.Item{}, ErrEmptyCategory
	}
	if math.IsNaN(price) || math.IsInf(price, 0) {
		return model.Item{}, ErrInvalidAmount
	}
	if price < 0 {
		return model.Item{}, ErrNegativePrice
	}
	if quantity <= 0 {
		return model.Item{}, ErrInvalidQuantity
	}

	totalPrice := price * float64(quantity)

	var created model.Item
	err := s.repo.RunAtomic(ctx, func(ctx context.Context) error {
		// 1. Lock the ledger row and get the current state
		info, err := s.repo.GetUserInfoForUpdate(ctx)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrUserInfoNotFound
			}
			return err
		}

		// 2. Check the remaining budget
		if info.RemainingBudget < totalPrice {
			return ErrInsufficientBudget
		}

		// 3. Create the item
		created, err = s.repo.CreateItem(ctx, model.Item{
			Name:     name,
			Price:    price,
			Quantity: quantity,
			Category: category,
		})
		if err != nil {
			return err
		}

		// 4. Debit the ledger
		info.Payments += totalPrice
		info.RemainingBudget -= totalPrice
		return s.repo.UpdateUserInfo(ctx, info)
	})
	if err != nil {
		return model.Item{}, err
	}
	return created, nil
}

// ListItems returns all items, or only those in the given category when it
// is non-empty (case-sensitive exact match). An empty result is not an
// error at this level.
func (s *BudgetService) ListItems(ctx context.Context, category string) ([]model.Item, error) {
	if category == "" {
		return s.repo.ListItems(ctx)
	}
	return s.repo.ListItemsByCategory(ctx, category)
}

func (s *BudgetService) GetUserInfo(ctx context.Context) (model.UserInfo, error) {
	info, err := s.repo.GetUserInfo(ctx)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.UserInfo{}, ErrUserInfoNotFound
		}
		return model.UserInfo{}, err
	}
	return info, nil
}

// ClearAll deletes every item and zeroes the ledger fields. The ledger row
// itself is kept, so the operation is idempotent.
func (s *BudgetService) ClearAll(ctx context.Context) error {
	return s.repo.RunAtomic(ctx, func(ctx context.Context) error {
		if err := s.repo.DeleteAllItems(ctx); err != nil {
			return err
		}
		return s.repo.ResetUserInfo(ctx)
	})
}
