package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"budgetbook/internal/logger"
	"budgetbook/internal/service"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type BudgetHandler struct {
	svc *service.BudgetService
}

func NewBudgetHandler(svc *service.BudgetService) *BudgetHandler {
	return &BudgetHandler{svc: svc}
}

type AddItemRequest struct {
	Name     string   `json:"name"`
	Category string   `json:"category"`
	Price    *float64 `json:"price"`
	Quantity *int     `json:"quantity"`
}

type UpdateBudgetRequest struct {
	Budget *float64 `json:"budget"`
}

type ClearResponse struct {
	Message string `json:"message"`
}

func (h *BudgetHandler) GetItems(w http.ResponseWriter, r *http.Request) {
	items, err := h.svc.ListItems(r.Context(), "")
	if err != nil {
		logger.Get().Error("failed to fetch items", zap.Error(err))
		respondWithError(w, http.StatusInternalServerError, "Failed to fetch items")
		return
	}
	if len(items) == 0 {
		respondWithError(w, http.StatusNotFound, "No items found")
		return
	}
	respondWithJSON(w, http.StatusOK, items)
}

func (h *BudgetHandler) GetItemsByCategory(w http.ResponseWriter, r *http.Request) {
	category := chi.URLParam(r, "category")
	if category == "" {
		respondWithError(w, http.StatusBadRequest, "Category is required")
		return
	}

	items, err := h.svc.ListItems(r.Context(), category)
	if err != nil {
		logger.Get().Error("failed to fetch items by category",
			zap.String("category", category),
			zap.Error(err))
		respondWithError(w, http.StatusInternalServerError, "Failed to fetch items")
		return
	}
	if len(items) == 0 {
		respondWithError(w, http.StatusNotFound, "No items found in this category")
		return
	}
	respondWithJSON(w, http.StatusOK, items)
}

func (h *BudgetHandler) GetUserInfo(w http.ResponseWriter, r *http.Request) {
	info, err := h.svc.GetUserInfo(r.Context())
	if err != nil {
		if errors.Is(err, service.ErrUserInfoNotFound) {
			respondWithError(w, http.StatusNotFound, "User info not found")
			return
		}
		logger.Get().Error("failed to fetch user info", zap.Error(err))
		respondWithError(w, http.StatusInternalServerError, "Failed to fetch user info")
		return
	}
	respondWithJSON(w, http.StatusOK, info)
}

func (h *BudgetHandler) UpdateBudget(w http.ResponseWriter, r *http.Request) {
	var req UpdateBudgetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Budget == nil {
		respondWithError(w, http.StatusBadRequest, "Valid budget amount is required")
		return
	}

	info, err := h.svc.TopUpBudget(r.Context(), *req.Budget)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrNegativeBudget):
			respondWithError(w, http.StatusBadRequest, "Budget cannot be negative")
		case errors.Is(err, service.ErrInvalidAmount):
			respondWithError(w, http.StatusBadRequest, "Valid budget amount is required")
		case errors.Is(err, service.ErrUserInfoNotFound):
			respondWithError(w, http.StatusNotFound, "User info not found")
		default:
			logger.Get().Error("failed to update budget", zap.Error(err))
			respondWithError(w, http.StatusInternalServerError, "Failed to update budget")
		}
		return
	}
	respondWithJSON(w, http.StatusOK, info)
}

func (h *BudgetHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	var req AddItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Name, category, quantity, and valid price are required")
		return
	}
	if req.Name == "" || req.Category == "" || req.Price == nil || req.Quantity == nil {
		respondWithError(w, http.StatusBadRequest, "Name, category, quantity, and valid price are required")
		return
	}

	item, err := h.svc.RecordPurchase(r.Context(), req.Name, req.Category, *req.Price, *req.Quantity)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInsufficientBudget):
			respondWithError(w, http.StatusBadRequest, "Insufficient budget")
		case errors.Is(err, service.ErrUserInfoNotFound):
			respondWithError(w, http.StatusNotFound, "User info not found")
		case errors.Is(err, service.ErrEmptyName),
			errors.Is(err, service.ErrEmptyCategory),
			errors.Is(err, service.ErrNegativePrice),
			errors.Is(err, service.ErrInvalidQuantity),
			errors.Is(err, service.ErrInvalidAmount):
			respondWithError(w, http.StatusBadRequest, err.Error())
		default:
			logger.Get().Error("failed to add item",
				zap.String("name", req.Name),
				zap.String("category", req.Category),
				zap.Error(err))
			respondWithError(w, http.StatusInternalServerError, "Failed to add item")
		}
		return
	}
	respondWithJSON(w, http.StatusCreated, item)
}

func (h *BudgetHandler) Clear(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.ClearAll(r.Context()); err != nil {
		logger.Get().Error("failed to clear database", zap.Error(err))
		respondWithError(w, http.StatusInternalServerError, "Failed to clear database")
		return
	}
	respondWithJSON(w, http.StatusOK, ClearResponse{Message: "Database cleared successfully"})
}
