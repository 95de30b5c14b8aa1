package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"budgetbook/internal/handler"
	"budgetbook/internal/model"
	"budgetbook/internal/repository"
	"budgetbook/internal/service"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/stretchr/testify/require"
)

func setupTestDB(t *testing.T) *pgxpool.Pool {
	_ = godotenv.Load("../../.env")

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		t.Skip("DATABASE_URL not set")
	}

	pool, err := pgxpool.New(context.Background(), dbURL)
	if err != nil {
		t.Fatalf("Unable to connect to database: %v", err)
	}

	if err := pool.Ping(context.Background()); err != nil {
		t.Fatalf("Unable to ping database: %v", err)
	}

	schema := []string{
		`CREATE TABLE IF NOT EXISTS userinfo (
			id SERIAL PRIMARY KEY,
			total_budget DOUBLE PRECISION NOT NULL DEFAULT 0,
			payments DOUBLE PRECISION NOT NULL DEFAULT 0,
			remaining_budget DOUBLE PRECISION NOT NULL DEFAULT 0
		)`,
		`CREATE TABLE IF NOT EXISTS items (
			id SERIAL PRIMARY KEY,
			name TEXT NOT NULL,
			price DOUBLE PRECISION NOT NULL,
			quantity INTEGER NOT NULL,
			category TEXT NOT NULL,
			date TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
	}
	for _, stmt := range schema {
		if _, err := pool.Exec(context.Background(), stmt); err != nil {
			t.Fatalf("Failed to create table: %v", err)
		}
	}

	// Truncate tables to ensure clean state
	for _, table := range []string{"items", "userinfo"} {
		_, err := pool.Exec(context.Background(), "TRUNCATE TABLE "+table+" RESTART IDENTITY")
		if err != nil {
			t.Fatalf("Failed to truncate table %s: %v", table, err)
		}
	}

	return pool
}

func newTestHandler(pool *pgxpool.Pool) *handler.Handler {
	repo := repository.NewBudgetRepository(pool)
	svc := service.NewBudgetService(repo)
	return handler.NewHandler(handler.NewBudgetHandler(svc))
}

func seedLedger(t *testing.T, pool *pgxpool.Pool, total, payments float64) {
	t.Helper()
	_, err := pool.Exec(context.Background(),
		"INSERT INTO userinfo (total_budget, payments, remaining_budget) VALUES ($1, $2, $3)",
		total, payments, total-payments)
	require.NoError(t, err)
}

func doJSON(h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestAddItem_Integration(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()
	ctx := context.Background()

	seedLedger(t, pool, 12000, 5000)
	h := newTestHandler(pool)

	w := doJSON(h, http.MethodPost, "/items", map[string]any{
		"name": "moze", "category": "food", "price": 10.5, "quantity": 2,
	})
	require.Equal(t, http.StatusCreated, w.Code)

	var created model.Item
	require.NoError(t, json.NewDecoder(w.Body).Decode(&created))
	require.Equal(t, "moze", created.Name)
	require.Equal(t, 2, created.Quantity)
	require.NotZero(t, created.ID)
	require.False(t, created.Date.IsZero())

	var payments, remaining float64
	err := pool.QueryRow(ctx, "SELECT payments, remaining_budget FROM userinfo").Scan(&payments, &remaining)
	require.NoError(t, err)
	require.InDelta(t, 5021, payments, 1e-9)
	require.InDelta(t, 6979, remaining, 1e-9)

	var count int
	require.NoError(t, pool.QueryRow(ctx, "SELECT COUNT(*) FROM items").Scan(&count))
	require.Equal(t, 1, count)
}

func TestAddItem_InsufficientBudget(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()
	ctx := context.Background()

	seedLedger(t, pool, 100, 95)
	h := newTestHandler(pool)

	w := doJSON(h, http.MethodPost, "/items", map[string]any{
		"name": "boat", "category": "luxury", "price": 10.0, "quantity": 1,
	})
	require.Equal(t, http.StatusBadRequest, w.Code)

	var resp map[string]string
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	require.Equal(t, "Insufficient budget", resp["error"])

	// No partial state: no item row and an untouched ledger
	var count int
	require.NoError(t, pool.QueryRow(ctx, "SELECT COUNT(*) FROM items").Scan(&count))
	require.Zero(t, count)

	var payments float64
	require.NoError(t, pool.QueryRow(ctx, "SELECT payments FROM userinfo").Scan(&payments))
	require.InDelta(t, 95, payments, 1e-9)
}

func TestAddItem_MissingFields(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()

	seedLedger(t, pool, 1000, 0)
	h := newTestHandler(pool)

	w := doJSON(h, http.MethodPost, "/items", map[string]any{"name": "moze", "category": "food"})
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAddItem_NoLedger(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()

	h := newTestHandler(pool)

	w := doJSON(h, http.MethodPost, "/items", map[string]any{
		"name": "moze", "category": "food", "price": 10.5, "quantity": 2,
	})
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestUpdateBudget_Integration(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()

	seedLedger(t, pool, 12000, 5000)
	h := newTestHandler(pool)

	// A top-up that would drive the total below zero is rejected
	w := doJSON(h, http.MethodPatch, "/userinfo/budget", map[string]any{"budget": -20000})
	require.Equal(t, http.StatusBadRequest, w.Code)

	// Ledger unchanged after the rejection
	w = doJSON(h, http.MethodGet, "/userinfo", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var info model.UserInfo
	require.NoError(t, json.NewDecoder(w.Body).Decode(&info))
	require.InDelta(t, 12000, info.TotalBudget, 1e-9)

	// A valid top-up is applied as a delta
	w = doJSON(h, http.MethodPatch, "/userinfo/budget", map[string]any{"budget": 500})
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.NewDecoder(w.Body).Decode(&info))
	require.InDelta(t, 12500, info.TotalBudget, 1e-9)
	require.InDelta(t, 7500, info.RemainingBudget, 1e-9)

	// Non-numeric budget
	w = doJSON(h, http.MethodPatch, "/userinfo/budget", map[string]any{"budget": "lots"})
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetItems(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()
	ctx := context.Background()

	seedLedger(t, pool, 12000, 5000)
	h := newTestHandler(pool)

	// Empty table reports not found
	w := doJSON(h, http.MethodGet, "/items", nil)
	require.Equal(t, http.StatusNotFound, w.Code)

	_, err := pool.Exec(ctx,
		"INSERT INTO items (name, price, quantity, category) VALUES ('plos', 100, 1, 'close'), ('moze', 10.5, 2, 'food')")
	require.NoError(t, err)

	w = doJSON(h, http.MethodGet, "/items", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var items []model.Item
	require.NoError(t, json.NewDecoder(w.Body).Decode(&items))
	require.Len(t, items, 2)

	// Category filter returns exactly the matching item
	w = doJSON(h, http.MethodGet, "/items/category/close", nil)
	require.Equal(t, http.StatusOK, w.Code)
	items = nil
	require.NoError(t, json.NewDecoder(w.Body).Decode(&items))
	require.Len(t, items, 1)
	require.Equal(t, "plos", items[0].Name)

	// Unknown category is a 404
	w = doJSON(h, http.MethodGet, "/items/category/missing", nil)
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetUserInfo_NotFound(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()

	h := newTestHandler(pool)

	w := doJSON(h, http.MethodGet, "/userinfo", nil)
	require.Equal(t, http.StatusNotFound, w.Code)

	var resp map[string]string
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	require.Equal(t, "User info not found", resp["error"])
}

func TestClear_Idempotent(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()
	ctx := context.Background()

	seedLedger(t, pool, 12000, 5000)
	_, err := pool.Exec(ctx,
		"INSERT INTO items (name, price, quantity, category) VALUES ('moze', 10.5, 2, 'food')")
	require.NoError(t, err)

	h := newTestHandler(pool)

	for i := 0; i < 2; i++ {
		w := doJSON(h, http.MethodDelete, "/clear", nil)
		require.Equal(t, http.StatusOK, w.Code)

		var resp map[string]string
		require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
		require.Equal(t, "Database cleared successfully", resp["message"])

		var count int
		require.NoError(t, pool.QueryRow(ctx, "SELECT COUNT(*) FROM items").Scan(&count))
		require.Zero(t, count)

		var total, payments, remaining float64
		err = pool.QueryRow(ctx,
			"SELECT total_budget, payments, remaining_budget FROM userinfo").Scan(&total, &payments, &remaining)
		require.NoError(t, err)
		require.Zero(t, total)
		require.Zero(t, payments)
		require.Zero(t, remaining)
	}
}

func TestAddItem_Concurrency(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()
	ctx := context.Background()

	// Remaining budget covers exactly 10 purchases of 10. We launch 50
	// concurrent requests; two passing the check against the same stale
	// remaining budget would jointly overdraw the ledger.
	itemPrice := 10.0
	affordable := 10
	seedLedger(t, pool, 500, 400)

	h := newTestHandler(pool)

	concurrentRequests := 50
	results := make(chan int, concurrentRequests)

	for i := 0; i < concurrentRequests; i++ {
		go func() {
			w := doJSON(h, http.MethodPost, "/items", map[string]any{
				"name": "snack", "category": "food", "price": itemPrice, "quantity": 1,
			})
			results <- w.Code
		}()
	}

	successCount := 0
	failCount := 0
	for i := 0; i < concurrentRequests; i++ {
		if <-results == http.StatusCreated {
			successCount++
		} else {
			failCount++
		}
	}

	require.Equal(t, affordable, successCount)
	require.Equal(t, concurrentRequests-affordable, failCount)

	// Verify DB consistency
	var total, payments, remaining float64
	err := pool.QueryRow(ctx,
		"SELECT total_budget, payments, remaining_budget FROM userinfo").Scan(&total, &payments, &remaining)
	require.NoError(t, err)
	require.InDelta(t, 500, total, 1e-9)
	require.InDelta(t, 500, payments, 1e-9)
	require.InDelta(t, 0, remaining, 1e-9)

	var count int
	require.NoError(t, pool.QueryRow(ctx, "SELECT COUNT(*) FROM items").Scan(&count))
	require.Equal(t, affordable, count)
}
