package model

import "time"

type Item struct {
	ID       int       `json:"id"`
	Name     string    `json:"name"`
	Price    float64   `json:"price"`
	Quantity int       `json:"quantity"`
	Category string    `json:"category"`
	Date     time.Time `json:"date"`
}

// UserInfo is the singleton budget ledger. After every successful mutation
// remaining_budget == total_budget - payments.
type UserInfo struct {
	ID              int     `json:"id"`
	TotalBudget     float64 `json:"total_budget"`
	Payments        float64 `json:"payments"`
	RemainingBudget float64 `json:"remaining_budget"`
}
