package models

import (
	"fmt"
	"strconv"
	"strings"
)

// Grid column labels of the editable reviews table.
const (
	ColumnID          = "Id"
	ColumnGame        = "Game"
	ColumnUser        = "User"
	ColumnReview      = "Review"
	ColumnRecommended = "Recommended"
)

// ReviewGridColumns lists the grid columns in display order.
var ReviewGridColumns = []string{ColumnID, ColumnGame, ColumnUser, ColumnReview, ColumnRecommended}

const (
	RecommendedYes = "Yes"
	RecommendedNo  = "No"

	// Stored values of reviews.recommended.
	RecommendedFlagYes = 1
	RecommendedFlagNo  = 0
)

// Review is a row of the reviews table with resolved surrogate keys.
type Review struct {
	ID          int64  `json:"id"`
	Review      string `json:"review"`
	Recommended int    `json:"recommended"` // 0 or 1
	GameID      int64  `json:"game_id"`
	UserID      int64  `json:"user_id"`
}

// NewReview is an insert request as the operator types it.
type NewReview struct {
	Review      string `json:"review"`
	Recommended int    `json:"recommended"`
	Game        string `json:"game"`
	User        string `json:"user"`
}

// ReviewRow is one row of the editable grid, keyed by human-readable names.
type ReviewRow struct {
	ID          int64  `json:"id"`
	Game        string `json:"game"`
	User        string `json:"user"`
	Review      string `json:"review"`
	Recommended int    `json:"recommended"`
}

// RecommendedLabel renders the stored 0/1 flag as the grid shows it.
func RecommendedLabel(recommended int) string {
	if recommended == 1 {
		return RecommendedYes
	}
	return RecommendedNo
}

// ParseRecommended accepts the grid labels and the stored 0/1 forms.
func ParseRecommended(v any) (int, error) {
	switch x := v.(type) {
	case int64:
		if x == 0 || x == 1 {
			return int(x), nil
		}
	case int:
		if x == 0 || x == 1 {
			return x, nil
		}
	case bool:
		if x {
			return 1, nil
		}
		return 0, nil
	case string:
		switch strings.ToLower(strings.TrimSpace(x)) {
		case "yes", "1", "true":
			return 1, nil
		case "no", "0", "false":
			return 0, nil
		}
	}
	return 0, fmt.Errorf("recommended must be Yes or No, got %v", v)
}

// ParseID reads a review id cell, which drivers return as int64 or text.
func ParseID(v any) (int64, error) {
	switch x := v.(type) {
	case int64:
		if x > 0 {
			return x, nil
		}
	case float64:
		if x > 0 && x == float64(int64(x)) {
			return int64(x), nil
		}
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(x), 10, 64)
		if err == nil && n > 0 {
			return n, nil
		}
	}
	return 0, fmt.Errorf("invalid review id %v", v)
}
