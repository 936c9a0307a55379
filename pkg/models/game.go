package models

// Game is a row of the games table. Game names are unique.
type Game struct {
	ID       int64  `json:"id"`
	GameName string `json:"game_name"`
}
