package models

// User is a row of the users table. User names are unique.
type User struct {
	ID       int64  `json:"id"`
	UserName string `json:"user_name"`
}
