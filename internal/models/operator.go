package models

// Operator is an account allowed to drive the local HTTP control API.
type Operator struct {
	ID           int    `json:"id"`
	Username     string `json:"username"`
	PasswordHash string `json:"-"`
}
