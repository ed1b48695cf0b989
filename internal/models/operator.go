package models

// Operator is an account allowed to drive the link. Journal entries for
// actions taken through the API carry its ID and Username.
type Operator struct {
	ID           int    `json:"id"`
	Username     string `json:"username"`
	PasswordHash string `json:"-"`
}
