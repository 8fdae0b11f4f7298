package models

// School is a tenant row: every user belongs to one school and every room
// lives inside one.
type School struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}
