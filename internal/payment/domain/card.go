package domain

import "time"

// UserCard is a tokenized instrument held by the provider's vault. It is not
// an authoritative financial record; rows are deactivated, never deleted.
type UserCard struct {
	ID            string
	UserID        string
	Provider      Provider
	ProviderToken string
	CardMask      string
	LastFour      string
	Brand         string
	ExpiryMonth   string
	ExpiryYear    string
	HolderName    string
	IsDefault     bool
	IsActive      bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}
