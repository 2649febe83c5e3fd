package models

import (
	"strings"
	"time"
)

type User struct {
	ID         int       `gorm:"primary_key" json:"user_id"`
	BusinessId string    `gorm:"size:64;index" json:"business_id"`
	FirstName  string    `gorm:"size:100;not null" json:"first_name"`
	LastName   string    `gorm:"size:100" json:"last_name"`
	Email      *string   `gorm:"size:100;unique" json:"email"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// DisplayName joins first and last name, as shown on invoice listings.
func DisplayName(firstName, lastName *string) string {
	var parts []string
	for _, p := range []*string{firstName, lastName} {
		if p != nil && strings.TrimSpace(*p) != "" {
			parts = append(parts, strings.TrimSpace(*p))
		}
	}
	return strings.Join(parts, " ")
}
