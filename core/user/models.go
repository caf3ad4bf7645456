package user

import (
	"time"

	"github.com/volatiletech/null/v8"

	"github.com/trezcool/dormportal/core"
)

// DormUser is the local record of a staff member who signed in through the identity provider.
type DormUser struct {
	ID         int         `json:"id" db:"id"`
	Email      string      `json:"email" db:"email"`
	Name       string      `json:"name" db:"name"`
	PictureURL null.String `json:"picture_url" db:"picture_url"`
	CreatedAt  time.Time   `json:"created_at" db:"created_at"` // UTC
}

// Claim is the verified identity returned by the identity provider.
type Claim struct {
	Email     string
	Name      string
	GivenName string
	Picture   string
}

// Clean normalizes the claim: lowercased email, and a display name that falls back
// to the given name, then the email, then "User".
func (c Claim) Clean() Claim {
	c.Email = core.CleanString(c.Email, true /* lower */)
	name := core.CleanString(c.Name)
	if name == "" {
		name = core.CleanString(c.GivenName)
	}
	if name == "" {
		name = c.Email
	}
	if name == "" {
		name = "User"
	}
	c.Name = name
	c.Picture = core.CleanString(c.Picture)
	return c
}
