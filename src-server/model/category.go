package model

import "github.com/uptrace/bun"

// ID of the built-in category recurring inbox items are scheduled into
const FocusCategoryID = "focus"

type Category struct {
	bun.BaseModel `bun:"table:categories"`

	ID       string  `bun:"id,pk"`        // required
	UserID   *string `bun:"user_id"`      // nil for system categories
	Name     string  `bun:"name,notnull"` // required
	IsSystem bool    `bun:"is_system,notnull"`
}
