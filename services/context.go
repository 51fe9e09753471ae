package services

import (
	"voltswap/apperr"
	"voltswap/models"
)

// Caller identifies who is invoking a core operation. Handlers build it
// from the session; tests build it directly. Services never reach into
// ambient request state.
type Caller struct {
	UserID uint
	Role   models.Role
}

func (c Caller) requireRole(roles ...models.Role) error {
	if c.UserID == 0 {
		return apperr.Unauthorized("not_authenticated", "login required")
	}
	for _, r := range roles {
		if c.Role == r {
			return nil
		}
	}
	return apperr.Forbidden("insufficient_role", "caller role cannot perform this operation")
}
