package domain

import (
	"strconv"
	"time"
)

type Customer struct {
	ID         int64     `json:"id"`
	Name       string    `json:"name"`
	Email      string    `json:"email"`
	Phone      string    `json:"phone"`
	NationalID string    `json:"-"`
	CreatedAt  time.Time `json:"created_at"`
}

type Role string

const (
	RoleCustomer Role = "customer"
	RoleStaff    Role = "staff"
	RoleAdmin    Role = "admin"
	RoleSystem   Role = "system"
)

// Caller identifies who is invoking the engine. It is passed explicitly on
// every call instead of being looked up from ambient session state.
type Caller struct {
	UserID int64 `json:"user_id"`
	Role   Role  `json:"role"`
}

// SystemCaller is used by maintenance jobs.
var SystemCaller = Caller{Role: RoleSystem}

// IsStaff reports whether the caller may drive the operational lifecycle.
func (c Caller) IsStaff() bool {
	return c.Role == RoleStaff || c.Role == RoleAdmin || c.Role == RoleSystem
}

func (c Caller) IsAdmin() bool {
	return c.Role == RoleAdmin || c.Role == RoleSystem
}

func (c Caller) String() string {
	if c.Role == RoleSystem {
		return "system"
	}
	return string(c.Role) + ":" + strconv.FormatInt(c.UserID, 10)
}
