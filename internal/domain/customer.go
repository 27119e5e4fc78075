package domain

import "time"

type Role string

const (
	RoleCustomer Role = "customer"
	RoleStaff    Role = "staff"
	RoleAdmin    Role = "admin"
	RoleSystem   Role = "system"
)

// Identity is the authenticated actor behind a request. It is passed explicitly
// into every service operation.
type Identity struct {
	UserID int64  `json:"user_id"`
	Name   string `json:"name"`
	Role   Role   `json:"role"`
}

// IsStaff reports whether the actor may run back-office transitions.
func (i Identity) IsStaff() bool {
	return i.Role == RoleStaff || i.Role == RoleAdmin || i.Role == RoleSystem
}

// SystemIdentity is used by scheduled jobs and gateway callbacks.
var SystemIdentity = Identity{UserID: 0, Name: "system", Role: RoleSystem}

type MembershipTier int

const (
	MembershipRegular MembershipTier = 0
	MembershipGold    MembershipTier = 1
	MembershipDiamond MembershipTier = 2
)

type Customer struct {
	ID            int64          `json:"id"`
	Name          string         `json:"name"`
	Phone         string         `json:"phone"`
	Email         string         `json:"email"`
	Membership    MembershipTier `json:"membership"`
	LoyaltyPoints int64          `json:"loyalty_points"`
	CreatedAt     time.Time      `json:"created_at"`
}
