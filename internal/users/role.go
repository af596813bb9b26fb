package users

import "fmt"

// Role is a closed set. Pricing and authorization switch over it
// exhaustively, so adding a role is a compile-surfaced change.
type Role string

const (
	RoleGuest      Role = "guest"
	RoleRetailer   Role = "retailer"
	RoleWholesaler Role = "wholesaler"
	RoleAdmin      Role = "admin"
)

var validRoles = map[Role]struct{}{
	RoleGuest:      {},
	RoleRetailer:   {},
	RoleWholesaler: {},
	RoleAdmin:      {},
}

func ParseRole(s string) (Role, error) {
	r := Role(s)
	if _, ok := validRoles[r]; !ok {
		return "", fmt.Errorf("unknown role: %q", s)
	}
	return r, nil
}

// Registerable reports whether the role may be chosen at signup.
// Admin accounts are provisioned out of band.
func (r Role) Registerable() bool {
	return r == RoleRetailer || r == RoleWholesaler
}
