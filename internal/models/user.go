package models

// UserRole represents the roles an authenticated actor may carry.
type UserRole string

const (
	RoleStudent    UserRole = "STUDENT"
	RoleSupervisor UserRole = "SUPERVISOR"
	RoleCommittee  UserRole = "COMMITTEE"
	RoleAdmin      UserRole = "ADMIN"
	// RoleSystem is never issued in tokens; it marks scheduled internal work.
	RoleSystem UserRole = "SYSTEM"
)

// Valid reports whether the role may appear in an access token.
func (r UserRole) Valid() bool {
	switch r {
	case RoleStudent, RoleSupervisor, RoleCommittee, RoleAdmin:
		return true
	}
	return false
}

// Reviewer roles may approve, request revisions and grade.
var ReviewerRoles = []UserRole{RoleSupervisor, RoleCommittee}

// Actor is the server-verified identity performing an operation.
type Actor struct {
	ID   int64    `json:"id"`
	Role UserRole `json:"role"`
}

// SystemActor identifies the deadline sweeper and other scheduled work.
func SystemActor() Actor {
	return Actor{ID: 0, Role: RoleSystem}
}

// HasRole reports whether the actor holds one of the given roles.
func (a Actor) HasRole(roles ...UserRole) bool {
	for _, role := range roles {
		if a.Role == role {
			return true
		}
	}
	return false
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Limit      int    `json:"limit"`
	NextCursor string `json:"next_cursor,omitempty"`
}
