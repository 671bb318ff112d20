// Package domain defines the persistence models and core value types for the
// coaching backend: principals, coach profiles, assignments, chat messages,
// and the ephemeral chatbot log. These types are mapped with GORM and shared
// across the repository and service layers.
package domain

// Role identifies the kind of account behind a Principal.
type Role string

// Principal roles. Meal providers never reach the coaching core endpoints but
// the role exists so tokens minted for them still parse.
const (
	RoleUser         Role = "user"
	RoleCoach        Role = "coach"
	RoleMealProvider Role = "meal_provider"
	RoleAdmin        Role = "admin"
)

// Plan is the subscription tier attached to a Principal.
type Plan string

// Subscription plans. Coach selection requires PlanPro.
const (
	PlanBasic Plan = "BASIC"
	PlanPro   Plan = "PRO"
)

// Principal is the authenticated identity issuing an operation. It is resolved
// once per request by the auth middleware from a verified bearer token and
// threaded explicitly through every service call; nothing below the HTTP layer
// ever trusts caller-supplied ids.
//
// Principals are provided by the identity service and never created or mutated
// here.
type Principal struct {
	ID   string `json:"id"`
	Role Role   `json:"role"`
	Plan Plan   `json:"plan"`
}

// IsAdmin reports whether the principal carries the admin role.
func (p Principal) IsAdmin() bool { return p.Role == RoleAdmin }

// IsCoach reports whether the principal carries the coach role.
func (p Principal) IsCoach() bool { return p.Role == RoleCoach }
