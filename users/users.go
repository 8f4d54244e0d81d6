package users

import (
	"fmt"
	"strings"
	"time"
	"unicode"

	"golang.org/x/crypto/bcrypt"
)

// Role is the CRM role attached to a user profile. It decides the dashboard
// and which CRM areas the route guards open.
type Role string

const (
	RoleAdmin             Role = "admin"              // Full access including user management and configuration
	RoleSalesAgent        Role = "sales_agent"        // Leads, deals, quotations
	RoleOperationsManager Role = "operations_manager" // Leads, deals, jobs, equipment
	RoleOperator          Role = "operator"           // Jobs, site assessments, job summaries
)

// Roles lists every valid role.
var Roles = []Role{RoleAdmin, RoleSalesAgent, RoleOperationsManager, RoleOperator}

func (r Role) Valid() bool {
	for _, role := range Roles {
		if r == role {
			return true
		}
	}
	return false
}

// ParseRole converts user input into a Role.
func ParseRole(s string) (Role, error) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	if !r.Valid() {
		return "", fmt.Errorf("unknown role %q", s)
	}
	return r, nil
}

// User is the profile record the identity platform keeps for an account.
type User struct {
	ID           string    `json:"id,omitempty"`         // Identifier issued by the identity provider
	Name         string    `json:"name,omitempty"`       // Display name
	Email        string    `json:"email,omitempty"`      // Sign-in email
	Role         Role      `json:"role,omitempty"`       // CRM role
	PasswordHash string    `json:"-"`                    // Hashed password - never serialize
	Disabled     bool      `json:"disabled,omitempty"`   // Disabled accounts cannot sign in
	CreatedAt    time.Time `json:"created_at,omitempty"` // When the account was registered
}

func (u *User) HasRole(roles ...Role) bool {
	for _, r := range roles {
		if u.Role == r {
			return true
		}
	}
	return false
}

// ValidatePasswordStrength checks if password meets security requirements:
// - At least 8 characters long
// - Contains uppercase and lowercase letters
// - Contains at least one number
func ValidatePasswordStrength(password string) error {
	if len(password) < 8 {
		return fmt.Errorf("password must be at least 8 characters long")
	}

	var (
		hasUpper  bool
		hasLower  bool
		hasNumber bool
	)

	for _, char := range password {
		if unicode.IsUpper(char) {
			hasUpper = true
		} else if unicode.IsLower(char) {
			hasLower = true
		} else if unicode.IsDigit(char) {
			hasNumber = true
		}
	}

	if !hasUpper {
		return fmt.Errorf("password must contain at least one uppercase letter")
	}
	if !hasLower {
		return fmt.Errorf("password must contain at least one lowercase letter")
	}
	if !hasNumber {
		return fmt.Errorf("password must contain at least one number")
	}

	return nil
}

func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(bytes), err
}

func CheckPasswordHash(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}

// NormalizeEmail lower-cases and trims an email so lookups are case-insensitive.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
