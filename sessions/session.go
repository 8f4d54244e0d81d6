package sessions

import (
	"time"

	"github.com/jrsteele09/crm-session/users"
)

// Session is the application's local belief about the authenticated user.
type Session struct {
	UserID        string     `json:"user_id"`                   // Identity provider user ID
	DisplayName   string     `json:"display_name"`              // Name from the user profile
	Email         string     `json:"email"`                     // Email from the user profile
	Role          users.Role `json:"role"`                      // CRM role from the user profile
	Token         string     `json:"-"`                         // Credential token for the current identity
	TokenIssuedAt time.Time  `json:"token_issued_at,omitempty"` // When Token was issued
}

// NewSession builds a session from a user profile and a freshly issued token.
func NewSession(user *users.User, token string, issuedAt time.Time) *Session {
	return &Session{
		UserID:        user.ID,
		DisplayName:   user.Name,
		Email:         user.Email,
		Role:          user.Role,
		Token:         token,
		TokenIssuedAt: issuedAt,
	}
}

// Record is the durable form of a session. It carries no token, so a
// restored session has to obtain a fresh one before calling the platform.
type Record struct {
	UserID      string     `json:"user_id"`
	DisplayName string     `json:"display_name"`
	Email       string     `json:"email"`
	Role        users.Role `json:"role"`
	SavedAt     time.Time  `json:"saved_at"`
}

func (s *Session) Record(savedAt time.Time) *Record {
	return &Record{
		UserID:      s.UserID,
		DisplayName: s.DisplayName,
		Email:       s.Email,
		Role:        s.Role,
		SavedAt:     savedAt,
	}
}

// Valid reports whether the record can be restored at now.
func (r *Record) Valid(now time.Time, maxAge time.Duration) bool {
	if r == nil || r.UserID == "" {
		return false
	}
	if maxAge > 0 && now.Sub(r.SavedAt) > maxAge {
		return false
	}
	return true
}

func (r *Record) Session() *Session {
	return &Session{
		UserID:      r.UserID,
		DisplayName: r.DisplayName,
		Email:       r.Email,
		Role:        r.Role,
	}
}
