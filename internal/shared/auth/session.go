package auth

// User is the authenticated principal as seen by the gateway.
type User struct {
	ID     string
	IsRoot bool
}

// Session is the request-scoped identity handed to handlers. The gateway
// only consumes sessions, it never issues them.
type Session struct {
	ID    string
	User  User
	Roles []string
	Clubs []string
}

// NewSession builds a session from validated claims.
func NewSession(c *Claims) *Session {
	if c == nil {
		return nil
	}
	return &Session{
		ID:    c.SessionID,
		User:  User{ID: c.Subject, IsRoot: c.HasRole("admin")},
		Roles: c.Roles,
		Clubs: c.ClubIDs,
	}
}

// HasRole reports whether the session grants the named role; root grants
// everything.
func (s *Session) HasRole(role string) bool {
	if s == nil {
		return false
	}
	if s.User.IsRoot {
		return true
	}
	for _, r := range s.Roles {
		if r == role {
			return true
		}
	}
	return false
}
