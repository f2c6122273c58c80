package models

import "time"

type UserRole string

const (
	UserRoleUser  UserRole = "user"
	UserRoleAdmin UserRole = "admin"
)

func (r UserRole) Valid() bool {
	return r == UserRoleUser || r == UserRoleAdmin
}

type User struct {
	ID                  string
	Email               string
	PasswordHash        []byte
	DisplayName         string
	Role                UserRole
	AvatarURL           *string
	FederatedSubject    *string
	ResetTokenHash      []byte
	ResetTokenExpiresAt *time.Time
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// HasPassword reports whether the account can sign in with local credentials.
// Accounts created through federated login carry no hash.
func (u User) HasPassword() bool {
	return len(u.PasswordHash) > 0
}

func (u User) IsAdmin() bool {
	return u.Role == UserRoleAdmin
}

func (u User) Avatar() string {
	if u.AvatarURL == nil {
		return ""
	}
	return *u.AvatarURL
}
