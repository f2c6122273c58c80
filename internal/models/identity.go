package models

// IdentityKind tags how a caller's identity was established.
type IdentityKind int

const (
	Anonymous IdentityKind = iota
	LocalSession
	FederatedSession
)

func (k IdentityKind) String() string {
	switch k {
	case LocalSession:
		return "local"
	case FederatedSession:
		return "federated"
	default:
		return "anonymous"
	}
}

// Identity is the resolved principal for one request. For LocalSession the
// fields are the snapshot cached in the session record; for FederatedSession
// they come from the user repository at resolution time.
type Identity struct {
	Kind      IdentityKind
	SessionID string
	UserID    string
	Email     string
	Name      string
	Role      UserRole
	Avatar    string
}

func (i Identity) Authenticated() bool {
	return i.Kind != Anonymous && i.UserID != ""
}

func (i Identity) IsAdmin() bool {
	return i.Authenticated() && i.Role == UserRoleAdmin
}

// IdentityFromUser builds an identity for the given channel.
func IdentityFromUser(kind IdentityKind, sessionID string, user User) Identity {
	return Identity{
		Kind:      kind,
		SessionID: sessionID,
		UserID:    user.ID,
		Email:     user.Email,
		Name:      user.DisplayName,
		Role:      user.Role,
		Avatar:    user.Avatar(),
	}
}
