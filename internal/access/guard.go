package access

import (
	"errors"

	"github.com/DevOwais28/Expense-Tracker/internal/metrics"
	"github.com/DevOwais28/Expense-Tracker/internal/models"
)

var (
	ErrNotAuthenticated = errors.New("not authenticated")
	ErrForbidden        = errors.New("forbidden")
	ErrSelfTarget       = errors.New("cannot target own account")
)

type Action string

const (
	ReadOwn     Action = "read-own"
	Create      Action = "create"
	UpdateOwn   Action = "update-own"
	DeleteOwn   Action = "delete-own"
	ListAll     Action = "list-all"
	ManageUsers Action = "manage-users"
	ViewStats   Action = "view-stats"
	DeleteUser  Action = "delete-user"
	ChangeRole  Action = "change-role"
)

func (a Action) adminOnly() bool {
	switch a {
	case ListAll, ManageUsers, ViewStats, DeleteUser, ChangeRole:
		return true
	}
	return false
}

func (a Action) selfProtected() bool {
	return a == DeleteUser || a == ChangeRole
}

// Resource describes what an action touches. OwnerID is set for owned
// records, TargetUserID for user-management actions.
type Resource struct {
	OwnerID      string
	TargetUserID string
}

func Owned(ownerID string) Resource { return Resource{OwnerID: ownerID} }

func TargetUser(userID string) Resource { return Resource{TargetUserID: userID} }

// Authorize decides whether identity may perform action on resource. It
// returns nil when allowed. The role is the one captured on identity.
func Authorize(identity models.Identity, action Action, resource Resource) error {
	err := decide(identity, action, resource)
	if err != nil {
		metrics.AccessDenied.WithLabelValues(string(action), reason(err)).Inc()
	}
	return err
}

func decide(identity models.Identity, action Action, resource Resource) error {
	if !identity.Authenticated() {
		return ErrNotAuthenticated
	}
	if action.selfProtected() && resource.TargetUserID == identity.UserID {
		return ErrSelfTarget
	}
	if identity.IsAdmin() {
		return nil
	}
	if action.adminOnly() {
		return ErrForbidden
	}
	if resource.OwnerID != "" && resource.OwnerID == identity.UserID {
		return nil
	}
	return ErrForbidden
}

func reason(err error) string {
	switch {
	case errors.Is(err, ErrNotAuthenticated):
		return "unauthenticated"
	case errors.Is(err, ErrSelfTarget):
		return "self_target"
	default:
		return "forbidden"
	}
}
