package rbac

import "github.com/lakehouse-dev/scheduler/internal/models"

// Actor is the authenticated identity performing an operation. It is resolved
// upstream and passed explicitly into every service call.
type Actor struct {
	ID   uint
	Role models.Role
}

// ActorOf builds the actor for a loaded user.
func ActorOf(u *models.User) Actor {
	return Actor{ID: u.ID, Role: u.Role}
}

// IsAdmin reports whether the actor holds the ADMIN role.
func (a Actor) IsAdmin() bool {
	return a.Role == models.RoleAdmin
}

// CanMutate reports whether actor may modify a record owned by targetOwnerID:
// administrators may modify anything, everyone else only their own records.
func CanMutate(actor Actor, targetOwnerID uint) bool {
	return actor.IsAdmin() || actor.ID == targetOwnerID
}
