// Package access models the acting user of a request and the bounded
// privilege elevation used for approver state writes.
package access

import "github.com/garyjia/po-approval-route/internal/domain/entity"

// Scope names a single privileged operation
type Scope string

// ScopeApproverState allows writing the state field of an order approver
const ScopeApproverState Scope = "order_approver.state"

// Actor is the user performing the current request
type Actor struct {
	UserID    int64
	Name      string
	PartnerID int64
	Superuser bool
}

// FromUser builds an Actor from a user record
func FromUser(u *entity.User) Actor {
	return Actor{
		UserID:    u.ID,
		Name:      u.Name,
		PartnerID: u.PartnerID,
		Superuser: u.Superuser,
	}
}

// Is reports whether the actor is userID
func (a Actor) Is(userID int64) bool {
	return a.UserID == userID
}

// Grant is an elevation capability for exactly one scope. The zero value
// grants nothing.
type Grant struct {
	scope Scope
	actor Actor
}

// Elevate returns a grant for scope on behalf of the actor. Callers pass the
// grant to the one write that needs it and let it go out of scope afterwards.
func (a Actor) Elevate(scope Scope) Grant {
	return Grant{scope: scope, actor: a}
}

// Allows reports whether the grant covers scope
func (g Grant) Allows(scope Scope) bool {
	return g.scope != "" && g.scope == scope
}

// Actor returns the user on whose behalf the grant was issued
func (g Grant) Actor() Actor {
	return g.actor
}
