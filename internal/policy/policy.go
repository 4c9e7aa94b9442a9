// Package policy holds the authorization table consulted by the services.
// Every protected operation names an Action; the table lists which kinds of
// actor may perform it. Anything not listed is denied.
package policy

import (
	"fmt"

	"blogapi/internal/auth"
	"blogapi/internal/models"
)

// Action identifies a protected operation.
type Action string

const (
	PostCreate       Action = "post.create"
	PostUpdate       Action = "post.update"
	PostDelete       Action = "post.delete"
	PostViewDraft    Action = "post.view_draft"
	PostStats        Action = "post.stats"
	PostLike         Action = "post.like"
	CommentCreate    Action = "comment.create"
	CommentUpdate    Action = "comment.update"
	CommentDelete    Action = "comment.delete"
	CommentModerate  Action = "comment.moderate"
	CategoryWrite    Action = "category.write"
	TagWrite         Action = "tag.write"
	UserList         Action = "user.list"
	UserView         Action = "user.view"
	UserDelete       Action = "user.delete"
	NotificationRead Action = "notification.read"
	ModerationQueue  Action = "moderation.queue"
)

// Who is one kind of actor a rule admits.
type Who int

const (
	// Anyone includes anonymous callers.
	Anyone Who = iota
	Authenticated
	// Owner is an authenticated actor whose id equals the resource owner.
	Owner
	Staff
	Superuser
	// PublicProfile admits anyone when the resource is marked public.
	PublicProfile
)

func (w Who) String() string {
	switch w {
	case Anyone:
		return "anyone"
	case Authenticated:
		return "authenticated"
	case Owner:
		return "owner"
	case Staff:
		return "staff"
	case Superuser:
		return "superuser"
	case PublicProfile:
		return "public-profile"
	}
	return fmt.Sprintf("who(%d)", int(w))
}

// Rule admits one kind of actor.
type Rule struct {
	Who Who
}

// Table maps each action to the rules that allow it; any matching rule allows.
var Table = map[Action][]Rule{
	PostCreate:       {{Authenticated}},
	PostUpdate:       {{Owner}, {Staff}},
	PostDelete:       {{Owner}, {Staff}},
	PostViewDraft:    {{Owner}, {Staff}},
	PostStats:        {{Owner}, {Staff}},
	PostLike:         {{Authenticated}},
	CommentCreate:    {{Authenticated}},
	CommentUpdate:    {{Owner}, {Staff}},
	CommentDelete:    {{Owner}, {Staff}},
	CommentModerate:  {{Staff}},
	ModerationQueue:  {{Staff}},
	CategoryWrite:    {{Staff}},
	TagWrite:         {{Staff}},
	UserList:         {{Staff}},
	UserView:         {{PublicProfile}, {Owner}, {Staff}},
	UserDelete:       {{Owner}, {Superuser}},
	NotificationRead: {{Owner}},
}

// Actor is the caller. A zero UserID means anonymous.
type Actor struct {
	UserID      uint
	Username    string
	IsStaff     bool
	IsSuperuser bool
}

// Anonymous is the actor of an unauthenticated request.
var Anonymous = Actor{}

// FromClaims builds an Actor from verified token claims; nil claims are anonymous.
func FromClaims(c *auth.Claims) Actor {
	if c == nil {
		return Anonymous
	}
	id, err := c.UserID()
	if err != nil {
		return Anonymous
	}
	return Actor{UserID: id, Username: c.Username, IsStaff: c.IsStaff, IsSuperuser: c.IsSuperuser}
}

// FromUser builds an Actor from a loaded user.
func FromUser(u *models.User) Actor {
	if u == nil {
		return Anonymous
	}
	return Actor{UserID: u.ID, Username: u.Username, IsStaff: u.IsStaff, IsSuperuser: u.IsSuperuser}
}

// Authenticated reports whether the actor carries an identity.
func (a Actor) Authenticated() bool { return a.UserID != 0 }

// Privileged reports whether the actor is staff or superuser.
func (a Actor) Privileged() bool { return a.IsStaff || a.IsSuperuser }

// Resource describes what the action targets. OwnerID zero means unowned.
type Resource struct {
	OwnerID uint
	Public  bool
}

// Owned is shorthand for a resource with an owner.
func Owned(ownerID uint) Resource { return Resource{OwnerID: ownerID} }

// Decision is the outcome of one evaluation.
type Decision struct {
	Allowed bool
	Action  Action
	// Rule is the rule that matched when Allowed.
	Rule Rule
	// Anonymous is set on denials of unauthenticated actors.
	Anonymous bool
}

// Err converts a denial into an AppError: 401 for anonymous actors, 403 otherwise.
func (d Decision) Err() error {
	if d.Allowed {
		return nil
	}
	if d.Anonymous {
		return models.NewUnauthenticatedError("Authentication credentials were not provided")
	}
	return models.NewForbiddenError("You do not have permission to perform this action")
}

func (r Rule) admits(a Actor, res Resource) bool {
	switch r.Who {
	case Anyone:
		return true
	case Authenticated:
		return a.Authenticated()
	case Owner:
		return a.Authenticated() && res.OwnerID != 0 && a.UserID == res.OwnerID
	case Staff:
		return a.Authenticated() && a.Privileged()
	case Superuser:
		return a.Authenticated() && a.IsSuperuser
	case PublicProfile:
		return res.Public
	}
	return false
}

// Evaluate checks action for actor against res using Table.
func Evaluate(action Action, a Actor, res Resource) Decision {
	for _, rule := range Table[action] {
		if rule.admits(a, res) {
			return Decision{Allowed: true, Action: action, Rule: rule}
		}
	}
	return Decision{Action: action, Anonymous: !a.Authenticated()}
}

// Check is Evaluate(...).Err().
func Check(action Action, a Actor, res Resource) error {
	return Evaluate(action, a, res).Err()
}
