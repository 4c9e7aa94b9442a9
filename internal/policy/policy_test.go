package policy

import (
	"testing"

	"blogapi/internal/auth"
	"blogapi/internal/models"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
)

func TestEvaluate(t *testing.T) {
	owner := Actor{UserID: 1}
	other := Actor{UserID: 2}
	staff := Actor{UserID: 3, IsStaff: true}
	root := Actor{UserID: 4, IsSuperuser: true}

	tests := []struct {
		name    string
		action  Action
		actor   Actor
		res     Resource
		allowed bool
		code    string
	}{
		{"anonymous cannot create post", PostCreate, Anonymous, Resource{}, false, models.CodeUnauthenticated},
		{"user creates post", PostCreate, other, Resource{}, true, ""},
		{"owner updates post", PostUpdate, owner, Owned(1), true, ""},
		{"other cannot update post", PostUpdate, other, Owned(1), false, models.CodeForbidden},
		{"anonymous cannot update post", PostUpdate, Anonymous, Owned(1), false, models.CodeUnauthenticated},
		{"staff updates any post", PostUpdate, staff, Owned(1), true, ""},
		{"superuser counts as staff", PostDelete, root, Owned(1), true, ""},
		{"unowned resource never matches owner", PostUpdate, Anonymous, Owned(0), false, models.CodeUnauthenticated},
		{"draft hidden from others", PostViewDraft, other, Owned(1), false, models.CodeForbidden},
		{"moderation is staff only", CommentModerate, owner, Owned(1), false, models.CodeForbidden},
		{"staff moderates", CommentModerate, staff, Resource{}, true, ""},
		{"category write needs staff", CategoryWrite, other, Resource{}, false, models.CodeForbidden},
		{"public profile visible anonymously", UserView, Anonymous, Resource{OwnerID: 1, Public: true}, true, ""},
		{"private profile hidden", UserView, other, Resource{OwnerID: 1}, false, models.CodeForbidden},
		{"private profile visible to owner", UserView, owner, Resource{OwnerID: 1}, true, ""},
		{"private profile visible to staff", UserView, staff, Resource{OwnerID: 1}, true, ""},
		{"staff cannot delete accounts", UserDelete, staff, Owned(1), false, models.CodeForbidden},
		{"superuser deletes accounts", UserDelete, root, Owned(1), true, ""},
		{"notifications are private even to staff", NotificationRead, staff, Owned(1), false, models.CodeForbidden},
		{"unknown action denied", Action("post.teleport"), staff, Resource{}, false, models.CodeForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := Evaluate(tt.action, tt.actor, tt.res)
			assert.Equal(t, tt.allowed, d.Allowed)
			err := d.Err()
			if tt.allowed {
				assert.NoError(t, err)
				return
			}
			assert.True(t, models.HasCode(err, tt.code), "got %v", err)
		})
	}
}

func TestEveryActionHasRules(t *testing.T) {
	for action, rules := range Table {
		assert.NotEmpty(t, rules, "action %s", action)
	}
}

func TestFromClaims(t *testing.T) {
	assert.Equal(t, Anonymous, FromClaims(nil))

	c := &auth.Claims{IsStaff: true, RegisteredClaims: jwt.RegisteredClaims{Subject: "7"}}
	assert.Equal(t, Actor{UserID: 7, IsStaff: true}, FromClaims(c))

	bad := &auth.Claims{RegisteredClaims: jwt.RegisteredClaims{Subject: "nope"}}
	assert.Equal(t, Anonymous, FromClaims(bad))
}
