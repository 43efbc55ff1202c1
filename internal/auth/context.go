package auth

import (
	"context"
	"slices"

	"github.com/dukerupert/chorewheel/internal/model"
)

type contextKey struct{}

// Actor is the family member a request acts as.
type Actor struct {
	MemberID int64
	Role     model.Role
}

func (a Actor) IsParent() bool {
	return a.Role == model.RoleParent
}

func WithActor(ctx context.Context, a Actor) context.Context {
	return context.WithValue(ctx, contextKey{}, a)
}

func FromContext(ctx context.Context) (Actor, bool) {
	a, ok := ctx.Value(contextKey{}).(Actor)
	return a, ok
}

func MemberID(ctx context.Context) int64 {
	a, ok := FromContext(ctx)
	if !ok {
		return 0
	}
	return a.MemberID
}

func IsParent(ctx context.Context) bool {
	a, ok := FromContext(ctx)
	if !ok {
		return false
	}
	return a.IsParent()
}

// Policy decides whether an actor may complete or skip an occurrence
// assigned to the given members.
type Policy interface {
	CanAct(actor Actor, assigned []int64) bool
}

// PolicyFunc adapts a function to Policy.
type PolicyFunc func(actor Actor, assigned []int64) bool

func (f PolicyFunc) CanAct(actor Actor, assigned []int64) bool {
	return f(actor, assigned)
}

// AssigneeOrParent lets assignees and any parent act.
var AssigneeOrParent Policy = PolicyFunc(func(actor Actor, assigned []int64) bool {
	return actor.IsParent() || slices.Contains(assigned, actor.MemberID)
})
