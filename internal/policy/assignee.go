package policy

import "context"

// Assignable is a record with a responsible user.
type Assignable interface {
	GetUserID() uint
}

// AssigneePolicy lets only the responsible user change or remove a record.
// Reads are not restricted. Holders of the manager permission bypass the check.
type AssigneePolicy struct {
	resolver ProfileResolver
	manager  Permission
}

// NewAssigneePolicy builds a policy whose bypass is the given permission, e.g. "task:*".
func NewAssigneePolicy(resolver ProfileResolver, manager Permission) *AssigneePolicy {
	return &AssigneePolicy{resolver: resolver, manager: manager}
}

func (p *AssigneePolicy) Can(ctx context.Context, userID uint, action Action, resource any) bool {
	if resource == nil || action == ActionList || action == ActionView {
		return true
	}
	if profile, err := p.resolver.Resolve(ctx, userID); err == nil && profile != nil && profile.HasPermission(p.manager) {
		return true
	}
	a, ok := resource.(Assignable)
	if !ok {
		return false
	}
	return a.GetUserID() == userID
}
