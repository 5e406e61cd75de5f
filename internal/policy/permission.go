// Package policy decides which operator may do what.
//
// Permissions are "resource:action" strings granted through profiles. A user holds
// one profile; "*" in either half is a wildcard, so "*:*" is full access and
// "quotation:*" covers every quotation action. Resource policies can narrow a
// granted permission further for a specific record (see AssigneePolicy).
package policy

import "strings"

// Action is the kind of operation requested on a resource.
type Action string

const (
	ActionList   Action = "list"
	ActionView   Action = "view"
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// Permission is a "resource:action" grant.
type Permission string

const (
	Wildcard   = "*"
	SuperAdmin Permission = "*:*"
)

// NewPermission joins a resource type and an action.
func NewPermission(resource string, action Action) Permission {
	return Permission(resource + ":" + string(action))
}

// Parse splits the permission; malformed values return empty halves.
func (p Permission) Parse() (resource string, action Action) {
	res, act, ok := strings.Cut(string(p), ":")
	if !ok {
		return "", ""
	}
	return res, Action(act)
}

// Matches reports whether holding p grants the requested permission.
func (p Permission) Matches(requested Permission) bool {
	if p == SuperAdmin || p == requested {
		return true
	}
	res, act := p.Parse()
	reqRes, reqAct := requested.Parse()
	if res == "" || reqRes == "" {
		return false
	}
	return (res == Wildcard || res == reqRes) && (act == Wildcard || act == reqAct)
}
