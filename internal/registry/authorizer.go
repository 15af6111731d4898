package registry

import "context"

// Action is the kind of mutation being authorized.
type Action string

const (
	ActionCreate   Action = "create"
	ActionUpdate   Action = "update"
	ActionRegister Action = "register"
	ActionMerge    Action = "merge"
	ActionDelete   Action = "delete"
	ActionAddFile  Action = "add-file"
)

// Authorizer decides whether a principal may perform an action on an entity
// kind. A non-nil error is a denial; the registry consults it before every
// mutation and short-circuits with no side effects on deny.
type Authorizer interface {
	Authorize(ctx context.Context, principal string, action Action, entity string) error
}

// AllowAll authorizes everything. Used in tests and single-user local mode.
type AllowAll struct{}

// Authorize always allows.
func (AllowAll) Authorize(context.Context, string, Action, string) error {
	return nil
}
