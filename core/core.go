/*Package core contains the basic types shared by the wayfarer gateway packages.
*/
package core

import (
	"fmt"

	"github.com/goccy/go-json"
)

// Action represents one gateway action selected by the caller. The set of
// actions is closed; unknown actions fail at decode time.
type Action string

// all supported gateway actions
const (
	ActionSetup       Action = "setup"
	ActionSelect      Action = "select"
	ActionBatch       Action = "batch"
	ActionInsert      Action = "insert"
	ActionUpdate      Action = "update"
	ActionUpsert      Action = "upsert"
	ActionDelete      Action = "delete"
	ActionAdminSelect Action = "admin_select"
	ActionAdminInsert Action = "admin_insert"
	ActionAdminUpdate Action = "admin_update"
	ActionAdminUpsert Action = "admin_upsert"
	ActionAdminDelete Action = "admin_delete"
)

// ParseAction converts an action token into an Action.
func ParseAction(s string) (Action, error) {
	a := Action(s)
	switch a {
	case ActionSetup, ActionSelect, ActionBatch,
		ActionInsert, ActionUpdate, ActionUpsert, ActionDelete,
		ActionAdminSelect, ActionAdminInsert, ActionAdminUpdate,
		ActionAdminUpsert, ActionAdminDelete:
		return a, nil
	default:
		return a, fmt.Errorf("%s is not a valid action", s)
	}
}

// UnmarshalJSON is a custom JSON unmarshaller
func (a *Action) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	action, err := ParseAction(s)
	if err != nil {
		return err
	}
	*a = action
	return nil
}

// IsAdmin returns true for the privileged action variants.
func (a Action) IsAdmin() bool {
	switch a {
	case ActionAdminSelect, ActionAdminInsert, ActionAdminUpdate,
		ActionAdminUpsert, ActionAdminDelete:
		return true
	}
	return false
}

// Notifier is an interface to receive mutation notifications from the gateway
type Notifier interface {
	Notify(table string, action Action, payload []byte)
}
