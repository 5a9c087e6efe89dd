package core

import (
	"testing"

	"github.com/goccy/go-json"
)

func TestParseAction(t *testing.T) {
	valid := []string{
		"setup", "select", "batch", "insert", "update", "upsert", "delete",
		"admin_select", "admin_insert", "admin_update", "admin_upsert", "admin_delete",
	}
	for _, s := range valid {
		if _, err := ParseAction(s); err != nil {
			t.Fatalf("%s is expected to be a valid action: %v", s, err)
		}
	}
	for _, s := range []string{"", "drop", "SELECT", "admin", "truncate"} {
		if _, err := ParseAction(s); err == nil {
			t.Fatalf("%s is not expected to be a valid action", s)
		}
	}
}

func TestActionUnmarshal(t *testing.T) {
	var a Action
	if err := json.Unmarshal([]byte(`"admin_update"`), &a); err != nil {
		t.Fatal(err)
	}
	if a != ActionAdminUpdate {
		t.Fatal("unexpected action:", a)
	}
	if err := json.Unmarshal([]byte(`"vacuum"`), &a); err == nil {
		t.Fatal("unknown action is expected to fail")
	}
}

func TestIsAdmin(t *testing.T) {
	for _, a := range []Action{ActionAdminSelect, ActionAdminInsert, ActionAdminUpdate, ActionAdminUpsert, ActionAdminDelete} {
		if !a.IsAdmin() {
			t.Fatal(a, "is expected to be privileged")
		}
	}
	for _, a := range []Action{ActionSetup, ActionSelect, ActionBatch, ActionInsert, ActionUpdate, ActionUpsert, ActionDelete} {
		if a.IsAdmin() {
			t.Fatal(a, "is not expected to be privileged")
		}
	}
}
