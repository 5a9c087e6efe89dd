package schema_test

import (
	"testing"

	"github.com/pointb-tech/wayfarer/core/schema"
)

const (
	titleRef = `{ "type" : "string",
	              "$id" : "http://wayfarer.pointb.tech/schemas/title.json"}`

	goalSchema = `
	{ "$id" : "http://wayfarer.pointb.tech/schemas/goal.json",
	  "type" : "object",
	  "required" : ["title"],
	  "properties" : {
	    "title" : { "$ref" : "http://wayfarer.pointb.tech/schemas/title.json" },
	    "progress" : { "type" : "integer", "minimum" : 0, "maximum" : 100 }
	  }
	}`
)

func TestValidateString(t *testing.T) {
	v, err := schema.NewValidator([]string{goalSchema}, []string{titleRef})
	if err != nil {
		t.Fatalf("No error expected when creating validator, got %v", err)
	}

	schemaID := "http://wayfarer.pointb.tech/schemas/goal.json"

	if err := v.ValidateString(`{"title":"Launch","progress":10}`, schemaID); err != nil {
		t.Fatalf("valid document rejected: %v", err)
	}

	if err := v.ValidateString(`{"progress":10}`, schemaID); err == nil {
		t.Fatal("document without title is expected to be invalid")
	}

	if err := v.ValidateString(`{"title":"Launch","progress":200}`, schemaID); err == nil {
		t.Fatal("out of range progress is expected to be invalid")
	}
}

func TestValidateStruct(t *testing.T) {
	type Goal struct {
		Title    string `json:"title"`
		Progress int    `json:"progress"`
	}

	v, err := schema.NewValidator([]string{goalSchema}, []string{titleRef})
	if err != nil {
		t.Fatalf("No error expected when creating validator, got %v", err)
	}

	schemaID := "http://wayfarer.pointb.tech/schemas/goal.json"
	if err := v.ValidateStruct(Goal{Title: "Launch", Progress: 10}, schemaID); err != nil {
		t.Fatalf("valid struct rejected: %v", err)
	}

	type BrokenGoal struct {
		Title string `json:"label"`
	}
	if err := v.ValidateStruct(BrokenGoal{Title: "Launch"}, schemaID); err == nil {
		t.Fatal("struct without title is expected to be invalid")
	}
}

func TestHasSchema(t *testing.T) {
	v, err := schema.NewValidator([]string{goalSchema}, []string{titleRef})
	if err != nil {
		t.Fatalf("No error expected when creating validator, got %v", err)
	}
	if !v.HasSchema("http://wayfarer.pointb.tech/schemas/goal.json") {
		t.Fatal("goal schema is expected to be available")
	}
	if v.HasSchema("http://wayfarer.pointb.tech/schemas/unknown.json") {
		t.Fatal("unknown schema is not expected to be available")
	}
}
