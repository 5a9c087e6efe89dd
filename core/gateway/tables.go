package gateway

import (
	"fmt"
	"strings"
)

// column is one declared table column. The ddl string is the column type
// definition used by setup; the name is the only identifier callers may use
// in filters, match and data payloads.
type column struct {
	name string
	ddl  string
}

// uniqueIndex is a named uniqueness constraint, created idempotently by setup.
type uniqueIndex struct {
	name    string
	columns []string
}

// hydration declares the one supported parent/child join: a select on the
// parent table can ask for all child rows to be attached, grouped by the
// foreign key and ordered by the sort column.
type hydration struct {
	childTable string
	foreignKey string
	sortColumn string
	field      string
}

// tableDescriptor describes one allow-listed table. Anything not described
// here is not reachable through the gateway: unknown table names and unknown
// column names fail closed before any SQL is built.
type tableDescriptor struct {
	name      string
	columns   []column
	unique    []uniqueIndex
	schemaID  string
	hydration *hydration
}

// every table carries these three columns in addition to its declared ones
var implicitColumns = []column{
	{"id", "uuid NOT NULL DEFAULT uuid_generate_v4() PRIMARY KEY"},
	{"user_id", "uuid NOT NULL"},
	{"created_at", "timestamptz NOT NULL DEFAULT now()"},
}

// tableDescriptors is the closed allow-list of tables the gateway may touch,
// in setup order.
var tableDescriptors = []tableDescriptor{
	{
		name:     "goals",
		schemaID: goalSchemaID,
		columns: []column{
			{"title", "varchar NOT NULL DEFAULT ''"},
			{"description", "varchar NOT NULL DEFAULT ''"},
			{"progress", "integer NOT NULL DEFAULT 0"},
			{"target_date", "timestamptz"},
			{"completed", "boolean NOT NULL DEFAULT false"},
		},
	},
	{
		name: "sessions",
		columns: []column{
			{"title", "varchar NOT NULL DEFAULT ''"},
			{"notes", "varchar NOT NULL DEFAULT ''"},
			{"scheduled_at", "timestamptz"},
			{"completed", "boolean NOT NULL DEFAULT false"},
		},
	},
	{
		name: "protocols",
		columns: []column{
			{"name", "varchar NOT NULL DEFAULT ''"},
			{"description", "varchar NOT NULL DEFAULT ''"},
			{"frequency", "varchar NOT NULL DEFAULT ''"},
			{"active", "boolean NOT NULL DEFAULT true"},
		},
	},
	{
		name: "roadmaps",
		columns: []column{
			{"title", "varchar NOT NULL DEFAULT ''"},
			{"description", "varchar NOT NULL DEFAULT ''"},
		},
		hydration: &hydration{
			childTable: "roadmap_steps",
			foreignKey: "roadmap_id",
			sortColumn: "step_order",
			field:      "steps",
		},
	},
	{
		name: "roadmap_steps",
		columns: []column{
			{"roadmap_id", "uuid NOT NULL"},
			{"title", "varchar NOT NULL DEFAULT ''"},
			{"description", "varchar NOT NULL DEFAULT ''"},
			{"step_order", "integer NOT NULL DEFAULT 0"},
			{"completed", "boolean NOT NULL DEFAULT false"},
		},
	},
	{
		name: "volcanoes",
		columns: []column{
			{"name", "varchar NOT NULL DEFAULT ''"},
			{"intensity", "integer NOT NULL DEFAULT 0"},
			{"notes", "varchar NOT NULL DEFAULT ''"},
		},
		unique: []uniqueIndex{
			{"volcanoes_user_name_key", []string{"user_id", "name"}},
		},
	},
	{
		name: "progress_metrics",
		columns: []column{
			{"metric_key", "varchar NOT NULL DEFAULT ''"},
			{"value", "numeric NOT NULL DEFAULT 0"},
			{"recorded_at", "timestamptz"},
		},
		unique: []uniqueIndex{
			{"progress_metrics_user_metric_key", []string{"user_id", "metric_key"}},
		},
	},
	{
		name: "route_info",
		columns: []column{
			{"point_a", "varchar NOT NULL DEFAULT ''"},
			{"point_b", "varchar NOT NULL DEFAULT ''"},
			{"narrative", "varchar NOT NULL DEFAULT ''"},
		},
		unique: []uniqueIndex{
			{"route_info_user_key", []string{"user_id"}},
		},
	},
	{
		name: "diary_entries",
		columns: []column{
			{"entry_date", "timestamptz"},
			{"content", "varchar NOT NULL DEFAULT ''"},
			{"mood", "varchar NOT NULL DEFAULT ''"},
		},
	},
	{
		name: "tracking_questions",
		columns: []column{
			{"question", "varchar NOT NULL DEFAULT ''"},
			{"cadence", "varchar NOT NULL DEFAULT ''"},
			{"active", "boolean NOT NULL DEFAULT true"},
		},
	},
	{
		name: "point_b_questions",
		columns: []column{
			{"question", "varchar NOT NULL DEFAULT ''"},
			{"category", "varchar NOT NULL DEFAULT ''"},
			{"position", "integer NOT NULL DEFAULT 0"},
		},
	},
	{
		name: "point_b_answers",
		columns: []column{
			{"question_id", "uuid NOT NULL"},
			{"answer", "varchar NOT NULL DEFAULT ''"},
		},
		unique: []uniqueIndex{
			{"point_b_answers_user_question_key", []string{"user_id", "question_id"}},
		},
	},
	{
		name: "point_b_results",
		columns: []column{
			{"summary", "varchar NOT NULL DEFAULT ''"},
			{"score", "integer NOT NULL DEFAULT 0"},
		},
	},
	{
		name: "profiles",
		columns: []column{
			{"display_name", "varchar NOT NULL DEFAULT ''"},
			{"avatar_url", "varchar NOT NULL DEFAULT ''"},
			{"bio", "varchar NOT NULL DEFAULT ''"},
		},
		unique: []uniqueIndex{
			{"profiles_user_key", []string{"user_id"}},
		},
	},
	{
		name: "user_roles",
		columns: []column{
			{"role", "varchar NOT NULL DEFAULT ''"},
		},
		unique: []uniqueIndex{
			{"user_roles_user_key", []string{"user_id"}},
		},
	},
}

// hasColumn reports whether callers may reference the column on this table.
func (t *tableDescriptor) hasColumn(name string) bool {
	for _, c := range implicitColumns {
		if c.name == name {
			return true
		}
	}
	for _, c := range t.columns {
		if c.name == name {
			return true
		}
	}
	return false
}

// createDDL returns the idempotent DDL for this table and its unique indexes.
func (t *tableDescriptor) createDDL(schema string) string {
	var createColumns []string
	for _, c := range implicitColumns {
		createColumns = append(createColumns, c.name+" "+c.ddl)
	}
	for _, c := range t.columns {
		createColumns = append(createColumns, "\""+c.name+"\" "+c.ddl)
	}
	ddl := fmt.Sprintf("CREATE table IF NOT EXISTS %s.\"%s\"(%s);",
		schema, t.name, strings.Join(createColumns, ", "))
	for _, u := range t.unique {
		ddl += fmt.Sprintf("CREATE UNIQUE index IF NOT EXISTS %s ON %s.\"%s\"(%s);",
			u.name, schema, t.name, strings.Join(u.columns, ","))
	}
	return ddl
}

func newTableRegistry() map[string]*tableDescriptor {
	tables := make(map[string]*tableDescriptor, len(tableDescriptors))
	for i := range tableDescriptors {
		t := &tableDescriptors[i]
		tables[t.name] = t
	}
	return tables
}

// lookupTable resolves a caller-supplied table name against the allow-list.
func (g *Gateway) lookupTable(name string) (*tableDescriptor, error) {
	t, ok := g.tables[name]
	if !ok {
		return nil, errValidation("table %q is not accessible", name)
	}
	return t, nil
}
