package gateway

import (
	"database/sql"
	"fmt"
	"net/http"

	"github.com/lib/pq"
)

// hydrate attaches the declared child rows to every parent row, under the
// declared field name. One follow-up query covers the children of all
// parents; children come back ordered by the sort column and grouped by
// their foreign key. A parent without children gets an empty array, never a
// missing field.
func (g *Gateway) hydrate(r *http.Request, conn *sql.Conn, t *tableDescriptor, parents []map[string]interface{}) error {
	if t.hydration == nil {
		return errValidation("table %q has no child relationship", t.name)
	}
	h := t.hydration

	for _, parent := range parents {
		parent[h.field] = []map[string]interface{}{}
	}
	if len(parents) == 0 {
		return nil
	}

	parentIDs := make([]string, 0, len(parents))
	for _, parent := range parents {
		id, ok := parent["id"].(string)
		if !ok {
			return fmt.Errorf("parent row of table %q carries no id", t.name)
		}
		parentIDs = append(parentIDs, id)
	}

	query := fmt.Sprintf("SELECT * FROM %s.\"%s\" WHERE \"%s\" = ANY($1::uuid[]) ORDER BY \"%s\" ASC;",
		g.db.Schema, h.childTable, h.foreignKey, h.sortColumn)
	children, err := queryRows(r.Context(), conn, query, []interface{}{pq.Array(parentIDs)})
	if err != nil {
		return err
	}

	grouped := make(map[string][]map[string]interface{})
	for _, child := range children {
		key, ok := child[h.foreignKey].(string)
		if !ok {
			continue
		}
		grouped[key] = append(grouped[key], child)
	}
	for _, parent := range parents {
		id := parent["id"].(string)
		if group, ok := grouped[id]; ok {
			parent[h.field] = group
		}
	}
	return nil
}
