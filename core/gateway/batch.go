package gateway

import (
	"database/sql"
	"net/http"

	"github.com/goccy/go-json"

	"github.com/pointb-tech/wayfarer/core"
)

// selectSpec is one select specification, either as top-level request body
// or as an entry of a batch request's query list.
type selectSpec struct {
	Action    core.Action     `json:"action,omitempty"`
	Table     string          `json:"table"`
	Filters   json.RawMessage `json:"filters,omitempty"`
	Order     *orderSpec      `json:"order,omitempty"`
	Single    bool            `json:"single,omitempty"`
	WithSteps bool            `json:"withSteps,omitempty"`
}

// runSelect executes one select specification on the request's connection:
// build, execute, optionally hydrate, and reduce to a single row when asked.
func (g *Gateway) runSelect(r *http.Request, conn *sql.Conn, spec selectSpec) (interface{}, error) {
	t, err := g.lookupTable(spec.Table)
	if err != nil {
		return nil, err
	}
	filters, err := decodeFields(spec.Filters)
	if err != nil {
		return nil, errValidation("invalid filters: %s", err)
	}
	query, args, err := buildSelect(g.db.Schema, t, filters, spec.Order)
	if err != nil {
		return nil, err
	}
	rows, err := queryRows(r.Context(), conn, query, args)
	if err != nil {
		return nil, err
	}
	if spec.WithSteps {
		if err := g.hydrate(r, conn, t, rows); err != nil {
			return nil, err
		}
	}
	if spec.Single {
		if len(rows) == 0 {
			return nil, nil
		}
		return rows[0], nil
	}
	return rows, nil
}

// handleBatch executes an ordered list of independent selects on the same
// connection. Results preserve request order; the first failing sub-query
// aborts the whole batch.
func (g *Gateway) handleBatch(r *http.Request, conn *sql.Conn, request actionRequest) (func(http.ResponseWriter), error) {
	if len(request.Queries) == 0 {
		return nil, errValidation("batch carries no queries")
	}
	results := make([]interface{}, 0, len(request.Queries))
	for _, spec := range request.Queries {
		if spec.Action != "" && spec.Action != core.ActionSelect {
			return nil, errValidation("batch only admits select queries, got %q", string(spec.Action))
		}
		result, err := g.runSelect(r, conn, spec)
		if err != nil {
			return nil, err
		}
		results = append(results, result)
	}
	return func(w http.ResponseWriter) { writeResults(w, results) }, nil
}
