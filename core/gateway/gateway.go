package gateway

import (
	"database/sql"
	"fmt"
	"net/http"

	"github.com/goccy/go-json"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/pointb-tech/wayfarer/core"
	"github.com/pointb-tech/wayfarer/core/access"
	"github.com/pointb-tech/wayfarer/core/csql"
	"github.com/pointb-tech/wayfarer/core/logger"
	"github.com/pointb-tech/wayfarer/core/schema"
)

// adminRole is the single role value that unlocks the privileged actions
const adminRole = "admin"

// Gateway is the generic data-access gateway. It translates action requests
// into parameterized SQL over the pooled database, enforcing per-caller row
// ownership and per-action role authorization.
type Gateway struct {
	db        *csql.DB
	router    *mux.Router
	notifier  core.Notifier
	validator *schema.Validator
	tables    map[string]*tableDescriptor
}

// Builder is a builder helper for the Gateway
type Builder struct {
	// DB is a postgres database. This is mandatory.
	DB *csql.DB
	// Router is a mux router. This is mandatory.
	Router *mux.Router
	// Notifier receives a notification for every successful mutation.
	// This is optional.
	Notifier core.Notifier
	// JSONSchemas are optional JSON schemas for tables which declare a
	// schema id, added on top of the compiled-in defaults. Row data is
	// validated before any SQL is built.
	JSONSchemas []string
	// JSONSchemaRefs are optional schemas that can be referenced by the
	// JSONSchemas.
	JSONSchemaRefs []string
}

// New realizes the actual gateway and adds its routes to the router.
func New(bb *Builder) *Gateway {
	if bb.DB == nil {
		panic("DB is missing")
	}
	if bb.Router == nil {
		panic("Router is missing")
	}
	validator, err := schema.NewValidator(append(defaultSchemas, bb.JSONSchemas...), bb.JSONSchemaRefs)
	if err != nil {
		panic(fmt.Errorf("parse error in gateway schemas: %s", err))
	}
	g := &Gateway{
		db:        bb.DB,
		router:    bb.Router,
		notifier:  bb.Notifier,
		validator: validator,
		tables:    newTableRegistry(),
	}
	g.handleRoutes(bb.Router)
	return g
}

func (g *Gateway) handleRoutes(router *mux.Router) {
	rlog := logger.Default()
	rlog.Debugln("gateway: handle route: /api POST")
	router.HandleFunc("/api", g.serveAction).Methods(http.MethodPost)
}

// actionRequest is the decoded request body. Payload shape is fixed per
// action; fields that do not belong to the action are ignored by the
// handlers and validated away where they would be ambiguous.
type actionRequest struct {
	Table      string          `json:"table"`
	Data       json.RawMessage `json:"data,omitempty"`
	Match      json.RawMessage `json:"match,omitempty"`
	Filters    json.RawMessage `json:"filters,omitempty"`
	Order      *orderSpec      `json:"order,omitempty"`
	OnConflict conflictColumns `json:"onConflict,omitempty"`
	Single     bool            `json:"single,omitempty"`
	WithSteps  bool            `json:"withSteps,omitempty"`
	Queries    []selectSpec    `json:"queries,omitempty"`
}

func (g *Gateway) serveAction(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	rlog := logger.FromContext(ctx)

	action, err := core.ParseAction(r.URL.Query().Get("action"))
	if err != nil {
		writeError(w, errValidation("%s", err.Error()))
		return
	}
	rlog = rlog.WithField("action", string(action))

	var request actionRequest
	if r.Body != nil {
		decoder := json.NewDecoder(r.Body)
		if err := decoder.Decode(&request); err != nil && action != core.ActionSetup {
			writeError(w, errValidation("invalid request body: %s", err))
			return
		}
	}

	// one connection per request, returned to the pool on every exit path
	conn, err := g.db.Conn(ctx)
	if err != nil {
		rlog.WithError(err).Errorln("cannot acquire database connection")
		writeError(w, err)
		return
	}
	defer conn.Close()

	// setup is the only action that runs without authentication
	if action == core.ActionSetup {
		if err := g.setup(r, conn); err != nil {
			rlog.WithError(err).Errorln("setup failed")
			writeError(w, err)
			return
		}
		writeSuccess(w)
		return
	}

	auth := access.AuthorizationFromContext(ctx)
	if auth == nil {
		writeError(w, errUnauthorized())
		return
	}

	// the role gate runs once per privileged request, fresh from the role
	// table, so a revoked role takes effect on the very next call
	if action.IsAdmin() {
		if err := g.requireAdminRole(r, conn, auth); err != nil {
			writeError(w, err)
			return
		}
	}

	var response func(http.ResponseWriter)
	switch action {
	case core.ActionSelect, core.ActionAdminSelect:
		response, err = g.handleSelect(r, conn, request)
	case core.ActionBatch:
		response, err = g.handleBatch(r, conn, request)
	case core.ActionInsert:
		response, err = g.handleInsert(r, conn, request, &auth.Subject)
	case core.ActionAdminInsert:
		response, err = g.handleInsert(r, conn, request, nil)
	case core.ActionUpdate:
		response, err = g.handleUpdate(r, conn, request, &auth.Subject)
	case core.ActionAdminUpdate:
		response, err = g.handleUpdate(r, conn, request, nil)
	case core.ActionUpsert:
		response, err = g.handleUpsert(r, conn, request, &auth.Subject)
	case core.ActionAdminUpsert:
		response, err = g.handleUpsert(r, conn, request, nil)
	case core.ActionDelete:
		response, err = g.handleDelete(r, conn, request, &auth.Subject)
	case core.ActionAdminDelete:
		response, err = g.handleDelete(r, conn, request, nil)
	case core.ActionSetup:
		// already answered above
		return
	}
	if err != nil {
		rlog.WithError(err).Warningln("action failed")
		writeError(w, err)
		return
	}
	response(w)
	g.notifyMutation(r, action, request.Table)
}

// requireAdminRole loads the caller's role and requires the privileged role
// value. A missing role row is a plain denial.
func (g *Gateway) requireAdminRole(r *http.Request, conn *sql.Conn, auth *access.Authorization) error {
	query := fmt.Sprintf("SELECT role FROM %s.\"user_roles\" WHERE user_id = $1;", g.db.Schema)
	var role string
	err := conn.QueryRowContext(r.Context(), query, auth.Subject).Scan(&role)
	if err == csql.ErrNoRows {
		return errForbidden()
	}
	if err != nil {
		return err
	}
	if role != adminRole {
		return errForbidden()
	}
	return nil
}

// setup idempotently provisions the schema: every allow-listed table with
// its columns and defaults, plus the named uniqueness constraints.
func (g *Gateway) setup(r *http.Request, conn *sql.Conn) error {
	rlog := logger.FromContext(r.Context())
	for _, t := range tableDescriptors {
		rlog.Debugln("setup table:", t.name)
		if _, err := conn.ExecContext(r.Context(), t.createDDL(g.db.Schema)); err != nil {
			return fmt.Errorf("setup of table %q: %w", t.name, err)
		}
	}
	return nil
}

func (g *Gateway) handleSelect(r *http.Request, conn *sql.Conn, request actionRequest) (func(http.ResponseWriter), error) {
	spec := selectSpec{
		Table:     request.Table,
		Filters:   request.Filters,
		Order:     request.Order,
		Single:    request.Single,
		WithSteps: request.WithSteps,
	}
	result, err := g.runSelect(r, conn, spec)
	if err != nil {
		return nil, err
	}
	return func(w http.ResponseWriter) { writeData(w, result) }, nil
}

func (g *Gateway) handleInsert(r *http.Request, conn *sql.Conn, request actionRequest, subject *uuid.UUID) (func(http.ResponseWriter), error) {
	t, err := g.lookupTable(request.Table)
	if err != nil {
		return nil, err
	}
	if err := g.validateData(t, request.Data); err != nil {
		return nil, err
	}
	data, err := decodeFields(request.Data)
	if err != nil {
		return nil, errValidation("invalid data: %s", err)
	}
	query, args, err := buildInsert(g.db.Schema, t, data, subject)
	if err != nil {
		return nil, err
	}
	row, err := queryOneRow(r.Context(), conn, query, args)
	if err != nil {
		return nil, err
	}
	return func(w http.ResponseWriter) { writeData(w, row) }, nil
}

func (g *Gateway) handleUpdate(r *http.Request, conn *sql.Conn, request actionRequest, subject *uuid.UUID) (func(http.ResponseWriter), error) {
	t, err := g.lookupTable(request.Table)
	if err != nil {
		return nil, err
	}
	if err := g.validateData(t, request.Data); err != nil {
		return nil, err
	}
	data, err := decodeFields(request.Data)
	if err != nil {
		return nil, errValidation("invalid data: %s", err)
	}
	match, err := decodeFields(request.Match)
	if err != nil {
		return nil, errValidation("invalid match: %s", err)
	}
	query, args, err := buildUpdate(g.db.Schema, t, data, match, subject)
	if err != nil {
		return nil, err
	}
	row, err := queryOneRow(r.Context(), conn, query, args)
	if err != nil {
		return nil, err
	}
	return func(w http.ResponseWriter) { writeData(w, row) }, nil
}

func (g *Gateway) handleUpsert(r *http.Request, conn *sql.Conn, request actionRequest, subject *uuid.UUID) (func(http.ResponseWriter), error) {
	t, err := g.lookupTable(request.Table)
	if err != nil {
		return nil, err
	}
	if err := g.validateData(t, request.Data); err != nil {
		return nil, err
	}
	data, err := decodeFields(request.Data)
	if err != nil {
		return nil, errValidation("invalid data: %s", err)
	}
	query, args, err := buildUpsert(g.db.Schema, t, data, request.OnConflict, subject)
	if err != nil {
		return nil, err
	}
	row, err := queryOneRow(r.Context(), conn, query, args)
	if err != nil {
		return nil, err
	}
	return func(w http.ResponseWriter) { writeData(w, row) }, nil
}

func (g *Gateway) handleDelete(r *http.Request, conn *sql.Conn, request actionRequest, subject *uuid.UUID) (func(http.ResponseWriter), error) {
	t, err := g.lookupTable(request.Table)
	if err != nil {
		return nil, err
	}
	match, err := decodeFields(request.Match)
	if err != nil {
		return nil, errValidation("invalid match: %s", err)
	}
	query, args, err := buildDelete(g.db.Schema, t, match, subject)
	if err != nil {
		return nil, err
	}
	if _, err := conn.ExecContext(r.Context(), query, args...); err != nil {
		return nil, err
	}
	return func(w http.ResponseWriter) { writeSuccess(w) }, nil
}

// validateData validates row data against the table's JSON schema, for
// tables that declare one.
func (g *Gateway) validateData(t *tableDescriptor, data json.RawMessage) error {
	if t.schemaID == "" || len(data) == 0 || !g.validator.HasSchema(t.schemaID) {
		return nil
	}
	if err := g.validator.ValidateString(string(data), t.schemaID); err != nil {
		return errValidation("data for table %q does not follow its schema: %s", t.name, err)
	}
	return nil
}

// notifyMutation publishes a notification for successful mutations. Reads
// and setup stay silent.
func (g *Gateway) notifyMutation(r *http.Request, action core.Action, table string) {
	if g.notifier == nil {
		return
	}
	switch action {
	case core.ActionInsert, core.ActionUpdate, core.ActionUpsert, core.ActionDelete,
		core.ActionAdminInsert, core.ActionAdminUpdate, core.ActionAdminUpsert, core.ActionAdminDelete:
	default:
		return
	}
	payload, _ := json.Marshal(map[string]string{
		"table":     table,
		"action":    string(action),
		"requestID": logger.RequestIDFromContext(r.Context()),
	})
	g.notifier.Notify(table, action, payload)
}
