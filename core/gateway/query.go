package gateway

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/goccy/go-json"

	"github.com/google/uuid"
)

// field is one column/value pair from a caller payload. Payloads keep their
// JSON key insertion order, which in turn fixes the order of the synthesized
// WHERE and SET clauses.
type field struct {
	key   string
	value interface{}
}

type fieldList []field

// decodeFields decodes a JSON object into an ordered field list.
func decodeFields(raw json.RawMessage) (fieldList, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	token, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if delim, ok := token.(json.Delim); !ok || delim != '{' {
		return nil, fmt.Errorf("expected a JSON object")
	}
	var fields fieldList
	for dec.More() {
		keyToken, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := keyToken.(string)
		if !ok {
			return nil, fmt.Errorf("expected an object key")
		}
		var value interface{}
		if err := dec.Decode(&value); err != nil {
			return nil, err
		}
		fields = append(fields, field{key: key, value: value})
	}
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	return fields, nil
}

// without returns a copy of the list with the named key removed.
func (f fieldList) without(key string) fieldList {
	result := make(fieldList, 0, len(f))
	for _, fd := range f {
		if fd.key != key {
			result = append(result, fd)
		}
	}
	return result
}

func (f fieldList) keys() []string {
	keys := make([]string, len(f))
	for i, fd := range f {
		keys[i] = fd.key
	}
	return keys
}

func (f fieldList) values() []interface{} {
	values := make([]interface{}, len(f))
	for i, fd := range f {
		values[i] = fd.value
	}
	return values
}

// validateColumns rejects any payload key that is not a declared column of
// the table. This is the one place caller input would otherwise reach SQL
// text, so it fails closed.
func validateColumns(t *tableDescriptor, fields fieldList) error {
	for _, fd := range fields {
		if !t.hasColumn(fd.key) {
			return errValidation("table %q has no column %q", t.name, fd.key)
		}
	}
	return nil
}

// orderSpec is the optional ordering of a select.
type orderSpec struct {
	Column    string `json:"column"`
	Ascending *bool  `json:"ascending,omitempty"`
}

// conflictColumns is the upsert conflict key. It accepts both a JSON array
// of column names and a comma separated string.
type conflictColumns []string

// UnmarshalJSON is a custom JSON unmarshaller
func (c *conflictColumns) UnmarshalJSON(data []byte) error {
	var list []string
	if err := json.Unmarshal(data, &list); err == nil {
		*c = list
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	for _, col := range strings.Split(s, ",") {
		col = strings.TrimSpace(col)
		if col != "" {
			*c = append(*c, col)
		}
	}
	return nil
}

// returns s[0]=$(offset+1) AND ... AND s[n-1]=$(offset+n)
func compareString(offset int, s []string) string {
	result := ""
	for i := 0; i < len(s); i++ {
		if i > 0 {
			result += " AND "
		}
		result += "\"" + s[i] + "\" = $" + strconv.Itoa(i+offset+1)
	}
	return result
}

// returns $1,...,$n
func parameterString(n int) string {
	result := ""
	for i := 0; i < n; i++ {
		if i > 0 {
			result += ","
		}
		result += "$" + strconv.Itoa(i+1)
	}
	return result
}

// buildSelect synthesizes a filtered select. All filters are combined with
// AND, in filter insertion order, with the values bound positionally.
func buildSelect(schema string, t *tableDescriptor, filters fieldList, order *orderSpec) (string, []interface{}, error) {
	if err := validateColumns(t, filters); err != nil {
		return "", nil, err
	}
	query := fmt.Sprintf("SELECT * FROM %s.\"%s\"", schema, t.name)
	if len(filters) > 0 {
		query += " WHERE " + compareString(0, filters.keys())
	}
	if order != nil {
		if !t.hasColumn(order.Column) {
			return "", nil, errValidation("table %q has no column %q", t.name, order.Column)
		}
		direction := "ASC"
		if order.Ascending != nil && !*order.Ascending {
			direction = "DESC"
		}
		query += " ORDER BY \"" + order.Column + "\" " + direction
	}
	return query + ";", filters.values(), nil
}

// buildInsert synthesizes an insert returning the new row. When a subject is
// passed, the row's user_id is forced to that subject, regardless of any
// user_id in the caller's data. Privileged inserts pass no subject and must
// supply user_id themselves.
func buildInsert(schema string, t *tableDescriptor, data fieldList, subject *uuid.UUID) (string, []interface{}, error) {
	if subject != nil {
		data = append(data.without("user_id"), field{key: "user_id", value: *subject})
	}
	if len(data) == 0 {
		return "", nil, errValidation("insert into table %q carries no data", t.name)
	}
	if err := validateColumns(t, data); err != nil {
		return "", nil, err
	}
	query := fmt.Sprintf("INSERT INTO %s.\"%s\" (\"%s\") VALUES(%s) RETURNING *;",
		schema, t.name, strings.Join(data.keys(), "\", \""), parameterString(len(data)))
	return query, data.values(), nil
}

// buildUpdate synthesizes an update returning the changed row. The match
// conditions are kept exactly as supplied and combined with AND; for
// non-privileged calls the ownership condition user_id = subject is appended
// last. A caller-supplied user_id term is not touched, so a match naming
// another subject intersects with the ownership condition to zero rows.
func buildUpdate(schema string, t *tableDescriptor, data, match fieldList, subject *uuid.UUID) (string, []interface{}, error) {
	if len(data) == 0 {
		return "", nil, errValidation("update of table %q carries no data", t.name)
	}
	if err := validateColumns(t, data); err != nil {
		return "", nil, err
	}
	if err := validateColumns(t, match); err != nil {
		return "", nil, err
	}
	sets := make([]string, len(data))
	for i, fd := range data {
		sets[i] = "\"" + fd.key + "\" = $" + strconv.Itoa(i+1)
	}
	where := match
	if subject != nil {
		where = append(where, field{key: "user_id", value: *subject})
	}
	if len(where) == 0 {
		return "", nil, errValidation("update of table %q carries no match", t.name)
	}
	query := fmt.Sprintf("UPDATE %s.\"%s\" SET %s WHERE %s RETURNING *;",
		schema, t.name, strings.Join(sets, ", "), compareString(len(data), where.keys()))
	return query, append(data.values(), where.values()...), nil
}

// buildUpsert synthesizes an insert with an ON CONFLICT clause over the
// passed conflict key. Every inserted column outside the conflict key is
// taken from the excluded row on conflict.
func buildUpsert(schema string, t *tableDescriptor, data fieldList, onConflict conflictColumns, subject *uuid.UUID) (string, []interface{}, error) {
	if len(onConflict) == 0 {
		return "", nil, errValidation("upsert into table %q carries no conflict key", t.name)
	}
	if subject != nil {
		data = append(data.without("user_id"), field{key: "user_id", value: *subject})
	}
	if len(data) == 0 {
		return "", nil, errValidation("upsert into table %q carries no data", t.name)
	}
	if err := validateColumns(t, data); err != nil {
		return "", nil, err
	}
	inConflict := map[string]bool{}
	for _, col := range onConflict {
		if !t.hasColumn(col) {
			return "", nil, errValidation("table %q has no column %q", t.name, col)
		}
		inConflict[col] = true
	}
	var updates []string
	for _, fd := range data {
		if !inConflict[fd.key] {
			updates = append(updates, "\""+fd.key+"\" = EXCLUDED.\""+fd.key+"\"")
		}
	}
	if len(updates) == 0 {
		// no column left to overwrite, touch the conflict key so the
		// statement still returns the existing row
		updates = append(updates, "\""+onConflict[0]+"\" = EXCLUDED.\""+onConflict[0]+"\"")
	}
	query := fmt.Sprintf("INSERT INTO %s.\"%s\" (\"%s\") VALUES(%s) ON CONFLICT (\"%s\") DO UPDATE SET %s RETURNING *;",
		schema, t.name, strings.Join(data.keys(), "\", \""), parameterString(len(data)),
		strings.Join(onConflict, "\", \""), strings.Join(updates, ", "))
	return query, data.values(), nil
}

// buildDelete synthesizes a delete. Like update, the match is kept as
// supplied and non-privileged calls get the ownership condition appended last.
func buildDelete(schema string, t *tableDescriptor, match fieldList, subject *uuid.UUID) (string, []interface{}, error) {
	if err := validateColumns(t, match); err != nil {
		return "", nil, err
	}
	where := match
	if subject != nil {
		where = append(where, field{key: "user_id", value: *subject})
	}
	if len(where) == 0 {
		return "", nil, errValidation("delete from table %q carries no match", t.name)
	}
	query := fmt.Sprintf("DELETE FROM %s.\"%s\" WHERE %s;",
		schema, t.name, compareString(0, where.keys()))
	return query, where.values(), nil
}
