package gateway

import (
	"context"
	"database/sql"
	"time"
)

// queryRows runs a statement on the request's connection and scans the
// result into generic row objects. Column values come back in the driver's
// native types; byte slices (uuid, numeric, json) are converted to strings
// so they serialize cleanly.
func queryRows(ctx context.Context, conn *sql.Conn, query string, args []interface{}) ([]map[string]interface{}, error) {
	rows, err := conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	result := []map[string]interface{}{}
	for rows.Next() {
		values := make([]interface{}, len(columns))
		pointers := make([]interface{}, len(columns))
		for i := range values {
			pointers[i] = &values[i]
		}
		if err := rows.Scan(pointers...); err != nil {
			return nil, err
		}
		object := make(map[string]interface{}, len(columns))
		for i, name := range columns {
			object[name] = normalizeValue(values[i])
		}
		result = append(result, object)
	}
	return result, rows.Err()
}

// queryOneRow returns the first row of the statement, or nil if the
// statement affected no rows.
func queryOneRow(ctx context.Context, conn *sql.Conn, query string, args []interface{}) (map[string]interface{}, error) {
	result, err := queryRows(ctx, conn, query, args)
	if err != nil {
		return nil, err
	}
	if len(result) == 0 {
		return nil, nil
	}
	return result[0], nil
}

func normalizeValue(value interface{}) interface{} {
	switch v := value.(type) {
	case []byte:
		return string(v)
	case time.Time:
		return v.UTC()
	default:
		return value
	}
}
