package gateway

import (
	"fmt"
	"net/http"

	"github.com/goccy/go-json"
)

// requestError is an error with an associated http status. Everything the
// dispatcher cannot classify is treated as a store error and becomes a 500.
type requestError struct {
	status  int
	message string
}

func (e *requestError) Error() string {
	return e.message
}

func errValidation(format string, args ...interface{}) error {
	return &requestError{status: http.StatusBadRequest, message: fmt.Sprintf(format, args...)}
}

func errUnauthorized() error {
	return &requestError{status: http.StatusUnauthorized, message: "authentication required"}
}

func errForbidden() error {
	return &requestError{status: http.StatusForbidden, message: "admin role required"}
}

func statusOf(err error) int {
	if re, ok := err.(*requestError); ok {
		return re.status
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, status int, object interface{}) {
	jsonData, err := json.Marshal(object)
	if err != nil {
		http.Error(w, `{"error":"cannot marshal response"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(jsonData)
}

// writeData writes the success envelope for reads and row-returning writes.
func writeData(w http.ResponseWriter, data interface{}) {
	writeJSON(w, http.StatusOK, map[string]interface{}{"data": data})
}

// writeSuccess writes the success envelope for delete and setup.
func writeSuccess(w http.ResponseWriter) {
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true})
}

// writeResults writes the batch envelope, aligned to request order.
func writeResults(w http.ResponseWriter, results []interface{}) {
	writeJSON(w, http.StatusOK, map[string]interface{}{"results": results})
}

// writeError maps a failure to the error envelope. Raw row data never
// travels on this path, only the error message.
func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, statusOf(err), map[string]interface{}{"error": err.Error()})
}
