package handlers

import (
	"encoding/json"
	stderrors "errors"
	"net/http"
	"strconv"
	"strings"

	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/coprede/sir-dashboard/pkg/errors"
	"github.com/coprede/sir-dashboard/pkg/types/common"
)

const (
	defaultLimit = 20
	maxLimit     = 500
)

// parseTypes reads the type selection from repeated ?types= parameters.
// Values are matched exactly against record types, so they are neither
// trimmed nor split. No selection returns nil.
func parseTypes(r *http.Request) []string {
	var out []string
	for _, t := range r.URL.Query()["types"] {
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}

// parseDatasets reads ?datasets=RAL,REC. The parameter may also repeat.
func parseDatasets(r *http.Request) []string {
	var out []string
	for _, raw := range r.URL.Query()["datasets"] {
		for _, d := range strings.Split(raw, ",") {
			if d = strings.TrimSpace(d); d != "" {
				out = append(out, d)
			}
		}
	}
	return out
}

// parseLimit reads ?limit=, defaulting to 20 and capping at 500.
func parseLimit(r *http.Request) (int, error) {
	v := r.URL.Query().Get("limit")
	if v == "" {
		return defaultLimit, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 0, errors.InvalidParam("limit must be a positive integer").WithDetail(v)
	}
	if n > maxLimit {
		n = maxLimit
	}
	return n, nil
}

func writeJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}

func writeOK[T any](w http.ResponseWriter, r *http.Request, data T) {
	writeJSON(w, http.StatusOK, common.OK(data, chimw.GetReqID(r.Context())))
}

// writeAppError maps err to its HTTP status. Errors without an AppError in
// the chain are masked as internal errors.
func writeAppError(w http.ResponseWriter, r *http.Request, err error) {
	var appErr *errors.AppError
	if !stderrors.As(err, &appErr) {
		appErr = errors.Internal("")
	}
	status := errors.HTTPStatusForCode(appErr.Code)

	resp := common.Fail(string(appErr.Code), appErr.Message, chimw.GetReqID(r.Context()))
	if status < http.StatusInternalServerError {
		resp.Error.Detail = appErr.Detail
	}
	writeJSON(w, status, resp)
}

// WriteError is writeAppError for middleware outside this package.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	writeAppError(w, r, err)
}
