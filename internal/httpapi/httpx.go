package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/ppiankov/chainkernel/internal/indexer"
	"github.com/ppiankov/chainkernel/internal/ledger"
	"github.com/ppiankov/chainkernel/internal/server"
)

// requestID is the id middleware.RequestID put on r, or a fresh one when
// the handler runs outside the router.
func requestID(r *http.Request) string {
	if id := middleware.GetReqID(r.Context()); id != "" {
		return id
	}
	return "req_" + uuid.NewString()
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("content-type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	id := requestID(r)
	w.Header().Set(middleware.RequestIDHeader, id)
	writeJSON(w, status, map[string]any{
		"request_id": id,
		"error": map[string]any{
			"code":    code,
			"message": message,
		},
	})
}

// writeFailure maps node and indexer errors to HTTP statuses: reverts are
// 403 for permission failures and 409 otherwise.
func writeFailure(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, indexer.ErrNotFound) {
		writeError(w, r, http.StatusNotFound, "NOT_FOUND", err.Error())
		return
	}
	if reason := ledger.Reason(err); reason != "" {
		status := http.StatusConflict
		if server.AuthReason(reason) {
			status = http.StatusForbidden
		}
		writeError(w, r, status, reason, err.Error())
		return
	}
	writeError(w, r, http.StatusInternalServerError, "INTERNAL", err.Error())
}
