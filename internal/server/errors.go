package server

import (
	"errors"
	"net/http"

	"github.com/fraiseql/specql-sub006/internal/pathgen"
	"github.com/fraiseql/specql-sub006/internal/registry"
	"github.com/fraiseql/specql-sub006/internal/state"
	"github.com/fraiseql/specql-sub006/pkg/numbering"
)

var (
	// errBadRequest marks malformed request bodies and parameters.
	errBadRequest = errors.New("bad request")

	errNoHistory = errors.New("store does not keep an allocation log")
)

var errorClasses = []struct {
	err    error
	status int
	code   string
}{
	{errBadRequest, http.StatusBadRequest, "bad_request"},
	{numbering.ErrMalformedCode, http.StatusBadRequest, "malformed_code"},
	{numbering.ErrInvalidSequence, http.StatusBadRequest, "invalid_sequence"},
	{pathgen.ErrWrongSchemaLayer, http.StatusBadRequest, "wrong_schema_layer"},
	{pathgen.ErrMissingEntityName, http.StatusBadRequest, "missing_entity_name"},
	{registry.ErrScopeMismatch, http.StatusBadRequest, "scope_mismatch"},
	{registry.ErrUnknownDomain, http.StatusNotFound, "unknown_domain"},
	{registry.ErrUnknownSubdomain, http.StatusNotFound, "unknown_subdomain"},
	{registry.ErrUnknownEntity, http.StatusNotFound, "unknown_entity"},
	{state.ErrNotFound, http.StatusNotFound, "registry_not_found"},
	{registry.ErrDuplicateEntity, http.StatusConflict, "duplicate_entity"},
	{registry.ErrCodeInUse, http.StatusConflict, "code_in_use"},
	{registry.ErrDomainExists, http.StatusConflict, "domain_exists"},
	{registry.ErrSubdomainExists, http.StatusConflict, "subdomain_exists"},
	{state.ErrConcurrentModification, http.StatusConflict, "concurrent_modification"},
	{registry.ErrSequenceExhausted, http.StatusUnprocessableEntity, "sequence_exhausted"},
	{state.ErrLockTimeout, http.StatusServiceUnavailable, "lock_timeout"},
	{errNoHistory, http.StatusNotImplemented, "history_unavailable"},
}

// classify maps an error to its HTTP status and stable error code.
func classify(err error) (int, string) {
	for _, c := range errorClasses {
		if errors.Is(err, c.err) {
			return c.status, c.code
		}
	}
	return http.StatusInternalServerError, "internal"
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func writeError(w http.ResponseWriter, err error) {
	status, code := classify(err)
	writeJSON(w, status, errorResponse{Error: code, Message: err.Error()})
}
