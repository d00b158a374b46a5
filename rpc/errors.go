package rpc

import (
	"errors"
	"net/http"

	coreerrors "github.com/lulo-labs/lulo-sc/core/errors"
	"github.com/lulo-labs/lulo-sc/indexer"
)

const (
	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeServerError    = -32000
	codeUnauthorized   = -32001
	codeRateLimited    = -32020
	codeUnavailable    = -32021

	codeNotFound      = -32031
	codeForbidden     = -32032
	codeConflict      = -32033
	codeInvalidState  = -32034
	codeCustodyFailed = -32035
)

var errUnavailable = errors.New("rpc: feature not enabled on this node")

// errorResponse maps a ledger error onto an HTTP status, a JSON-RPC code and a
// stable message.
func errorResponse(err error) (int, int, string) {
	if errors.Is(err, indexer.ErrNotFound) {
		return http.StatusNotFound, codeNotFound, "not found"
	}
	if errors.Is(err, errUnavailable) {
		return http.StatusServiceUnavailable, codeUnavailable, "unavailable"
	}
	switch coreerrors.Classify(err) {
	case coreerrors.ClassValidation:
		return http.StatusBadRequest, codeInvalidParams, "invalid request"
	case coreerrors.ClassAuthorization:
		return http.StatusForbidden, codeForbidden, "unauthorized signer"
	case coreerrors.ClassNotFound:
		return http.StatusNotFound, codeNotFound, "not found"
	case coreerrors.ClassConflict:
		return http.StatusConflict, codeConflict, "conflict"
	case coreerrors.ClassInvalidState:
		return http.StatusConflict, codeInvalidState, "invalid contract state"
	case coreerrors.ClassCustody:
		return http.StatusUnprocessableEntity, codeCustodyFailed, "token operation rejected"
	default:
		return http.StatusInternalServerError, codeServerError, "internal error"
	}
}
