package protocol

import "net/http"

const (
	// Request validation.
	ErrBadRequest       = "E_BAD_REQUEST"
	ErrMethodNotAllowed = "E_METHOD_NOT_ALLOWED"
	ErrForbidden        = "E_FORBIDDEN"

	// World state.
	ErrStructureNotFound = "E_STRUCTURE_NOT_FOUND"
	ErrWorldBusy         = "E_WORLD_BUSY"
	ErrTimeout           = "E_TIMEOUT"
	ErrInternal          = "E_INTERNAL"
)

var codeStatus = map[string]int{
	ErrBadRequest:        http.StatusBadRequest,
	ErrMethodNotAllowed:  http.StatusMethodNotAllowed,
	ErrForbidden:         http.StatusForbidden,
	ErrStructureNotFound: http.StatusNotFound,
	ErrWorldBusy:         http.StatusServiceUnavailable,
	ErrTimeout:           http.StatusGatewayTimeout,
	ErrInternal:          http.StatusInternalServerError,
}

func IsKnownCode(code string) bool {
	if code == "" {
		return true
	}
	_, ok := codeStatus[code]
	return ok
}

// HTTPStatus maps a code to its response status. The empty code is 200 and
// unknown codes are 500.
func HTTPStatus(code string) int {
	if code == "" {
		return http.StatusOK
	}
	if s, ok := codeStatus[code]; ok {
		return s
	}
	return http.StatusInternalServerError
}
