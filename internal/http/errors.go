package http

import (
	"errors"
	"net/http"

	"github.com/fyrsmithlabs/ticketdup/internal/detector"
	"github.com/fyrsmithlabs/ticketdup/internal/errkind"
)

const (
	codeInvalidRequest = "invalid_request"
	codeInternal       = "internal"
)

var codeStatus = map[errkind.Code]int{
	errkind.CodeEmptyInput:           http.StatusBadRequest,
	errkind.CodeMalformedVector:      http.StatusBadRequest,
	errkind.CodeIndexNotFound:        http.StatusNotFound,
	errkind.CodeIndexExists:          http.StatusConflict,
	errkind.CodeInputTooLarge:        http.StatusRequestEntityTooLarge,
	errkind.CodeEmbeddingUnavailable: http.StatusBadGateway,
	errkind.CodeConnectionFailure:    http.StatusServiceUnavailable,
	errkind.CodeTimeoutExceeded:      http.StatusGatewayTimeout,
}

// statusFor maps an error to an HTTP status and a stable error code.
func statusFor(err error) (int, string) {
	if errors.Is(err, detector.ErrInvalidRequest) {
		return http.StatusBadRequest, codeInvalidRequest
	}
	code := errkind.CodeOf(err)
	if status, ok := codeStatus[code]; ok {
		return status, string(code)
	}
	return http.StatusInternalServerError, codeInternal
}
