package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"go.uber.org/zap"
	"google.golang.org/grpc/codes"

	"github.com/rl1809/stock-replenishment/internal/core/domain"
)

const kindTimeout = "TIMEOUT"

type ErrorResponse struct {
	ErrorCode string `json:"error_code"`
	Message   string `json:"message"`
}

type errorMapping struct {
	status int
	code   codes.Code
}

var errorMappings = map[string]errorMapping{
	domain.KindNotFound:          {http.StatusNotFound, codes.NotFound},
	domain.KindInvalidInput:      {http.StatusBadRequest, codes.InvalidArgument},
	domain.KindInsufficientStock: {http.StatusConflict, codes.FailedPrecondition},
	domain.KindModelUnavailable:  {http.StatusServiceUnavailable, codes.Unavailable},
	domain.KindUpstream:          {http.StatusBadGateway, codes.Unavailable},
	domain.KindDuplicateRequest:  {http.StatusConflict, codes.AlreadyExists},
	kindTimeout:                  {http.StatusGatewayTimeout, codes.DeadlineExceeded},
}

// classify returns the error kind plus the HTTP status and gRPC code it maps to.
func classify(err error) (string, errorMapping) {
	kind := domain.Kind(err)
	if kind == domain.KindInternal || kind == domain.KindUpstream {
		if errors.Is(err, context.DeadlineExceeded) {
			kind = kindTimeout
		}
	}
	m, ok := errorMappings[kind]
	if !ok {
		return domain.KindInternal, errorMapping{http.StatusInternalServerError, codes.Internal}
	}
	return kind, m
}

// publicMessage hides internal detail on server-side failures.
func publicMessage(kind string, err error) string {
	switch kind {
	case domain.KindInternal:
		return "internal error"
	case domain.KindUpstream:
		return "upstream dependency failed"
	case kindTimeout:
		return "request timed out"
	}
	return err.Error()
}

func (h *HTTPHandler) fail(w http.ResponseWriter, r *http.Request, err error) {
	kind, m := classify(err)
	if m.status >= http.StatusInternalServerError {
		h.logger.Error("request failed",
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.String("path", r.URL.Path),
			zap.String("error_code", kind),
			zap.Error(err))
	}
	h.respondError(w, r, m.status, kind, publicMessage(kind, err))
}

func (h *HTTPHandler) respondError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	render.Status(r, status)
	render.JSON(w, r, ErrorResponse{ErrorCode: code, Message: message})
}

func (h *HTTPHandler) badRequest(w http.ResponseWriter, r *http.Request, message string) {
	h.respondError(w, r, http.StatusBadRequest, domain.KindInvalidInput, message)
}
