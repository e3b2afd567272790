// Package http exposes the accounting API over net/http.
//
// This file holds the response builder. Every handler answers through it so
// the envelope stays uniform:
//
//	{success:true, data, stats?, message?, meta?}
//	{success:false, error, details?}
package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"accounting/internal/core"
	"accounting/internal/log"
)

type envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Stats   any    `json:"stats,omitempty"`
	Message string `json:"message,omitempty"`
	Meta    any    `json:"meta,omitempty"`
	Error   string `json:"error,omitempty"`
	Details any    `json:"details,omitempty"`
}

// ResponseBuilder provides a fluent API for building JSON responses.
type ResponseBuilder struct {
	statusCode int
	body       envelope
	hasData    bool
	headers    map[string]string
}

// NewResponse creates a successful response with status 200.
func NewResponse() *ResponseBuilder {
	return &ResponseBuilder{
		statusCode: http.StatusOK,
		body:       envelope{Success: true},
		headers:    make(map[string]string),
	}
}

func (b *ResponseBuilder) Status(code int) *ResponseBuilder {
	b.statusCode = code
	return b
}

// Data sets the payload. A nil slice is still written as data, so callers
// should pass an empty slice for empty lists.
func (b *ResponseBuilder) Data(v any) *ResponseBuilder {
	b.body.Data = v
	b.hasData = true
	return b
}

func (b *ResponseBuilder) Stats(v any) *ResponseBuilder {
	b.body.Stats = v
	return b
}

func (b *ResponseBuilder) Message(msg string) *ResponseBuilder {
	b.body.Message = msg
	return b
}

func (b *ResponseBuilder) Meta(v any) *ResponseBuilder {
	b.body.Meta = v
	return b
}

func (b *ResponseBuilder) Header(name, value string) *ResponseBuilder {
	b.headers[name] = value
	return b
}

// Write sends the envelope as JSON.
func (b *ResponseBuilder) Write(w http.ResponseWriter) {
	for name, value := range b.headers {
		w.Header().Set(name, value)
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(b.statusCode)

	if b.hasData && b.body.Data == nil {
		// keep "data": null visible for single-object reads that found nothing
		_ = json.NewEncoder(w).Encode(struct {
			envelope
			Data any `json:"data"`
		}{envelope: b.body})
		return
	}
	_ = json.NewEncoder(w).Encode(b.body)
}

// ErrorResponse creates a failure envelope.
func ErrorResponse(statusCode int, message string) *ResponseBuilder {
	return &ResponseBuilder{
		statusCode: statusCode,
		body:       envelope{Success: false, Error: message},
		headers:    make(map[string]string),
	}
}

func (b *ResponseBuilder) Details(v any) *ResponseBuilder {
	b.body.Details = v
	return b
}

func BadRequestError(message string) *ResponseBuilder {
	return ErrorResponse(http.StatusBadRequest, message)
}

func NotFoundError(message string) *ResponseBuilder {
	return ErrorResponse(http.StatusNotFound, message)
}

func InternalServerError(message string) *ResponseBuilder {
	return ErrorResponse(http.StatusInternalServerError, message)
}

func TooManyRequestsError() *ResponseBuilder {
	return ErrorResponse(http.StatusTooManyRequests, "Too many requests, please try again later.")
}

func ServiceUnavailableError(message string) *ResponseBuilder {
	return ErrorResponse(http.StatusServiceUnavailable, message)
}

// errorResponse maps the core error taxonomy onto status codes. Store and
// unknown errors only expose their text when exposeInternal is set.
func errorResponse(err error, exposeInternal bool) (*ResponseBuilder, string) {
	var (
		ve *core.ValidationError
		ae *core.AuthError
		pe *core.PermissionError
		ne *core.NotFoundError
		ce *core.ConflictError
	)
	switch {
	case errors.As(err, &ve):
		b := BadRequestError(ve.Message)
		if ve.Field != "" {
			b.Details(map[string]string{"field": ve.Field, "message": ve.Message})
		}
		return b, log.ErrorTypeValidation
	case errors.As(err, &ae):
		return ErrorResponse(http.StatusUnauthorized, ae.Message), log.ErrorTypeAuth
	case errors.As(err, &pe):
		b := ErrorResponse(http.StatusForbidden, pe.Message)
		if len(pe.DeniedFields) > 0 {
			b.Details(map[string][]string{
				"denied_fields":  pe.DeniedFields,
				"allowed_fields": nonNil(pe.AllowedFields),
			})
		}
		return b, log.ErrorTypePermission
	case errors.As(err, &ne):
		return NotFoundError(ne.Error()), log.ErrorTypeNotFound
	case errors.As(err, &ce):
		return ErrorResponse(http.StatusConflict, ce.Message), log.ErrorTypeConflict
	}

	b := InternalServerError("Internal server error")
	if exposeInternal {
		b.Details(err.Error())
	}
	var se *core.StoreError
	if errors.As(err, &se) {
		return b, log.ErrorTypeDatabase
	}
	return b, log.ErrorTypeInternal
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
