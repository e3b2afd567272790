package http

import (
	"maps"
	"net/http"
	"slices"

	"accounting/internal/auth"
	"accounting/internal/core"
	"accounting/internal/log"
	"accounting/internal/permissions"
	"accounting/internal/services"
)

// fail writes err through the error taxonomy and logs it. Server-side
// failures log at error level, client mistakes at debug.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	b, kind := errorResponse(err, s.dev)
	logger := log.FromContext(r.Context())
	fields := log.NewFields().WithError(err).WithErrorType(kind).ToSlice()
	if b.statusCode >= http.StatusInternalServerError {
		logger.ErrorContext(r.Context(), "Request failed", fields...)
	} else {
		logger.DebugContext(r.Context(), "Request rejected", fields...)
	}
	b.Write(w)
}

func principal(r *http.Request) auth.Principal {
	p, _ := auth.FromContext(r.Context())
	return p
}

// writeInput parses the body for resource and applies the field policy:
// validate, then filter. It writes the error response itself and reports
// false when the request must stop.
func (s *Server) writeInput(w http.ResponseWriter, r *http.Request, resource core.Resource) (services.Input, bool) {
	in, err := NewRequestBodyParser(w, r).Input(resource)
	if err != nil {
		s.fail(w, r, err)
		return nil, false
	}
	role := principal(r).Role
	fields := slices.Sorted(maps.Keys(in))
	if err := s.policy.Check(role, resource, fields); err != nil {
		s.fail(w, r, err)
		return nil, false
	}
	return services.Input(s.policy.FilterToEditable(role, resource, in)), true
}

// canDelete refuses roles that may not edit resource at all.
func (s *Server) canDelete(w http.ResponseWriter, r *http.Request, resource core.Resource) bool {
	if !s.policy.IsResourceEditable(principal(r).Role, resource) {
		s.fail(w, r, core.Forbidden("Edit access denied"))
		return false
	}
	return true
}

func (s *Server) meta(r *http.Request, resource core.Resource) permissions.Metadata {
	return s.policy.Describe(principal(r).Role, resource)
}

// listResponse builds a collection response with the caller's editing metadata.
func listResponse[T any](s *Server, r *http.Request, resource core.Resource, items []T) *ResponseBuilder {
	if items == nil {
		items = []T{}
	}
	return NewResponse().Data(items).Meta(s.meta(r, resource))
}

func deleted(w http.ResponseWriter, msg string) {
	NewResponse().Message(msg).Write(w)
}

func created(w http.ResponseWriter, v any, msg string) {
	NewResponse().Status(http.StatusCreated).Data(v).Message(msg).Write(w)
}
