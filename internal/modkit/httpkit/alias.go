// Package httpkit gives modules the handler and routing helpers they mount with
// modules import this instead of the platform http package
package httpkit

import (
	"net/http"

	phttp "dayonme/internal/platform/net/http"
	"dayonme/internal/platform/net/http/bind"
)

type (
	// Response is the HTTP response type
	Response = phttp.Response

	// Handler is the platform handler type
	Handler = phttp.Handler

	// Router is a re-export of the platform router seam
	Router = phttp.Router
)

// OK returns a 200 response
func OK(data any) Response { return phttp.OK(data) }

// Created returns a 201 response
func Created(data any) Response { return phttp.Created(data) }

// Degraded returns a 200 response carrying a notice for the user
func Degraded(data any, notice string) Response { return phttp.Degraded(data, notice) }

// NoContent returns a 204 response
func NoContent() Response { return phttp.NoContent() }

// Error returns a response that maps an error to status and envelope
func Error(err error) Response { return phttp.Error(err) }

// Param returns a path parameter
func Param(r *http.Request, name string) string { return phttp.Param(r, name) }

// Call adapts a handler without a JSON body; a returned Response passes through untouched
func Call(fn func(*http.Request) (any, error)) Handler {
	return phttp.Handle(func(r *http.Request) phttp.Response {
		return settle(fn(r))
	})
}

// JSON binds and validates a T body, then behaves like Call
func JSON[T any](fn func(*http.Request, T) (any, error)) Handler {
	return phttp.Handle(func(r *http.Request) phttp.Response {
		in, err := bind.ParseJSON[T](r)
		if err != nil {
			return phttp.Error(err)
		}
		return settle(fn(r, in))
	})
}

func settle(out any, err error) Response {
	if err != nil {
		return phttp.Error(err)
	}
	if resp, ok := out.(phttp.Response); ok {
		return resp
	}
	return phttp.OK(out)
}
