// Package domain holds the error taxonomy shared by the service and transport layers.
package domain

import (
	"errors"
	"sort"
	"strings"
)

// Sentinel errors. Typed errors below unwrap to one of these.
var (
	ErrValidation      = errors.New("validation failed")
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrForbidden       = errors.New("forbidden")
	ErrNotFound        = errors.New("not found")
	ErrConflict        = errors.New("conflict")
)

// ValidationError carries per-field messages. It is always reported as 422.
type ValidationError struct {
	Fields map[string][]string
}

func NewValidationError() *ValidationError {
	return &ValidationError{Fields: map[string][]string{}}
}

// Add appends a message for field.
func (e *ValidationError) Add(field, message string) {
	if e.Fields == nil {
		e.Fields = map[string][]string{}
	}
	e.Fields[field] = append(e.Fields[field], message)
}

// Empty reports whether no messages were collected.
func (e *ValidationError) Empty() bool {
	return e == nil || len(e.Fields) == 0
}

// Merge copies all messages of other into e.
func (e *ValidationError) Merge(other *ValidationError) {
	if other == nil {
		return
	}
	for field, msgs := range other.Fields {
		for _, m := range msgs {
			e.Add(field, m)
		}
	}
}

// First returns the first message in field-name order; used as the envelope message.
func (e *ValidationError) First() string {
	if e.Empty() {
		return ErrValidation.Error()
	}
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return e.Fields[keys[0]][0]
}

func (e *ValidationError) Error() string {
	if e.Empty() {
		return ErrValidation.Error()
	}
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+strings.Join(e.Fields[k], ", "))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// ConflictError reports a violated invariant (409) with a client-facing message.
type ConflictError struct {
	Message string
}

func Conflict(message string) error {
	return &ConflictError{Message: message}
}

func (e *ConflictError) Error() string { return e.Message }
func (e *ConflictError) Unwrap() error { return ErrConflict }

// NotFoundError names the resource that did not resolve.
type NotFoundError struct {
	Resource string
	Message  string
}

func NotFound(resource string) error {
	return &NotFoundError{Resource: resource}
}

// NotFoundMessage builds a NotFoundError with an explicit client message.
func NotFoundMessage(message string) error {
	return &NotFoundError{Message: message}
}

func (e *NotFoundError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Resource == "" {
		return "Resource not found"
	}
	return e.Resource + " not found"
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// ForbiddenError optionally overrides the default 403 message.
type ForbiddenError struct {
	Message string
}

func Forbidden(message string) error {
	return &ForbiddenError{Message: message}
}

func (e *ForbiddenError) Error() string {
	if e.Message == "" {
		return "This action is unauthorized."
	}
	return e.Message
}

func (e *ForbiddenError) Unwrap() error { return ErrForbidden }

// AuthenticationError carries a client-facing 401 message.
type AuthenticationError struct {
	Message string
}

func Unauthenticated(message string) error {
	return &AuthenticationError{Message: message}
}

func (e *AuthenticationError) Error() string {
	if e.Message == "" {
		return "Unauthenticated."
	}
	return e.Message
}

func (e *AuthenticationError) Unwrap() error { return ErrUnauthenticated }
