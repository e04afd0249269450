package service

import (
	"errors"
	"fmt"
)

// ErrNotFound indicates the requested resource was not found.
var ErrNotFound = errors.New("not found")

// ErrUnauthorized indicates the authorization policy denied the action.
var ErrUnauthorized = errors.New("unauthorized")

// NotFoundError names the missing entity (HTTP 404).
type NotFoundError struct {
	Entity string
	ID     uint
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %d not found", e.Entity, e.ID)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// UnauthorizedError represents a policy denial (HTTP 403).
type UnauthorizedError struct {
	Message string
}

func (e *UnauthorizedError) Error() string { return e.Message }

func (e *UnauthorizedError) Is(target error) bool { return target == ErrUnauthorized }

// ValidationError represents a bad-request condition (HTTP 400).
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// ConflictError represents a conflict condition (HTTP 409).
type ConflictError struct {
	Message string
}

func (e *ConflictError) Error() string { return e.Message }

func notFound(entity string, id uint) error {
	return &NotFoundError{Entity: entity, ID: id}
}
