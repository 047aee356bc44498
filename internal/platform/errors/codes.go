// Package errors provides the structured error type shared by cart packages.
package errors

import (
	"net/http"

	"google.golang.org/grpc/codes"
)

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// Transport-level codes.
	CodeInvalidArgument   Code = "INVALID_ARGUMENT"
	CodeNotFound          Code = "NOT_FOUND"
	CodeResourceExhausted Code = "RESOURCE_EXHAUSTED"
	CodeUnavailable       Code = "UNAVAILABLE"
	CodeInternal          Code = "INTERNAL"

	// Cart validation codes.
	CodeCartEmptySessionID  Code = "CART_EMPTY_SESSION_ID"
	CodeCartEmptyItemID     Code = "CART_EMPTY_ITEM_ID"
	CodeCartEmptyItemName   Code = "CART_EMPTY_ITEM_NAME"
	CodeCartInvalidPrice    Code = "CART_INVALID_PRICE"
	CodeCartInvalidQuantity Code = "CART_INVALID_QUANTITY"
	CodeCartInvalidBudget   Code = "CART_INVALID_BUDGET"
)

// Category collapses a code onto the coarse transport category used in
// WebSocket error frames.
func (c Code) Category() Code {
	switch c {
	case CodeInvalidArgument,
		CodeCartEmptySessionID,
		CodeCartEmptyItemID,
		CodeCartEmptyItemName,
		CodeCartInvalidPrice,
		CodeCartInvalidQuantity,
		CodeCartInvalidBudget:
		return CodeInvalidArgument
	case CodeNotFound:
		return CodeNotFound
	case CodeResourceExhausted:
		return CodeResourceExhausted
	case CodeUnavailable:
		return CodeUnavailable
	default:
		return CodeInternal
	}
}

// HTTPStatus maps a code to an HTTP status.
func (c Code) HTTPStatus() int {
	switch c.Category() {
	case CodeInvalidArgument:
		return http.StatusBadRequest
	case CodeNotFound:
		return http.StatusNotFound
	case CodeResourceExhausted:
		return http.StatusTooManyRequests
	case CodeUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Retryable reports whether a client may resend the same request unchanged.
func (c Code) Retryable() bool {
	switch c.Category() {
	case CodeResourceExhausted, CodeUnavailable:
		return true
	default:
		return false
	}
}

// GRPCCode maps a code to a gRPC status code.
func (c Code) GRPCCode() codes.Code {
	switch c.Category() {
	case CodeInvalidArgument:
		return codes.InvalidArgument
	case CodeNotFound:
		return codes.NotFound
	case CodeResourceExhausted:
		return codes.ResourceExhausted
	case CodeUnavailable:
		return codes.Unavailable
	default:
		return codes.Internal
	}
}
