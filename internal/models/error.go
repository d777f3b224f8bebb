package models

import (
	"errors"
	"fmt"
	"time"
)

// Errores de dominio que los handlers traducen a códigos HTTP
var (
	ErrCartNotFound      = errors.New("cart not found")
	ErrEmptyCart         = errors.New("cart is empty")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrInvoiceNotFound   = errors.New("invoice not found")
	ErrProductNotFound   = errors.New("product not found")
	ErrSessionNotFound   = errors.New("session not found")
)

// ErrorCode representa el código de error
type ErrorCode string

const (
	ErrorCodeInvalidRequest ErrorCode = "INVALID_REQUEST"
	ErrorCodeUnauthorized   ErrorCode = "UNAUTHORIZED"
	ErrorCodeNotFound       ErrorCode = "NOT_FOUND"
	ErrorCodeConflict       ErrorCode = "CONFLICT"
	ErrorCodeRateLimited    ErrorCode = "RATE_LIMITED"
	ErrorCodeInternal       ErrorCode = "INTERNAL"
)

// ErrorDetail representa un detalle específico del error
type ErrorDetail struct {
	Field string `json:"field"`
	Issue string `json:"issue"`
}

// ErrorResponse representa la respuesta de error estandarizada
type ErrorResponse struct {
	Error ErrorInfo `json:"error"`
}

// ErrorInfo representa la información del error
type ErrorInfo struct {
	Code    string        `json:"code"`
	Message string        `json:"message"`
	Details []ErrorDetail `json:"details,omitempty"`
}

func newErrorResponse(code ErrorCode, message string, details []ErrorDetail) ErrorResponse {
	return ErrorResponse{
		Error: ErrorInfo{
			Code:    string(code),
			Message: message,
			Details: details,
		},
	}
}

// NewValidationError crea un error de validación con detalles
func NewValidationError(message string, details []ErrorDetail) ErrorResponse {
	return newErrorResponse(ErrorCodeInvalidRequest, message, details)
}

// NewConflictError crea un error de conflicto
func NewConflictError(message string) ErrorResponse {
	return newErrorResponse(ErrorCodeConflict, message, nil)
}

// NewUnauthorizedError crea un error de autenticación
func NewUnauthorizedError(message string) ErrorResponse {
	return newErrorResponse(ErrorCodeUnauthorized, message, nil)
}

// NewNotFoundError crea un error de recurso no encontrado
func NewNotFoundError(message string) ErrorResponse {
	return newErrorResponse(ErrorCodeNotFound, message, nil)
}

// NewRateLimitedError crea un error de rate limiting
func NewRateLimitedError(message string, retryAfter time.Duration) ErrorResponse {
	return newErrorResponse(ErrorCodeRateLimited, message, []ErrorDetail{
		{Field: "retry_after", Issue: fmt.Sprintf("%.0fs", retryAfter.Seconds())},
	})
}

// NewInternalError crea un error interno del servidor
func NewInternalError(message string) ErrorResponse {
	return newErrorResponse(ErrorCodeInternal, message, nil)
}
