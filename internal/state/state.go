// Package state proyecta el ciclo de vida de una operación asíncrona en un
// estado observable: idle, loading, success, error y empty.
package state

import "encoding/json"

// Kind identifica la variante activa de un State
type Kind int

const (
	KindIdle Kind = iota
	KindLoading
	KindSuccess
	KindError
	KindEmpty
)

// UnknownErrorMessage es el mensaje usado cuando la operación falla sin motivo
const UnknownErrorMessage = "Unknown error"

// String retorna el nombre de la variante
func (k Kind) String() string {
	switch k {
	case KindIdle:
		return "idle"
	case KindLoading:
		return "loading"
	case KindSuccess:
		return "success"
	case KindError:
		return "error"
	case KindEmpty:
		return "empty"
	default:
		return "unknown"
	}
}

// State es la unión etiquetada del resultado de una operación.
// Value solo es significativo en KindSuccess y Message solo en KindError.
type State[T any] struct {
	Kind    Kind
	Value   T
	Message string
}

// Idle crea el estado inicial
func Idle[T any]() State[T] {
	return State[T]{Kind: KindIdle}
}

// Loading crea el estado de operación en curso
func Loading[T any]() State[T] {
	return State[T]{Kind: KindLoading}
}

// Success crea un estado exitoso con su resultado
func Success[T any](value T) State[T] {
	return State[T]{Kind: KindSuccess, Value: value}
}

// Failure crea un estado de error con un mensaje mostrable
func Failure[T any](message string) State[T] {
	if message == "" {
		message = UnknownErrorMessage
	}
	return State[T]{Kind: KindError, Message: message}
}

// Empty crea el estado de éxito sin datos
func Empty[T any]() State[T] {
	return State[T]{Kind: KindEmpty}
}

// IsTerminal indica si el estado cierra un ciclo de Trigger
func (s State[T]) IsTerminal() bool {
	return s.Kind == KindSuccess || s.Kind == KindError || s.Kind == KindEmpty
}

type stateJSON[T any] struct {
	Status  string `json:"status"`
	Data    *T     `json:"data,omitempty"`
	Message string `json:"message,omitempty"`
}

// MarshalJSON serializa el estado como {"status", "data", "message"}
func (s State[T]) MarshalJSON() ([]byte, error) {
	out := stateJSON[T]{Status: s.Kind.String()}
	switch s.Kind {
	case KindSuccess:
		value := s.Value
		out.Data = &value
	case KindError:
		out.Message = s.Message
	}
	return json.Marshal(out)
}
