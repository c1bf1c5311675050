// Package apperr описывает ошибки, которые возвращаются клиенту вызываемых
// операций: стабильный машиночитаемый вид и человекочитаемое сообщение.
package apperr

import "errors"

// Kind — вид ошибки для клиента.
type Kind string

const (
	Unauthenticated    Kind = "unauthenticated"
	InvalidArgument    Kind = "invalid-argument"
	NotFound           Kind = "not-found"
	FailedPrecondition Kind = "failed-precondition"
	Internal           Kind = "internal"
)

// Error — ошибка с видом и сообщением для клиента. Причина (Err) в ответ
// клиенту не попадает, только в лог.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New создаёт ошибку без причины.
func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

// Wrap создаёт ошибку вида kind с причиной err.
func Wrap(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Message: msg, Err: err}
}

// KindOf возвращает вид ошибки. Всё, что не является *Error, считается Internal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Internal
}

// MessageOf возвращает сообщение для клиента.
func MessageOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return "internal error"
}
