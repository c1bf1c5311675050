// Package response содержит вспомогательные типы и функции для формирования
// унифицированных JSON‑ответов HTTP‑обработчиков. Пакет упрощает возврат
// успешных ответов, ошибок и сообщений валидации в едином формате, а также
// переводит вид ошибки приложения в HTTP-статус.
package response

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/journal-accounts/internal/lib/apperr"
)

// Response описывает стандартную структуру JSON‑ответа сервера.
// Поле Status — статус запроса ("OK" или "Error").
// Поле Error — текст ошибки (опционально, при неуспехе).
// Поле Kind — вид ошибки (опционально, при неуспехе).
// Поле Data — данные ответа (опционально, при успехе).
type Response struct {
	Status string      `json:"status"`
	Error  string      `json:"error,omitempty"`
	Kind   apperr.Kind `json:"kind,omitempty"`
	Data   any         `json:"data,omitempty"`
}

const (
	// StatusOK — значение статуса для успешного ответа.
	StatusOK = "OK"
	// StatusError — значение статуса для ответа с ошибкой.
	StatusError = "Error"
)

// OKWithData возвращает успешный Response с переданными данными.
func OKWithData(data any) Response {
	return Response{
		Status: StatusOK,
		Data:   data,
	}
}

// Error возвращает Response с ошибкой и переданным сообщением.
func Error(msg string) Response {
	return Response{
		Status: StatusError,
		Error:  msg,
	}
}

// ErrorWithKind возвращает Response с ошибкой заданного вида.
func ErrorWithKind(kind apperr.Kind, msg string) Response {
	return Response{
		Status: StatusError,
		Error:  msg,
		Kind:   kind,
	}
}

// HTTPStatus переводит вид ошибки в HTTP-статус.
func HTTPStatus(kind apperr.Kind) int {
	switch kind {
	case apperr.Unauthenticated:
		return http.StatusUnauthorized
	case apperr.InvalidArgument:
		return http.StatusBadRequest
	case apperr.NotFound:
		return http.StatusNotFound
	case apperr.FailedPrecondition:
		return http.StatusPreconditionFailed
	default:
		return http.StatusInternalServerError
	}
}

// Fail пишет ответ с ошибкой: статус и вид берутся из apperr, текст
// внутренних ошибок наружу не отдаётся.
func Fail(w http.ResponseWriter, r *http.Request, err error) {
	kind := apperr.KindOf(err)
	msg := apperr.MessageOf(err)
	if kind == apperr.Internal && msg == "" {
		msg = "internal error"
	}
	render.Status(r, HTTPStatus(kind))
	render.JSON(w, r, ErrorWithKind(kind, msg))
}

// ValidationError формирует Response со статусом Error на основе ошибок валидации.
// Каждое нарушение формируется в человеко‑читаемый текст, объединённый через запятую.
func ValidationError(errs validator.ValidationErrors) Response {
	var errsMsgs []string

	for _, err := range errs {
		switch err.ActualTag() {
		case "required":
			errsMsgs = append(errsMsgs, fmt.Sprintf("field %s is a required field", err.Field()))
		case "email":
			errsMsgs = append(errsMsgs, fmt.Sprintf("field %s is not a valid email", err.Field()))
		case "min":
			errsMsgs = append(errsMsgs, fmt.Sprintf("field %s is too short", err.Field()))
		case "url":
			errsMsgs = append(errsMsgs, fmt.Sprintf("field %s is not a valid url", err.Field()))
		default:
			errsMsgs = append(errsMsgs, fmt.Sprintf("field %s is not a valid", err.Field()))
		}
	}
	return Response{
		Status: StatusError,
		Error:  strings.Join(errsMsgs, ", "),
		Kind:   apperr.InvalidArgument,
	}
}
