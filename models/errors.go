package models

import (
	"errors"
	"fmt"
	"net/http"
)

// Виды ошибок. Любая ошибка хранилища разворачивается в один из них
// (или это инфраструктурный сбой).
var (
	ErrInvalidInput       = errors.New("invalid input")
	ErrInvalidState       = errors.New("invalid state")
	ErrConflict           = errors.New("conflict")
	ErrForbidden          = errors.New("forbidden")
	ErrNotFound           = errors.New("not found")
	ErrVerificationFailed = errors.New("verification failed")
)

// OpError - ошибка операции с устойчивыми Op и Kind.
// Msg показывается пользователю, секретов в нём быть не должно.
type OpError struct {
	Op   string
	Kind error
	Msg  string
}

func (e OpError) Error() string {
	if e.Msg == "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %v: %s", e.Op, e.Kind, e.Msg)
}

func (e OpError) Unwrap() error { return e.Kind }

// E создаёт OpError
func E(op string, kind error, msg string) error {
	return OpError{Op: op, Kind: kind, Msg: msg}
}

// ErrorResponse описывает ошибку с кодом и сообщением.
type ErrorResponse struct {
	StatusCode int    `json:"-"`
	Message    string `json:"reason"`
}

// ToErrorResponse сопоставляет ошибке HTTP-статус и сообщение.
// Forbidden всегда отдаётся без подробностей.
func ToErrorResponse(err error) ErrorResponse {
	var op OpError
	msg := ""
	if errors.As(err, &op) {
		msg = op.Msg
	}

	switch {
	case errors.Is(err, ErrInvalidInput):
		return ErrorResponse{StatusCode: http.StatusBadRequest, Message: orDefault(msg, "invalid request")}
	case errors.Is(err, ErrVerificationFailed):
		return ErrorResponse{StatusCode: http.StatusUnauthorized, Message: "verification failed"}
	case errors.Is(err, ErrForbidden):
		return ErrorResponse{StatusCode: http.StatusForbidden, Message: "access denied"}
	case errors.Is(err, ErrNotFound):
		return ErrorResponse{StatusCode: http.StatusNotFound, Message: orDefault(msg, "not found")}
	case errors.Is(err, ErrInvalidState), errors.Is(err, ErrConflict):
		return ErrorResponse{StatusCode: http.StatusConflict, Message: orDefault(msg, "operation not allowed in current state")}
	default:
		return ErrorResponse{StatusCode: http.StatusInternalServerError, Message: "internal server error"}
	}
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
