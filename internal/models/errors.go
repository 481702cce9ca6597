package models

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrPlanUnavailable — план из события отсутствует или неактивен.
	ErrPlanUnavailable = errors.New("plan is unavailable")
	// ErrSubscriptionNotFound — у пользователя нет подписки.
	ErrSubscriptionNotFound = errors.New("subscription not found")
	// ErrPlanNotFound — подписка ссылается на несуществующий план.
	ErrPlanNotFound = errors.New("plan not found")
	// ErrMethodNotAllowed — метод запроса не поддерживается.
	ErrMethodNotAllowed = errors.New("method not allowed")
)

// ValidationError описывает некорректное или неполное событие.
type ValidationError struct {
	Messages []string
}

func NewValidationError(msgs ...string) *ValidationError {
	return &ValidationError{Messages: msgs}
}

func (e *ValidationError) Error() string {
	return strings.Join(e.Messages, ", ")
}

// StoreError оборачивает сбой обращения к хранилищу.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}
