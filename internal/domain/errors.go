package domain

import "errors"

var (
	// ErrInvalidTask — task не прошёл валидацию при создании.
	ErrInvalidTask = errors.New("invalid task")

	// ErrInvalidTransition — недопустимый переход статуса.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrTaskNotFound — task с таким ID нет в pipeline.
	ErrTaskNotFound = errors.New("task not found")
)

// ValidationError — ошибка валидации task с указанием поля.
type ValidationError struct {
	Field   string // поле, вызвавшее ошибку
	Message string // описание ошибки
	Err     error  // базовая ошибка
}

// Error реализует интерфейс error.
func (e *ValidationError) Error() string {
	if e.Field != "" {
		return e.Field + ": " + e.Message
	}
	return e.Message
}

// Unwrap возвращает базовую ошибку.
func (e *ValidationError) Unwrap() error {
	return e.Err
}

// NewValidationError создаёт ошибку валидации, оборачивающую ErrInvalidTask.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
		Err:     ErrInvalidTask,
	}
}
