package models

import (
	"errors"
	"fmt"
	"strings"
)

// Application-wide standard errors
var (
	// Common Resource/DB Errors
	ErrNotFound    = errors.New("resource not found")
	ErrPersistence = errors.New("failed to persist scene")

	// Authentication Errors
	ErrUnauthorized   = errors.New("unauthorized")
	ErrTokenInvalid   = errors.New("token is invalid")
	ErrTokenMalformed = errors.New("token is malformed")
	ErrTokenExpired   = errors.New("token has expired")

	// Request Errors
	ErrSceneTextRequired = errors.New("Scene text is required")
	ErrInvalidInput      = errors.New("invalid input data")

	// Model Errors
	ErrAIGenerationFailed    = errors.New("AI generation failed") // модель недоступна, отказ в доступе или пустой ответ
	ErrAIClientNotConfigured = errors.New("AI provider API key not set. Configure the ai_api_key secret")
	ErrParse                 = errors.New("invalid JSON from AI")
	ErrNoJSONObject          = errors.New("no JSON object found in model response")
	ErrInvalidJSON           = errors.New("model response contains malformed JSON")
	ErrSchemaViolation       = errors.New("breakdown does not match the expected schema")
)

// ParseError описывает неудачу разбора ответа модели.
// Raw хранит исходный текст ответа для диагностики.
type ParseError struct {
	Raw string
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%v: %v", ErrParse, e.Err)
}

// Unwrap позволяет errors.Is находить как ErrParse, так и конкретную причину.
func (e *ParseError) Unwrap() []error {
	return []error{ErrParse, e.Err}
}

// FieldViolation - одно нарушение схемы разбора.
type FieldViolation struct {
	Field    string `json:"field"`
	Expected string `json:"expected"`
	Got      string `json:"got"`
}

// SchemaError перечисляет все поля, не прошедшие проверку схемы.
type SchemaError struct {
	Violations []FieldViolation
}

func (e *SchemaError) Error() string {
	parts := make([]string, 0, len(e.Violations))
	for _, v := range e.Violations {
		parts = append(parts, fmt.Sprintf("%s: expected %s, got %s", v.Field, v.Expected, v.Got))
	}
	return fmt.Sprintf("%v (%s)", ErrSchemaViolation, strings.Join(parts, "; "))
}

func (e *SchemaError) Unwrap() error {
	return ErrSchemaViolation
}
