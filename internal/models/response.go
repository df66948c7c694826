package models

// ErrorResponse - стандартная структура для ответа об ошибке в формате JSON.
// Debug заполняется только для внутренних ошибок, чтобы клиент мог показать детали.
type ErrorResponse struct {
	Error string `json:"error"`
	Debug string `json:"debug,omitempty"`
}
