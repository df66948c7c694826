package service

import (
	"bytes"
	"encoding/json"
	"errors"

	"scenebreak/internal/models"
	"scenebreak/internal/utils"
)

type listField struct {
	key   string
	alias string
	dst   func(*models.BreakdownContent) *[]string
}

type textField struct {
	key   string
	alias string
	dst   func(*models.BreakdownContent) *string
}

var breakdownListFields = []listField{
	{key: "characters", dst: func(c *models.BreakdownContent) *[]string { return &c.Characters }},
	{key: "locations", dst: func(c *models.BreakdownContent) *[]string { return &c.Locations }},
	{key: "themes", dst: func(c *models.BreakdownContent) *[]string { return &c.Themes }},
}

var breakdownTextFields = []textField{
	{key: "tone", dst: func(c *models.BreakdownContent) *string { return &c.Tone }},
	{key: "structure", dst: func(c *models.BreakdownContent) *string { return &c.Structure }},
	{key: "technicalNotes", alias: "technical_notes", dst: func(c *models.BreakdownContent) *string { return &c.TechnicalNotes }},
	{key: "visualElements", alias: "visual_elements", dst: func(c *models.BreakdownContent) *string { return &c.VisualElements }},
	{key: "emotionalArc", alias: "emotional_arc", dst: func(c *models.BreakdownContent) *string { return &c.EmotionalArc }},
}

// ParseBreakdown извлекает первый JSON-объект из ответа модели и проверяет его по схеме.
// Все ошибки имеют тип *models.ParseError с исходным текстом в Raw.
func ParseBreakdown(raw string) (models.BreakdownContent, error) {
	candidate, err := utils.ExtractFirstJSONObject(raw)
	if err != nil {
		cause := models.ErrInvalidJSON
		if errors.Is(err, utils.ErrNoBalancedObject) {
			cause = models.ErrNoJSONObject
		}
		return models.BreakdownContent{}, &models.ParseError{Raw: raw, Err: cause}
	}

	content, err := DecodeBreakdown([]byte(candidate))
	if err != nil {
		return models.BreakdownContent{}, &models.ParseError{Raw: raw, Err: err}
	}
	return content, nil
}

// DecodeBreakdown проверяет JSON-объект по схеме разбора.
// Отсутствующие и null поля получают значения по умолчанию, неизвестные ключи игнорируются.
// Поле неверного типа дает *models.SchemaError со списком всех нарушений, значение по умолчанию
// не подставляется. Для ответа модели это 500 на POST /breakdown (например "tone": ["dark"]),
// для разбора из тела POST /scenes - 400.
func DecodeBreakdown(data []byte) (models.BreakdownContent, error) {
	var object map[string]json.RawMessage
	if err := json.Unmarshal(data, &object); err != nil || object == nil {
		return models.BreakdownContent{}, models.ErrInvalidJSON
	}

	var content models.BreakdownContent
	var violations []models.FieldViolation

	for _, f := range breakdownListFields {
		value, ok := lookupField(object, f.key, f.alias)
		if !ok {
			continue
		}
		list, violation := decodeStringList(f.key, value)
		if violation != nil {
			violations = append(violations, *violation)
			continue
		}
		*f.dst(&content) = list
	}

	for _, f := range breakdownTextFields {
		value, ok := lookupField(object, f.key, f.alias)
		if !ok {
			continue
		}
		var s string
		if err := json.Unmarshal(value, &s); err != nil {
			violations = append(violations, models.FieldViolation{Field: f.key, Expected: "string", Got: jsonKind(value)})
			continue
		}
		*f.dst(&content) = s
	}

	if len(violations) > 0 {
		return models.BreakdownContent{}, &models.SchemaError{Violations: violations}
	}
	content.Normalize()
	return content, nil
}

// lookupField возвращает значение ключа (или его snake_case псевдонима).
// null приравнивается к отсутствию.
func lookupField(object map[string]json.RawMessage, key, alias string) (json.RawMessage, bool) {
	value, ok := object[key]
	if !ok && alias != "" {
		value, ok = object[alias]
	}
	if !ok || jsonKind(value) == "null" {
		return nil, false
	}
	return value, true
}

func decodeStringList(field string, value json.RawMessage) ([]string, *models.FieldViolation) {
	var items []json.RawMessage
	if err := json.Unmarshal(value, &items); err != nil {
		return nil, &models.FieldViolation{Field: field, Expected: "array of strings", Got: jsonKind(value)}
	}
	list := make([]string, 0, len(items))
	for _, item := range items {
		var s string
		if err := json.Unmarshal(item, &s); err != nil {
			return nil, &models.FieldViolation{Field: field, Expected: "array of strings", Got: "array containing " + jsonKind(item)}
		}
		list = append(list, s)
	}
	return list, nil
}

func jsonKind(value json.RawMessage) string {
	trimmed := bytes.TrimSpace(value)
	if len(trimmed) == 0 {
		return "empty"
	}
	switch trimmed[0] {
	case '"':
		return "string"
	case '{':
		return "object"
	case '[':
		return "array"
	case 't', 'f':
		return "boolean"
	case 'n':
		return "null"
	default:
		return "number"
	}
}
