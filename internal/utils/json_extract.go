package utils

import (
	"encoding/json"
	"errors"
	"strings"
)

var (
	// ErrNoBalancedObject - в тексте нет ни одной сбалансированной пары фигурных скобок.
	ErrNoBalancedObject = errors.New("no balanced JSON object found")
	// ErrMalformedObject - сбалансированный фрагмент найден, но это невалидный JSON.
	ErrMalformedObject = errors.New("balanced fragment is not valid JSON")
)

// ExtractFirstJSONObject возвращает самый левый сбалансированный JSON-объект из текста.
// Скобки внутри строковых литералов и экранированные кавычки не учитываются.
// Текст до и после объекта игнорируется.
func ExtractFirstJSONObject(text string) (string, error) {
	start := strings.IndexByte(text, '{')
	if start == -1 {
		return "", ErrNoBalancedObject
	}

	end := matchingBrace(text, start)
	if end == -1 {
		return "", ErrNoBalancedObject
	}

	candidate := text[start : end+1]
	if !json.Valid([]byte(candidate)) {
		return "", ErrMalformedObject
	}
	return candidate, nil
}

// matchingBrace возвращает индекс '}', закрывающей '{' в позиции start, или -1.
func matchingBrace(text string, start int) int {
	depth := 0
	inString := false
	escape := false

	for i := start; i < len(text); i++ {
		ch := text[i]
		if escape {
			escape = false
			continue
		}
		if inString {
			switch ch {
			case '\\':
				escape = true
			case '"':
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}
