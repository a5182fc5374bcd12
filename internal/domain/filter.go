package domain

import (
	"fmt"
	"regexp"
	"strings"
)

var fieldNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// FilterOp — оператор сравнения в фильтре.
type FilterOp string

const (
	FilterEq    FilterOp = "="
	FilterNotEq FilterOp = "!="
)

// FilterCondition — одно условие фильтра.
type FilterCondition struct {
	Field string
	Op    FilterOp
	Value string
}

// Match применяет условие к строковому значению поля.
func (c FilterCondition) Match(value string) bool {
	switch c.Op {
	case FilterEq:
		return value == c.Value
	case FilterNotEq:
		return value != c.Value
	default:
		return false
	}
}

// SortField — одно поле сортировки.
type SortField struct {
	Field string
	Desc  bool
}

// ValidateField проверяет имя поля.
func ValidateField(field string) error {
	if !fieldNamePattern.MatchString(field) {
		return fmt.Errorf("%w: %q", ErrInvalidField, field)
	}
	return nil
}

// FieldNotEmpty строит фильтр "поле не пустое".
func FieldNotEmpty(field string) string {
	return field + " != ''"
}

// ParseFilter разбирает выражение фильтра. Пустое выражение даёт пустой список условий.
func ParseFilter(expr string) ([]FilterCondition, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return nil, nil
	}

	var conds []FilterCondition
	rest := expr
	for {
		cond, tail, err := parseCondition(rest)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrInvalidFilter, expr, err)
		}
		conds = append(conds, cond)

		tail = strings.TrimSpace(tail)
		if tail == "" {
			return conds, nil
		}
		if !strings.HasPrefix(tail, "&&") {
			return nil, fmt.Errorf("%w: %s: unexpected %q", ErrInvalidFilter, expr, tail)
		}
		rest = tail[2:]
	}
}

func parseCondition(s string) (FilterCondition, string, error) {
	s = strings.TrimSpace(s)

	end := 0
	for end < len(s) && (isFieldChar(s[end])) {
		end++
	}
	field := s[:end]
	if err := ValidateField(field); err != nil {
		return FilterCondition{}, "", err
	}

	s = strings.TrimSpace(s[end:])
	var op FilterOp
	switch {
	case strings.HasPrefix(s, "!="):
		op = FilterNotEq
		s = s[2:]
	case strings.HasPrefix(s, "="):
		op = FilterEq
		s = s[1:]
	default:
		return FilterCondition{}, "", fmt.Errorf("operator expected after %q", field)
	}

	s = strings.TrimSpace(s)
	if s == "" || (s[0] != '\'' && s[0] != '"') {
		return FilterCondition{}, "", fmt.Errorf("quoted value expected for %q", field)
	}
	quote := s[0]

	var value strings.Builder
	for i := 1; i < len(s); i++ {
		switch c := s[i]; {
		case c == '\\' && i+1 < len(s):
			i++
			value.WriteByte(s[i])
		case c == quote:
			return FilterCondition{Field: field, Op: op, Value: value.String()}, s[i+1:], nil
		default:
			value.WriteByte(c)
		}
	}
	return FilterCondition{}, "", fmt.Errorf("unterminated value for %q", field)
}

func isFieldChar(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}

// ParseSort разбирает выражение сортировки вида "-bill_no,created".
func ParseSort(expr string) ([]SortField, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return nil, nil
	}

	parts := strings.Split(expr, ",")
	fields := make([]SortField, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		desc := false
		switch {
		case strings.HasPrefix(part, "-"):
			desc = true
			part = part[1:]
		case strings.HasPrefix(part, "+"):
			part = part[1:]
		}
		if !fieldNamePattern.MatchString(part) {
			return nil, fmt.Errorf("%w: %q", ErrInvalidSort, expr)
		}
		fields = append(fields, SortField{Field: part, Desc: desc})
	}
	return fields, nil
}
