package validator

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"unicode/utf8"
)

var (
	emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)
)

// FieldError reports the first rule a field broke
type FieldError struct {
	Field   string
	Message string
}

func (e *FieldError) Error() string {
	return e.Field + " " + e.Message
}

// ValidateStruct validates a struct based on validate tags.
//
// Supported rules: required, email, min=N, max=N (characters for strings,
// per locale for string maps, items for slices) and oneof=a b c.
// Field names in errors come from the json tag when present.
func ValidateStruct(s any) error {
	v := reflect.ValueOf(s)
	if v.Kind() == reflect.Ptr {
		v = v.Elem()
	}

	if v.Kind() != reflect.Struct {
		return errors.New("not a struct")
	}

	t := v.Type()
	for i := 0; i < v.NumField(); i++ {
		field := t.Field(i)
		value := v.Field(i)
		tag := field.Tag.Get("validate")

		if tag == "" {
			continue
		}

		name := fieldName(field)
		rules := strings.Split(tag, ",")
		for _, rule := range rules {
			if err := validateField(name, value, rule); err != nil {
				return err
			}
		}
	}

	return nil
}

func fieldName(field reflect.StructField) string {
	if tag := field.Tag.Get("json"); tag != "" {
		name, _, _ := strings.Cut(tag, ",")
		if name != "" && name != "-" {
			return name
		}
	}
	return field.Name
}

// validateField validates a single field based on a rule
func validateField(name string, value reflect.Value, rule string) error {
	switch {
	case rule == "required":
		if isZero(value) {
			return &FieldError{Field: name, Message: "is required"}
		}
	case rule == "email":
		if value.Kind() == reflect.String && value.String() != "" {
			if err := ValidateEmail(value.String()); err != nil {
				return &FieldError{Field: name, Message: "must be a valid email"}
			}
		}
	case strings.HasPrefix(rule, "min="):
		limit, err := strconv.Atoi(strings.TrimPrefix(rule, "min="))
		if err != nil {
			return fmt.Errorf("invalid rule %q on %s", rule, name)
		}
		if n, ok := length(value); ok && n > 0 && n < limit {
			return &FieldError{Field: name, Message: fmt.Sprintf("must be at least %d characters", limit)}
		}
	case strings.HasPrefix(rule, "max="):
		limit, err := strconv.Atoi(strings.TrimPrefix(rule, "max="))
		if err != nil {
			return fmt.Errorf("invalid rule %q on %s", rule, name)
		}
		if limit > 0 {
			if n, ok := length(value); ok && n > limit {
				return &FieldError{Field: name, Message: fmt.Sprintf("must be at most %d characters", limit)}
			}
		}
	case strings.HasPrefix(rule, "oneof="):
		options := strings.Fields(strings.TrimPrefix(rule, "oneof="))
		if value.Kind() == reflect.String && value.String() != "" && !slices.Contains(options, value.String()) {
			return &FieldError{Field: name, Message: "must be one of " + strings.Join(options, ", ")}
		}
	}
	return nil
}

// length returns the character count of a string, the longest value of a
// string map or the item count of a slice
func length(v reflect.Value) (int, bool) {
	switch v.Kind() {
	case reflect.String:
		return utf8.RuneCountInString(v.String()), true
	case reflect.Map:
		if v.Type().Elem().Kind() != reflect.String {
			return 0, false
		}
		longest := 0
		iter := v.MapRange()
		for iter.Next() {
			longest = max(longest, utf8.RuneCountInString(iter.Value().String()))
		}
		return longest, true
	case reflect.Slice:
		return v.Len(), true
	}
	return 0, false
}

// isZero checks if a value is zero/empty. String maps are empty when every
// value is blank.
func isZero(v reflect.Value) bool {
	switch v.Kind() {
	case reflect.String:
		return strings.TrimSpace(v.String()) == ""
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return v.Int() == 0
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return v.Uint() == 0
	case reflect.Float32, reflect.Float64:
		return v.Float() == 0
	case reflect.Bool:
		return !v.Bool()
	case reflect.Ptr, reflect.Interface:
		return v.IsNil()
	case reflect.Slice:
		return v.Len() == 0
	case reflect.Map:
		if v.Type().Elem().Kind() != reflect.String {
			return v.Len() == 0
		}
		iter := v.MapRange()
		for iter.Next() {
			if strings.TrimSpace(iter.Value().String()) != "" {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// ValidateEmail validates an email address
func ValidateEmail(email string) error {
	if email == "" {
		return errors.New("email is required")
	}
	if !emailRegex.MatchString(email) {
		return errors.New("invalid email format")
	}
	return nil
}

// ValidateRequired validates that a field is not empty
func ValidateRequired(field, value string) error {
	if strings.TrimSpace(value) == "" {
		return &FieldError{Field: field, Message: "is required"}
	}
	return nil
}

// SanitizeString sanitizes a string by removing potentially dangerous characters
func SanitizeString(s string) string {
	// Remove null bytes
	s = strings.ReplaceAll(s, "\x00", "")
	// Trim whitespace
	s = strings.TrimSpace(s)
	return s
}
