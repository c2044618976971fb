package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"sort"
)

// Translations holds a localized text keyed by locale
type Translations map[string]string

// Value implements driver.Valuer
func (t Translations) Value() (driver.Value, error) {
	if t == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(t)
}

// Scan implements sql.Scanner
func (t *Translations) Scan(src any) error {
	return scanJSON(src, t)
}

// Default returns the text for the given locale, falling back to the first
// non-empty locale in alphabetical order
func (t Translations) Default(locale string) string {
	if v := t[locale]; v != "" {
		return v
	}
	keys := make([]string, 0, len(t))
	for k := range t {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if t[k] != "" {
			return t[k]
		}
	}
	return ""
}

// Blank reports whether every locale is empty
func (t Translations) Blank() bool {
	for _, v := range t {
		if v != "" {
			return false
		}
	}
	return true
}

// Equal compares two translation sets ignoring empty locales
func (t Translations) Equal(other Translations) bool {
	for k, v := range t {
		if other[k] != v {
			return false
		}
	}
	for k, v := range other {
		if t[k] != v {
			return false
		}
	}
	return true
}

// JSONMap is a free-form jsonb column
type JSONMap map[string]any

// Value implements driver.Valuer
func (m JSONMap) Value() (driver.Value, error) {
	if m == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(m)
}

// Scan implements sql.Scanner
func (m *JSONMap) Scan(src any) error {
	return scanJSON(src, m)
}

// Change holds the before and after value of one attribute
type Change [2]any

// Changeset maps attribute names to their change
type Changeset map[string]Change

// Value implements driver.Valuer
func (c Changeset) Value() (driver.Value, error) {
	if c == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(c)
}

// Scan implements sql.Scanner
func (c *Changeset) Scan(src any) error {
	return scanJSON(src, c)
}

// Add records a change when before and after differ
func (c Changeset) Add(attr string, before, after any) {
	b, _ := json.Marshal(before)
	a, _ := json.Marshal(after)
	if string(a) == string(b) {
		return
	}
	c[attr] = Change{before, after}
}

func scanJSON(src any, dst any) error {
	var data []byte
	switch v := src.(type) {
	case nil:
		return nil
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported json source type %T", src)
	}
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, dst)
}
