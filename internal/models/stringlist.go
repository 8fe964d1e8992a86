package models

import (
	"database/sql/driver"
	"fmt"
	"strings"
)

// StringSet is an ordered list of strings stored as a comma-joined TEXT
// column. Order is preserved (it matters for display, not identity).
type StringSet []string

// Value implements driver.Valuer.
func (s StringSet) Value() (driver.Value, error) {
	return strings.Join(s, ","), nil
}

// Scan implements sql.Scanner.
func (s *StringSet) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		*s = nil
		return nil
	case string:
		*s = split(v)
		return nil
	case []byte:
		*s = split(string(v))
		return nil
	default:
		return fmt.Errorf("cannot scan %T into StringSet", src)
	}
}

func split(v string) []string {
	if v == "" {
		return nil
	}
	return strings.Split(v, ",")
}
