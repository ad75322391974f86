package sqlbase

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
)

// JSON adapts a Go value to a JSON/JSONB column.
type JSON[T any] struct {
	V T
}

// Value implements driver.Valuer.
func (j JSON[T]) Value() (driver.Value, error) {
	data, err := json.Marshal(j.V)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal json column: %w", err)
	}

	return data, nil
}

// Scan implements sql.Scanner. NULL leaves the zero value.
func (j *JSON[T]) Scan(src any) error {
	var data []byte

	switch v := src.(type) {
	case nil:
		var zero T
		j.V = zero

		return nil
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return errors.New("unsupported json column type")
	}

	err := json.Unmarshal(data, &j.V)
	if err != nil {
		return fmt.Errorf("failed to unmarshal json column: %w", err)
	}

	return nil
}

// NullString maps an optional identifier to a nullable column.
func NullString(s *string) any {
	if s == nil {
		return nil
	}

	return *s
}
