package domain

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
)

// Vector is an embedding stored as a JSON array. A nil Vector maps to SQL NULL.
type Vector []float32

// Value implements the driver.Valuer interface for database serialization.
func (v Vector) Value() (driver.Value, error) {
	if v == nil {
		return nil, nil
	}
	b, err := json.Marshal([]float32(v))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements the sql.Scanner interface for database deserialization.
func (v *Vector) Scan(value interface{}) error {
	if value == nil {
		*v = nil
		return nil
	}
	bytes, err := scanBytes(value)
	if err != nil {
		return errors.New("failed to scan Vector")
	}
	if len(bytes) == 0 {
		*v = nil
		return nil
	}
	return json.Unmarshal(bytes, (*[]float32)(v))
}

func scanBytes(value interface{}) ([]byte, error) {
	switch val := value.(type) {
	case []byte:
		return val, nil
	case string:
		return []byte(val), nil
	default:
		return nil, errors.New("unexpected column type")
	}
}

// jsonValue and jsonScan back the typed JSON columns of the analysis record.
func jsonValue(v interface{}) (driver.Value, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func jsonScan(value interface{}, dst interface{}) error {
	if value == nil {
		return nil
	}
	bytes, err := scanBytes(value)
	if err != nil {
		return err
	}
	if len(bytes) == 0 {
		return nil
	}
	return json.Unmarshal(bytes, dst)
}
