package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"

	"github.com/siherrmann/docgrapher/helper"
)

// Metadata holds the free-form attributes of documents, nodes, edges and
// vector entries. It is stored as JSONB in PostgreSQL and as JSON in Badger.
type Metadata map[string]any

// Value writes nil metadata as an empty object so JSONB columns never hold null.
func (m Metadata) Value() (driver.Value, error) {
	if m == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(m)
}

// Scan accepts the []byte and string forms drivers return for JSONB.
func (m *Metadata) Scan(value any) error {
	var raw []byte
	switch v := value.(type) {
	case nil:
		*m = Metadata{}
		return nil
	case Metadata:
		*m = v.Copy()
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return helper.NewError("scan metadata", fmt.Errorf("unsupported type %T", value))
	}

	decoded := Metadata{}
	err := json.Unmarshal(raw, &decoded)
	if err != nil {
		return helper.NewError("scan metadata", err)
	}
	*m = decoded
	return nil
}

// Copy returns a shallow copy of the metadata, never nil.
func (m Metadata) Copy() Metadata {
	c := make(Metadata, len(m))
	for k, v := range m {
		c[k] = v
	}
	return c
}

// Merge returns a copy of m with all keys of other set on top.
func (m Metadata) Merge(other Metadata) Metadata {
	c := m.Copy()
	for k, v := range other {
		c[k] = v
	}
	return c
}

// GetString returns the value for key if it is a string.
func (m Metadata) GetString(key string) (string, bool) {
	s, ok := m[key].(string)
	return s, ok
}
