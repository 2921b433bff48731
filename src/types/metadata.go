package types

import (
	"bytes"
	"encoding/json"
	"fmt"
)

type metaKind uint8

const (
	metaInvalid metaKind = iota
	metaString
	metaNumber
	metaBool
	metaMap
)

// MetaValue is one of string, number, boolean or nested Metadata.
type MetaValue struct {
	kind metaKind
	str  string
	num  float64
	b    bool
	m    Metadata
}

// Metadata is the free-form but typed map attached to every envelope.
type Metadata map[string]MetaValue

func MetaString(s string) MetaValue  { return MetaValue{kind: metaString, str: s} }
func MetaNumber(n float64) MetaValue { return MetaValue{kind: metaNumber, num: n} }
func MetaInt(n int) MetaValue        { return MetaValue{kind: metaNumber, num: float64(n)} }
func MetaBool(b bool) MetaValue      { return MetaValue{kind: metaBool, b: b} }
func MetaMap(m Metadata) MetaValue {
	if m == nil {
		m = Metadata{}
	}
	return MetaValue{kind: metaMap, m: m}
}

func (v MetaValue) AsString() (string, bool) { return v.str, v.kind == metaString }

func (v MetaValue) AsNumber() (float64, bool) { return v.num, v.kind == metaNumber }

func (v MetaValue) AsBool() (bool, bool) { return v.b, v.kind == metaBool }

func (v MetaValue) AsMap() (Metadata, bool) { return v.m, v.kind == metaMap }

func (v MetaValue) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case metaString:
		return json.Marshal(v.str)
	case metaNumber:
		return json.Marshal(v.num)
	case metaBool:
		return json.Marshal(v.b)
	case metaMap:
		return json.Marshal(v.m)
	default:
		return nil, fmt.Errorf("types: empty metadata value")
	}
}

func (v *MetaValue) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 {
		return fmt.Errorf("types: empty metadata value")
	}
	switch b[0] {
	case '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*v = MetaString(s)
	case 't', 'f':
		var x bool
		if err := json.Unmarshal(b, &x); err != nil {
			return err
		}
		*v = MetaBool(x)
	case '{':
		var m Metadata
		if err := json.Unmarshal(b, &m); err != nil {
			return err
		}
		*v = MetaMap(m)
	case 'n', '[':
		return fmt.Errorf("types: unsupported metadata value %s", truncateJSON(b))
	default:
		var n float64
		if err := json.Unmarshal(b, &n); err != nil {
			return err
		}
		*v = MetaNumber(n)
	}
	return nil
}

func truncateJSON(b []byte) string {
	if len(b) > 32 {
		return string(b[:32]) + "..."
	}
	return string(b)
}
