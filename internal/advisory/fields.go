package advisory

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// FieldType is the kind of a dynamic requirement field.
type FieldType string

const (
	FieldText    FieldType = "text"
	FieldNumber  FieldType = "number"
	FieldBoolean FieldType = "boolean"
)

// RequirementField is a scheme-specific question described by the service.
type RequirementField struct {
	ID          string    `json:"id"`
	Label       string    `json:"label"`
	Type        FieldType `json:"type"`
	Description string    `json:"description"`
}

// NormalizeFields trims ids, drops blank and repeated ids and maps unknown
// types onto text so every field can be rendered and validated.
func NormalizeFields(in []RequirementField) []RequirementField {
	out := make([]RequirementField, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, f := range in {
		f.ID = strings.TrimSpace(f.ID)
		if f.ID == "" {
			continue
		}
		if _, dup := seen[f.ID]; dup {
			continue
		}
		seen[f.ID] = struct{}{}
		switch FieldType(strings.ToLower(string(f.Type))) {
		case FieldNumber:
			f.Type = FieldNumber
		case FieldBoolean:
			f.Type = FieldBoolean
		default:
			f.Type = FieldText
		}
		out = append(out, f)
	}
	return out
}

// Value is one answer to a dynamic field. Exactly one of Text, Number or Bool
// is meaningful, selected by Type.
type Value struct {
	Type   FieldType
	Text   string
	Number float64
	Bool   bool
}

func TextValue(s string) Value { return Value{Type: FieldText, Text: s} }
func NumberValue(n float64) Value { return Value{Type: FieldNumber, Number: n} }
func BoolValue(b bool) Value { return Value{Type: FieldBoolean, Bool: b} }

// String renders the value for prompts and logs.
func (v Value) String() string {
	switch v.Type {
	case FieldNumber:
		return strconv.FormatFloat(v.Number, 'f', -1, 64)
	case FieldBoolean:
		if v.Bool {
			return "Yes"
		}
		return "No"
	}
	return v.Text
}

func (v Value) MarshalJSON() ([]byte, error) {
	switch v.Type {
	case FieldNumber:
		return json.Marshal(v.Number)
	case FieldBoolean:
		return json.Marshal(v.Bool)
	}
	return json.Marshal(v.Text)
}

func (v *Value) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	switch x := raw.(type) {
	case bool:
		*v = BoolValue(x)
	case float64:
		*v = NumberValue(x)
	case string:
		*v = TextValue(x)
	case nil:
		*v = Value{Type: FieldText}
	default:
		return fmt.Errorf("%w: unsupported JSON %s", ErrInvalidField, string(data))
	}
	return nil
}

// Coerce converts a raw form value into the type f declares. Numbers accept
// numeric strings; booleans accept true/false and yes/no.
func Coerce(f RequirementField, raw any) (Value, error) {
	switch f.Type {
	case FieldNumber:
		switch x := raw.(type) {
		case float64:
			return NumberValue(x), nil
		case int:
			return NumberValue(float64(x)), nil
		case int64:
			return NumberValue(float64(x)), nil
		case json.Number:
			n, err := x.Float64()
			if err != nil {
				return Value{}, fmt.Errorf("%w: %s: %v", ErrInvalidField, f.ID, err)
			}
			return NumberValue(n), nil
		case string:
			n, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
			if err != nil {
				return Value{}, fmt.Errorf("%w: %s expects a number", ErrInvalidField, f.ID)
			}
			return NumberValue(n), nil
		}
	case FieldBoolean:
		switch x := raw.(type) {
		case bool:
			return BoolValue(x), nil
		case string:
			switch strings.ToLower(strings.TrimSpace(x)) {
			case "true", "yes", "y", "1":
				return BoolValue(true), nil
			case "false", "no", "n", "0":
				return BoolValue(false), nil
			}
			return Value{}, fmt.Errorf("%w: %s expects yes or no", ErrInvalidField, f.ID)
		}
	default:
		switch x := raw.(type) {
		case string:
			return TextValue(x), nil
		case float64:
			return TextValue(strconv.FormatFloat(x, 'f', -1, 64)), nil
		case bool:
			return TextValue(strconv.FormatBool(x)), nil
		}
	}
	return Value{}, fmt.Errorf("%w: %s has unsupported value %T", ErrInvalidField, f.ID, raw)
}
