package ir

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
	"strconv"
	"unicode/utf16"

	"github.com/cockroachdb/apd/v3"
)

// IRValue is a sealed interface representing the values an entity field may hold.
// Only IRNull, IRString, IRNumber, IRBool, IRArray, and IRObject implement this.
// There is no float type: numbers are exact decimals so money never drifts.
type IRValue interface {
	irValue() // Sealed - only these types implement it
}

// IRNull represents an absent or JSON null field value.
type IRNull struct{}

func (IRNull) irValue() {}

// MarshalJSON implements json.Marshaler for IRNull.
func (IRNull) MarshalJSON() ([]byte, error) {
	return []byte("null"), nil
}

// IRString represents a text value.
type IRString string

func (IRString) irValue() {}

// IRNumber represents an exact decimal number.
// The zero value is the number 0.
type IRNumber struct {
	d apd.Decimal
}

func (IRNumber) irValue() {}

// IRBool represents a boolean value.
type IRBool bool

func (IRBool) irValue() {}

// IRArray represents an ordered list of values (e.g. a multi-select field).
type IRArray []IRValue

func (IRArray) irValue() {}

// IRObject represents a map of field names to values.
// Use SortedKeys() for deterministic iteration.
type IRObject map[string]IRValue

func (IRObject) irValue() {}

// NewIRString creates an IRString value.
func NewIRString(s string) IRString {
	return IRString(s)
}

// NewIRInt creates an IRNumber holding an integer.
func NewIRInt(n int64) IRNumber {
	var v IRNumber
	v.d.SetInt64(n)
	return v
}

// NewIRNumber creates an IRNumber from a copy of d.
func NewIRNumber(d *apd.Decimal) IRNumber {
	var v IRNumber
	v.d.Set(d)
	return v
}

// Bounds on parsed numbers. Numbers are written in plain notation, so an
// unbounded exponent would turn "1e99999" into 100 KB of digits.
const (
	MaxNumberDigits   = 64
	MaxNumberExponent = 50 // magnitude of the adjusted exponent
)

// ParseIRNumber parses decimal text ("10000", "-3.25", "1e3") into an IRNumber.
// NaN, infinities and numbers outside the digit and exponent bounds are
// rejected.
func ParseIRNumber(s string) (IRNumber, error) {
	d, _, err := apd.NewFromString(s)
	if err != nil {
		return IRNumber{}, fmt.Errorf("invalid number %q: %w", truncate(s), err)
	}
	if d.Form != apd.Finite {
		return IRNumber{}, fmt.Errorf("invalid number %q: not finite", truncate(s))
	}
	if d.IsZero() {
		if d.Exponent < -MaxNumberExponent || d.Exponent > MaxNumberExponent {
			return NewIRInt(0), nil
		}
		return NewIRNumber(d), nil
	}
	digits := d.NumDigits()
	if digits > MaxNumberDigits {
		return IRNumber{}, fmt.Errorf("invalid number %q: more than %d digits", truncate(s), MaxNumberDigits)
	}
	if adj := int64(d.Exponent) + digits - 1; adj > MaxNumberExponent || adj < -MaxNumberExponent {
		return IRNumber{}, fmt.Errorf("invalid number %q: exponent out of range", truncate(s))
	}
	return NewIRNumber(d), nil
}

func truncate(s string) string {
	if len(s) > 32 {
		return s[:32] + "..."
	}
	return s
}

// MustNumber is like ParseIRNumber but panics on error.
// Use only in tests or with literal inputs.
func MustNumber(s string) IRNumber {
	n, err := ParseIRNumber(s)
	if err != nil {
		panic(err)
	}
	return n
}

// NewIRBool creates an IRBool value.
func NewIRBool(b bool) IRBool {
	return IRBool(b)
}

// NewIRArray creates an IRArray from values.
func NewIRArray(vals ...IRValue) IRArray {
	return IRArray(vals)
}

// Decimal returns a copy of the underlying decimal.
func (n IRNumber) Decimal() *apd.Decimal {
	var out apd.Decimal
	out.Set(&n.d)
	return &out
}

// Cmp compares two numbers numerically: -1, 0 or +1.
func (n IRNumber) Cmp(other IRNumber) int {
	return n.d.Cmp(&other.d)
}

// String returns the plain (non-exponent) decimal text, keeping the scale
// the number was created with ("2500.00" stays "2500.00").
func (n IRNumber) String() string {
	return n.d.Text('f')
}

// canonicalText returns the reduced decimal text: numerically equal values
// ("10000", "10000.00", "1E4") produce identical text.
func (n IRNumber) canonicalText() string {
	var r apd.Decimal
	r.Reduce(&n.d)
	if r.IsZero() {
		return "0"
	}
	return r.Text('f')
}

// MarshalJSON implements json.Marshaler for IRNumber as a bare JSON number.
func (n IRNumber) MarshalJSON() ([]byte, error) {
	return []byte(n.String()), nil
}

// IRPair represents a key-value pair for typed IRObject construction.
type IRPair struct {
	Key   string
	Value IRValue
}

// NewIRObjectFromPairs creates an IRObject from typed key-value pairs.
// Example: NewIRObjectFromPairs(O("status", NewIRString("GANHO")), O("valorVenda", NewIRInt(10000)))
func NewIRObjectFromPairs(pairs ...IRPair) IRObject {
	obj := make(IRObject, len(pairs))
	for _, p := range pairs {
		obj[p.Key] = p.Value
	}
	return obj
}

// O is a shorthand for IRPair for ergonomic construction.
func O(key string, value IRValue) IRPair {
	return IRPair{Key: key, Value: value}
}

// Field returns the value for key, treating a missing key as IRNull.
func (obj IRObject) Field(key string) IRValue {
	if v, ok := obj[key]; ok && v != nil {
		return v
	}
	return IRNull{}
}

// Clone returns a deep copy of the object.
func (obj IRObject) Clone() IRObject {
	if obj == nil {
		return nil
	}
	out := make(IRObject, len(obj))
	for k, v := range obj {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v IRValue) IRValue {
	switch val := v.(type) {
	case IRArray:
		arr := make(IRArray, len(val))
		for i, elem := range val {
			arr[i] = cloneValue(elem)
		}
		return arr
	case IRObject:
		return val.Clone()
	case IRNumber:
		return NewIRNumber(&val.d)
	default:
		return v
	}
}

// SortedKeys returns keys in RFC 8785 canonical order (UTF-16 code units).
// Go's sort.Strings compares UTF-8 bytes, which orders some keys differently.
func (obj IRObject) SortedKeys() []string {
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, compareKeysRFC8785)
	return keys
}

// compareKeysRFC8785 compares strings by UTF-16 code units.
func compareKeysRFC8785(a, b string) int {
	return slices.Compare(utf16.Encode([]rune(a)), utf16.Encode([]rune(b)))
}

// UnmarshalJSON implements json.Unmarshaler for IRObject.
func (obj *IRObject) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*obj = make(IRObject, len(raw))
	for k, v := range raw {
		val, err := UnmarshalIRValue(v)
		if err != nil {
			return fmt.Errorf("IRObject key %q: %w", k, err)
		}
		(*obj)[k] = val
	}
	return nil
}

// UnmarshalJSON implements json.Unmarshaler for IRArray.
func (arr *IRArray) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*arr = make(IRArray, len(raw))
	for i, v := range raw {
		val, err := UnmarshalIRValue(v)
		if err != nil {
			return fmt.Errorf("IRArray index %d: %w", i, err)
		}
		(*arr)[i] = val
	}
	return nil
}

// UnmarshalJSON implements json.Unmarshaler for IRNumber.
func (n *IRNumber) UnmarshalJSON(data []byte) error {
	parsed, err := ParseIRNumber(string(bytes.TrimSpace(data)))
	if err != nil {
		return err
	}
	*n = parsed
	return nil
}

// UnmarshalIRValue decodes a single JSON value into the matching IRValue.
// JSON numbers keep their exact decimal text.
func UnmarshalIRValue(data []byte) (IRValue, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, fmt.Errorf("empty JSON value")
	}

	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return nil, err
		}
		return IRString(s), nil

	case 't', 'f':
		var b bool
		if err := json.Unmarshal(data, &b); err != nil {
			return nil, err
		}
		return IRBool(b), nil

	case 'n':
		return IRNull{}, nil

	case '[':
		var arr IRArray
		if err := json.Unmarshal(data, &arr); err != nil {
			return nil, err
		}
		return arr, nil

	case '{':
		var obj IRObject
		if err := json.Unmarshal(data, &obj); err != nil {
			return nil, err
		}
		return obj, nil

	default:
		var num json.Number
		if err := json.Unmarshal(data, &num); err != nil {
			return nil, err
		}
		return ParseIRNumber(num.String())
	}
}

// MarshalJSON implements json.Marshaler for IRObject with sorted keys.
// This is NOT canonical marshaling; use MarshalCanonical for hashing.
func (obj IRObject) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')

	for i, k := range obj.SortedKeys() {
		if i > 0 {
			buf.WriteByte(',')
		}
		keyBytes, err := json.Marshal(k)
		if err != nil {
			return nil, fmt.Errorf("marshal key %q: %w", k, err)
		}
		buf.Write(keyBytes)
		buf.WriteByte(':')

		valBytes, err := MarshalIRValue(obj[k])
		if err != nil {
			return nil, fmt.Errorf("marshal value for key %q: %w", k, err)
		}
		buf.Write(valBytes)
	}

	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// MarshalJSON implements json.Marshaler for IRArray.
func (arr IRArray) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('[')
	for i, elem := range arr {
		if i > 0 {
			buf.WriteByte(',')
		}
		elemBytes, err := MarshalIRValue(elem)
		if err != nil {
			return nil, fmt.Errorf("array[%d]: %w", i, err)
		}
		buf.Write(elemBytes)
	}
	buf.WriteByte(']')
	return buf.Bytes(), nil
}

// MarshalIRValue marshals an IRValue to JSON bytes.
// A nil IRValue is written as null.
func MarshalIRValue(v IRValue) ([]byte, error) {
	switch val := v.(type) {
	case nil, IRNull:
		return []byte("null"), nil
	case IRString:
		return json.Marshal(string(val))
	case IRNumber:
		return val.MarshalJSON()
	case IRBool:
		return json.Marshal(bool(val))
	case IRArray:
		return val.MarshalJSON()
	case IRObject:
		return val.MarshalJSON()
	default:
		return nil, fmt.Errorf("unknown IRValue type: %T", v)
	}
}

// FromNative converts decoded YAML/JSON data (as produced by yaml.v3 or
// encoding/json into `any`) into an IRValue.
// Floats are converted through their shortest decimal representation.
func FromNative(v any) (IRValue, error) {
	switch val := v.(type) {
	case nil:
		return IRNull{}, nil
	case IRValue:
		return val, nil
	case string:
		return IRString(val), nil
	case bool:
		return IRBool(val), nil
	case int:
		return NewIRInt(int64(val)), nil
	case int64:
		return NewIRInt(val), nil
	case uint64:
		return ParseIRNumber(strconv.FormatUint(val, 10))
	case float64:
		return ParseIRNumber(strconv.FormatFloat(val, 'f', -1, 64))
	case json.Number:
		return ParseIRNumber(val.String())
	case []any:
		arr := make(IRArray, len(val))
		for i, elem := range val {
			irElem, err := FromNative(elem)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			arr[i] = irElem
		}
		return arr, nil
	case map[string]any:
		obj := make(IRObject, len(val))
		for k, elem := range val {
			irElem, err := FromNative(elem)
			if err != nil {
				return nil, fmt.Errorf("[%q]: %w", k, err)
			}
			obj[k] = irElem
		}
		return obj, nil
	default:
		return nil, fmt.Errorf("unsupported type: %T", v)
	}
}

// ObjectFromNative converts a decoded map into an IRObject.
func ObjectFromNative(m map[string]any) (IRObject, error) {
	v, err := FromNative(m)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return IRObject{}, nil
	}
	return v.(IRObject), nil
}

// ToNative converts an IRValue into plain Go data. Numbers become
// json.Number so decoders (mapstructure, encoding/json) keep them exact.
func ToNative(v IRValue) any {
	switch val := v.(type) {
	case nil, IRNull:
		return nil
	case IRString:
		return string(val)
	case IRNumber:
		return json.Number(val.String())
	case IRBool:
		return bool(val)
	case IRArray:
		out := make([]any, len(val))
		for i, elem := range val {
			out[i] = ToNative(elem)
		}
		return out
	case IRObject:
		out := make(map[string]any, len(val))
		for k, elem := range val {
			out[k] = ToNative(elem)
		}
		return out
	default:
		return nil
	}
}
