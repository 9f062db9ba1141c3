// Package message implements the VCSMS typed-message schema: a bidirectional
// codec between (recipient, type_name, params...) envelopes and the raw
// colon-separated bytes that travel under encryption, plus a dispatch table
// from type_name to handler.
package message

import qerrors "github.com/vcsms/vcsms/internal/errors"

// SemanticType is the declared kind of a schema parameter.
type SemanticType int

const (
	// TypeInt is a parameter transmitted as ASCII digits in some Encoding base.
	TypeInt SemanticType = iota
	// TypeString is a parameter transmitted as text bytes.
	TypeString
)

// Encoding qualifies how a parameter's ASCII form is produced/parsed.
type Encoding int

const (
	// Base10 encodes TypeInt parameters as decimal ASCII.
	Base10 Encoding = iota
	// Base16 encodes TypeInt parameters as hex ASCII (no "0x" prefix).
	Base16
	// UTF8 encodes TypeString parameters as UTF-8 text.
	UTF8
)

// FieldSpec declares one positional parameter of a message type.
type FieldSpec struct {
	Kind     SemanticType
	Encoding Encoding
}

// Int declares a base-10 integer field.
func Int() FieldSpec { return FieldSpec{Kind: TypeInt, Encoding: Base10} }

// HexInt declares a base-16 integer field.
func HexInt() FieldSpec { return FieldSpec{Kind: TypeInt, Encoding: Base16} }

// Str declares a UTF-8 string field.
func Str() FieldSpec { return FieldSpec{Kind: TypeString, Encoding: UTF8} }

// Schema maps a type_name to its ordered parameter specification.
type Schema map[string][]FieldSpec

// Value is a decoded parameter: either an int64 (TypeInt) or a string
// (TypeString), tagged by its FieldSpec's Kind.
type Value struct {
	Int int64
	Str string
}

// IntValue constructs an integer Value.
func IntValue(v int64) Value { return Value{Int: v} }

// StrValue constructs a string Value.
func StrValue(v string) Value { return Value{Str: v} }

// Envelope is a fully decoded message: recipient, type name, and ordered
// parameter values (spec.md §3).
type Envelope struct {
	Recipient string
	Type      string
	Params    []Value
}

// ErrArity is returned when the supplied value count does not match the
// schema's declared arity for a type.
var ErrArity = qerrors.ErrMessageArity

// ErrUnknownType is returned when parsing encounters a type_name absent
// from the schema and no "default"/"UnknownMessageType" handler applies
// at the parser level (parsing itself always fails closed; dispatch is
// what falls back).
var ErrUnknownType = qerrors.ErrUnknownMessageType

// ErrEncode/ErrDecode flag a field that failed to encode or decode under
// its declared Encoding. Distinct values so callers can tell a structural
// mismatch (ErrArity, ErrUnknownType) from a field-level one.
var (
	ErrEncode = qerrors.ErrMessageEncode
	ErrDecode = qerrors.ErrMessageDecode
)
