package message

import (
	"fmt"
	"strconv"
	"strings"
)

// Construct builds the wire bytes "recipient:type_name[:p_i]*" for an
// outgoing message, validating arity and encoding against the outgoing
// schema. The last parameter absorbs any remaining colons verbatim. Integer
// encodings never produce a colon; string values are emitted unchanged, and
// Construct does not check them, so a colon inside a string parameter other
// than the last does not parse back into the same fields.
func Construct(schema Schema, recipient, typeName string, values ...Value) ([]byte, error) {
	fields, ok := schema[typeName]
	if !ok {
		return nil, fmt.Errorf("message: construct: unknown type %q: %w", typeName, ErrUnknownType)
	}
	if len(fields) != len(values) {
		return nil, fmt.Errorf("message: construct: %q wants %d params, got %d: %w",
			typeName, len(fields), len(values), ErrArity)
	}

	parts := make([]string, 0, 2+len(values))
	parts = append(parts, recipient, typeName)
	for i, f := range fields {
		s, err := encodeField(f, values[i])
		if err != nil {
			return nil, fmt.Errorf("message: construct: %q field %d: %w", typeName, i, err)
		}
		parts = append(parts, s)
	}
	return []byte(strings.Join(parts, ":")), nil
}

func encodeField(f FieldSpec, v Value) (string, error) {
	switch f.Kind {
	case TypeInt:
		switch f.Encoding {
		case Base10:
			return strconv.FormatInt(v.Int, 10), nil
		case Base16:
			return strconv.FormatInt(v.Int, 16), nil
		default:
			return "", fmt.Errorf("%w: unsupported integer encoding", ErrEncode)
		}
	case TypeString:
		return v.Str, nil
	default:
		return "", fmt.Errorf("%w: unknown semantic type", ErrEncode)
	}
}

// SplitRecipient splits raw into its recipient field and the remaining
// "type_name[:params...]" bytes without validating or decoding them against
// any schema. The router uses this for messages addressed to a peer other
// than "0": it never needs to understand a relayed payload's parameters, only
// its addressing, so that payload travels through byte-identical (spec.md
// §4.5 "no plaintext routing").
func SplitRecipient(raw []byte) (recipient, rest string, ok bool) {
	s := string(raw)
	return strings.Cut(s, ":")
}

// Parse splits a decrypted payload into an Envelope, validating type_name
// against the incoming schema and decoding each parameter per its FieldSpec.
func Parse(schema Schema, raw []byte) (Envelope, error) {
	s := string(raw)
	recipient, rest, ok := strings.Cut(s, ":")
	if !ok {
		return Envelope{}, fmt.Errorf("message: parse: missing recipient separator: %w", ErrUnknownType)
	}
	typeName, paramStr, hasParams := strings.Cut(rest, ":")
	if !hasParams {
		typeName = rest
		paramStr = ""
	}

	fields, ok := schema[typeName]
	if !ok {
		return Envelope{}, fmt.Errorf("message: parse: unknown type %q: %w", typeName, ErrUnknownType)
	}
	if len(fields) > 0 && !hasParams {
		return Envelope{}, fmt.Errorf("message: parse: %q wants %d params, got 0: %w",
			typeName, len(fields), ErrArity)
	}

	var rawParams []string
	if len(fields) > 0 {
		rawParams = splitFields(paramStr, len(fields))
	} else if paramStr != "" {
		return Envelope{}, fmt.Errorf("message: parse: %q takes no params: %w", typeName, ErrArity)
	}
	if len(rawParams) != len(fields) {
		return Envelope{}, fmt.Errorf("message: parse: %q wants %d params, got %d: %w",
			typeName, len(fields), len(rawParams), ErrArity)
	}

	values := make([]Value, len(fields))
	for i, f := range fields {
		v, err := decodeField(f, rawParams[i])
		if err != nil {
			return Envelope{}, fmt.Errorf("message: parse: %q field %d: %w", typeName, i, err)
		}
		values[i] = v
	}
	return Envelope{Recipient: recipient, Type: typeName, Params: values}, nil
}

// splitFields splits s on ":" into at most n pieces, the last absorbing any
// remaining colons verbatim; callers check the piece count against n.
func splitFields(s string, n int) []string {
	if n == 0 {
		if s == "" {
			return nil
		}
		return []string{s}
	}
	return strings.SplitN(s, ":", n)
}

func decodeField(f FieldSpec, s string) (Value, error) {
	switch f.Kind {
	case TypeInt:
		base := 10
		t := s
		switch f.Encoding {
		case Base10:
			base = 10
		case Base16:
			base = 16
			t = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
		default:
			return Value{}, fmt.Errorf("%w: unsupported integer encoding", ErrDecode)
		}
		n, err := strconv.ParseInt(t, base, 64)
		if err != nil {
			return Value{}, fmt.Errorf("%w: %v", ErrDecode, err)
		}
		return IntValue(n), nil
	case TypeString:
		return StrValue(s), nil
	default:
		return Value{}, fmt.Errorf("%w: unknown semantic type", ErrDecode)
	}
}
