package router

import "github.com/vcsms/vcsms/pkg/message"

// IncomingSchema is the set of message types a client may address to the
// server itself (recipient == "0"). Messages addressed elsewhere are
// relayed without schema validation (spec.md §4.5).
var IncomingSchema = message.Schema{
	"GetKey": {message.Int(), message.Str()},
	"Quit":   {},
}

// ReplySchema is the set of message types the server may construct back
// into a client's own outbox: successful GetKey results and the in-band
// error tokens of spec.md §7.
var ReplySchema = message.Schema{
	// exp/mod are carried as opaque hex text (a 2048-bit modulus does not
	// fit an int64 Value), not as FieldSpec-decoded integers.
	"KeyFound":                 {message.Int(), message.Str(), message.Str()},
	"KeyNotFound":              {message.Int()},
	"CiphertextMalformed":      {},
	"InvalidIV":                {},
	"MessageDecryptionFailure": {},
	"MessageMalformed":         {},
	"UnknownMessageType":       {message.Str()},
}
