package router

import (
	"strings"

	"github.com/vcsms/vcsms/pkg/directory"
	"github.com/vcsms/vcsms/pkg/identity"
	"github.com/vcsms/vcsms/pkg/message"
)

// BuiltinHandlers returns the server-directed (recipient == "0") dispatch
// table: GetKey, Quit, a "default" that takes no action and logs nothing,
// and an explicitly wired
// UnknownMessageType fallback for types absent from IncomingSchema entirely
// (spec.md §9 Design Notes, Open Question resolved).
func BuiltinHandlers(dir directory.Directory, quit func(clientID string)) message.Handlers {
	return message.Handlers{
		"GetKey": func(sender string, params []message.Value) (*message.Reply, error) {
			requestIndex := params[0].Int
			targetID := params[1].Str
			pub, ok := dir.Get(targetID)
			if !ok {
				return &message.Reply{Type: "KeyNotFound", Params: []message.Value{
					message.IntValue(requestIndex),
				}}, nil
			}
			expHex, modHex, _ := strings.Cut(identity.CanonicalSerialization(pub), ":")
			return &message.Reply{Type: "KeyFound", Params: []message.Value{
				message.IntValue(requestIndex),
				message.StrValue(expHex),
				message.StrValue(modHex),
			}}, nil
		},
		"Quit": func(sender string, params []message.Value) (*message.Reply, error) {
			quit(sender)
			return nil, nil
		},
		message.DefaultHandler: func(sender string, params []message.Value) (*message.Reply, error) {
			return nil, nil
		},
		message.UnknownMessageTypeHandler: func(sender string, params []message.Value) (*message.Reply, error) {
			typeName := ""
			if len(params) > 0 {
				typeName = params[0].Str
			}
			return &message.Reply{Type: "UnknownMessageType", Params: []message.Value{
				message.StrValue(typeName),
			}}, nil
		},
	}
}
