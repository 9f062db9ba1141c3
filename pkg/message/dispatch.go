package message

// DefaultHandler is the type_name key catching any schema-known type with no
// specific handler registered.
const DefaultHandler = "default"

// UnknownMessageTypeHandler is the type_name key invoked when the incoming
// type_name is absent from the schema entirely. Wiring this explicitly
// resolves the Design Notes Open Question left dangling in the original
// source (_handler_unknown was defined but never reached from dispatch).
const UnknownMessageTypeHandler = "UnknownMessageType"

// Reply is an outgoing message a handler asks to have queued back to the
// sender's outbox.
type Reply struct {
	Type   string
	Params []Value
}

// HandlerFunc processes one incoming message on behalf of the server
// (recipient == "0"). It may return a Reply to be queued back to sender.
type HandlerFunc func(sender string, params []Value) (*Reply, error)

// Handlers is the dispatch table keyed by type_name.
type Handlers map[string]HandlerFunc

// Dispatch invokes the handler registered for env.Type, falling back to
// DefaultHandler when no specific handler is registered. It returns (nil,
// nil) when neither exists. Dispatch never calls UnknownMessageTypeHandler;
// a type_name that failed Parse with ErrUnknownType goes through
// DispatchUnknown instead (see router.Session.handleServerDirected).
func Dispatch(handlers Handlers, sender string, env Envelope) (*Reply, error) {
	if h, ok := handlers[env.Type]; ok {
		return h(sender, env.Params)
	}
	if h, ok := handlers[DefaultHandler]; ok {
		return h(sender, env.Params)
	}
	return nil, nil
}

// DispatchUnknown invokes UnknownMessageTypeHandler for a type_name that did
// not parse against the schema at all, passing the attempted type_name as
// the handler's sole param so it can be echoed back in a reply (mirrors the
// original source's _handler_unknown, which carried the type name it was
// asked to handle).
func DispatchUnknown(handlers Handlers, sender, typeName string) (*Reply, error) {
	if h, ok := handlers[UnknownMessageTypeHandler]; ok {
		return h(sender, []Value{StrValue(typeName)})
	}
	return nil, nil
}
