package message

import (
	"errors"
	"testing"
)

func TestDispatchSpecificHandler(t *testing.T) {
	called := false
	handlers := Handlers{
		"GetKey": func(sender string, params []Value) (*Reply, error) {
			called = true
			if sender != "abcd" {
				t.Errorf("sender = %q, want %q", sender, "abcd")
			}
			return &Reply{Type: "Key", Params: []Value{IntValue(1)}}, nil
		},
	}
	reply, err := Dispatch(handlers, "abcd", Envelope{Type: "GetKey"})
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if !called {
		t.Fatal("specific handler was not invoked")
	}
	if reply == nil || reply.Type != "Key" {
		t.Errorf("reply = %+v, want Type=Key", reply)
	}
}

func TestDispatchFallsBackToDefault(t *testing.T) {
	defaultCalled := false
	handlers := Handlers{
		DefaultHandler: func(sender string, params []Value) (*Reply, error) {
			defaultCalled = true
			return nil, nil
		},
	}
	if _, err := Dispatch(handlers, "abcd", Envelope{Type: "SomeKnownType"}); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if !defaultCalled {
		t.Error("default handler was not invoked")
	}
}

func TestDispatchNoHandlerNoDefault(t *testing.T) {
	reply, err := Dispatch(Handlers{}, "abcd", Envelope{Type: "Whatever"})
	if err != nil || reply != nil {
		t.Errorf("Dispatch with no matching handler = (%v, %v), want (nil, nil)", reply, err)
	}
}

func TestDispatchPropagatesHandlerError(t *testing.T) {
	wantErr := errors.New("handler failed")
	handlers := Handlers{
		"Boom": func(sender string, params []Value) (*Reply, error) {
			return nil, wantErr
		},
	}
	_, err := Dispatch(handlers, "abcd", Envelope{Type: "Boom"})
	if err != wantErr {
		t.Errorf("Dispatch error = %v, want %v", err, wantErr)
	}
}

func TestDispatchUnknown(t *testing.T) {
	invokedWith := ""
	var gotParams []Value
	handlers := Handlers{
		UnknownMessageTypeHandler: func(sender string, params []Value) (*Reply, error) {
			invokedWith = sender
			gotParams = params
			return nil, nil
		},
	}
	if _, err := DispatchUnknown(handlers, "abcd", "Bogus"); err != nil {
		t.Fatalf("DispatchUnknown: %v", err)
	}
	if invokedWith != "abcd" {
		t.Errorf("UnknownMessageTypeHandler invoked with sender %q, want %q", invokedWith, "abcd")
	}
	if len(gotParams) != 1 || gotParams[0].Str != "Bogus" {
		t.Errorf("UnknownMessageTypeHandler params = %+v, want [Bogus]", gotParams)
	}
}

func TestDispatchUnknownNoHandler(t *testing.T) {
	reply, err := DispatchUnknown(Handlers{}, "abcd", "Bogus")
	if err != nil || reply != nil {
		t.Errorf("DispatchUnknown with no handler = (%v, %v), want (nil, nil)", reply, err)
	}
}
