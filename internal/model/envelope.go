package model

import (
	"encoding/json"
	"errors"
)

// Kind discriminates envelope variants by their wire-level "type" field.
type Kind string

const (
	KindConnectRequest  Kind = "connect-request"
	KindConnectResponse Kind = "connect-response"
	KindConnected       Kind = "connected"
	KindDisconnected    Kind = "disconnected"
	KindOffer           Kind = "offer"
	KindAnswer          Kind = "answer"
)

// Envelope is implemented by every signaling message variant.
type Envelope interface {
	Kind() Kind
}

// ErrUnknownEnvelope is returned by Decode when the payload's "type"
// field is missing, empty, or not one of the known variants.
var ErrUnknownEnvelope = errors.New("model: unknown or missing envelope type")

// ConnectRequest is the client's handshake frame: which room to join.
type ConnectRequest struct {
	Code Code `json:"code"`
}

func (ConnectRequest) Kind() Kind { return KindConnectRequest }

// ConnectResponse is the server's handshake reply: the newly assigned
// user plus the peers already present in the room.
type ConnectResponse struct {
	User       User   `json:"user"`
	OtherUsers []User `json:"other_users"`
}

func (ConnectResponse) Kind() Kind { return KindConnectResponse }

// Connected is fanned out to every existing member when a newcomer joins.
type Connected struct {
	User User `json:"user"`
}

func (Connected) Kind() Kind { return KindConnected }

// Disconnected is fanned out to every remaining member when a user leaves.
type Disconnected struct {
	User string `json:"user"`
}

func (Disconnected) Kind() Kind { return KindDisconnected }

// Offer carries a WebRTC offer SDP from one peer to another, relayed
// through the room. FromUser is always server-attributed, never
// trusted from the sender's payload.
type Offer struct {
	FromUser string  `json:"from_user"`
	ToUser   string  `json:"to_user"`
	Session  Session `json:"session"`
}

func (Offer) Kind() Kind { return KindOffer }

// Answer carries a WebRTC answer SDP, symmetric to Offer.
type Answer struct {
	FromUser string  `json:"from_user"`
	ToUser   string  `json:"to_user"`
	Session  Session `json:"session"`
}

func (Answer) Kind() Kind { return KindAnswer }

type kindOnly struct {
	Type Kind `json:"type"`
}

// Decode parses a single JSON frame into its concrete Envelope
// variant. An unknown, missing, or malformed type is reported as
// ErrUnknownEnvelope (or a json error) — callers on the inbound pump
// treat both as "drop this frame silently".
func Decode(data []byte) (Envelope, error) {
	var k kindOnly
	if err := json.Unmarshal(data, &k); err != nil {
		return nil, err
	}
	switch k.Type {
	case KindConnectRequest:
		var e ConnectRequest
		if err := json.Unmarshal(data, &e); err != nil {
			return nil, err
		}
		return e, nil
	case KindConnectResponse:
		var e ConnectResponse
		if err := json.Unmarshal(data, &e); err != nil {
			return nil, err
		}
		return e, nil
	case KindConnected:
		var e Connected
		if err := json.Unmarshal(data, &e); err != nil {
			return nil, err
		}
		return e, nil
	case KindDisconnected:
		var e Disconnected
		if err := json.Unmarshal(data, &e); err != nil {
			return nil, err
		}
		return e, nil
	case KindOffer:
		var e Offer
		if err := json.Unmarshal(data, &e); err != nil {
			return nil, err
		}
		return e, nil
	case KindAnswer:
		var e Answer
		if err := json.Unmarshal(data, &e); err != nil {
			return nil, err
		}
		return e, nil
	default:
		return nil, ErrUnknownEnvelope
	}
}

// Encode serializes e to a JSON object whose top-level fields are
// exactly those of the variant, plus "type".
func Encode(e Envelope) ([]byte, error) {
	body, err := json.Marshal(e)
	if err != nil {
		return nil, err
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, err
	}
	typeField, err := json.Marshal(e.Kind())
	if err != nil {
		return nil, err
	}
	fields["type"] = typeField
	return json.Marshal(fields)
}
