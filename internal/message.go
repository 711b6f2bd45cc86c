package internal

import (
	"encoding/json"
	"errors"
)

// The wire protocol is a closed set of JSON messages. Variants are untagged:
// which fields are present decides the kind, matching what clients already
// send. Broadcast is the only variant that is ever persisted; everything
// else is transient control traffic.
type Message interface {
	wireMessage()
}

// JoinRequest is the client's declared identity, sent once while preparing.
type JoinRequest struct {
	Name string `json:"name"`
}

// Ready acknowledges that the server processed a join.
type Ready struct {
	Ready bool `json:"ready"`
}

// MemberJoined announces a new active participant.
type MemberJoined struct {
	Joined string `json:"joined"`
}

// MemberQuitted announces a departed participant.
type MemberQuitted struct {
	Quit string `json:"quit"`
}

// Text is raw client-submitted chat text.
type Text struct {
	Message string `json:"message"`
}

// Broadcast is the durable chat record fanned out to every participant.
type Broadcast struct {
	Name      string `json:"name"`
	Message   string `json:"message"`
	Timestamp uint64 `json:"timestamp"`
}

// ErrorResponse is a rejection notice delivered only to the offending sender.
type ErrorResponse struct {
	Error string `json:"error"`
}

func (JoinRequest) wireMessage()   {}
func (Ready) wireMessage()         {}
func (MemberJoined) wireMessage()  {}
func (MemberQuitted) wireMessage() {}
func (Text) wireMessage()          {}
func (Broadcast) wireMessage()     {}
func (ErrorResponse) wireMessage() {}

// ErrMalformedMessage reports a frame whose shape matches no variant.
var ErrMalformedMessage = errors.New("unexpected format of message")

// messageProbe holds every field any variant can carry; presence picks the kind.
type messageProbe struct {
	Name      *string `json:"name"`
	Ready     *bool   `json:"ready"`
	Joined    *string `json:"joined"`
	Quit      *string `json:"quit"`
	Message   *string `json:"message"`
	Timestamp *uint64 `json:"timestamp"`
	Error     *string `json:"error"`
}

// ParseMessage decodes a raw text frame into its Message variant. Broadcast
// is matched before JoinRequest and Text since its field set is a superset
// of both.
func ParseMessage(raw []byte) (Message, error) {
	var probe messageProbe
	if err := json.Unmarshal(raw, &probe); err != nil {
		return nil, ErrMalformedMessage
	}
	switch {
	case probe.Name != nil && probe.Message != nil && probe.Timestamp != nil:
		return Broadcast{Name: *probe.Name, Message: *probe.Message, Timestamp: *probe.Timestamp}, nil
	case probe.Name != nil && probe.Message == nil:
		return JoinRequest{Name: *probe.Name}, nil
	case probe.Ready != nil:
		return Ready{Ready: *probe.Ready}, nil
	case probe.Joined != nil:
		return MemberJoined{Joined: *probe.Joined}, nil
	case probe.Quit != nil:
		return MemberQuitted{Quit: *probe.Quit}, nil
	case probe.Message != nil && probe.Name == nil:
		return Text{Message: *probe.Message}, nil
	case probe.Error != nil:
		return ErrorResponse{Error: *probe.Error}, nil
	}
	return nil, ErrMalformedMessage
}

// EncodeMessage serializes a Message for the wire or the history log.
func EncodeMessage(message Message) ([]byte, error) {
	return json.Marshal(message)
}
