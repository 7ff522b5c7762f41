package queue

import (
	"encoding/json"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/SpicychieF05/StreamZip/id"
	"github.com/SpicychieF05/StreamZip/job"
)

// Codec defines the wire serialization contract for queue messages.
type Codec interface {
	// Encode serializes a message to bytes.
	Encode(msg job.Message) ([]byte, error)

	// Decode deserializes bytes into a message.
	Decode(data []byte) (job.Message, error)

	// Name returns the codec identifier (e.g., "json", "msgpack").
	Name() string
}

// CodecName constants for configuration.
const (
	CodecNameJSON    = "json"
	CodecNameMsgpack = "msgpack"
)

// GetCodec returns a codec by name. Defaults to msgpack.
func GetCodec(name string) Codec {
	switch name {
	case CodecNameJSON:
		return &JSONCodec{}
	case CodecNameMsgpack, "":
		return &MsgpackCodec{}
	default:
		return &MsgpackCodec{}
	}
}

// wireMessage is the flat representation put on the wire. The job ID
// travels as its string form.
type wireMessage struct {
	JobID string `json:"job_id" msgpack:"job_id"`
	Type  string `json:"type" msgpack:"type"`
	URL   string `json:"url" msgpack:"url"`
}

func toWire(msg job.Message) wireMessage {
	return wireMessage{
		JobID: msg.JobID.String(),
		Type:  string(msg.Type),
		URL:   msg.URL,
	}
}

func fromWire(w wireMessage) (job.Message, error) {
	jID, err := id.ParseJobID(w.JobID)
	if err != nil {
		return job.Message{}, fmt.Errorf("streamzip/queue: decode job id: %w", err)
	}
	return job.Message{JobID: jID, Type: job.Type(w.Type), URL: w.URL}, nil
}

// JSONCodec encodes messages as JSON. Useful when queue contents must stay
// inspectable with standard Redis tooling.
type JSONCodec struct{}

func (c *JSONCodec) Encode(msg job.Message) ([]byte, error) {
	return json.Marshal(toWire(msg))
}

func (c *JSONCodec) Decode(data []byte) (job.Message, error) {
	var w wireMessage
	if err := json.Unmarshal(data, &w); err != nil {
		return job.Message{}, fmt.Errorf("streamzip/queue: decode json: %w", err)
	}
	return fromWire(w)
}

func (c *JSONCodec) Name() string { return CodecNameJSON }

// MsgpackCodec encodes messages as MessagePack.
type MsgpackCodec struct{}

func (c *MsgpackCodec) Encode(msg job.Message) ([]byte, error) {
	return msgpack.Marshal(toWire(msg))
}

func (c *MsgpackCodec) Decode(data []byte) (job.Message, error) {
	var w wireMessage
	if err := msgpack.Unmarshal(data, &w); err != nil {
		return job.Message{}, fmt.Errorf("streamzip/queue: decode msgpack: %w", err)
	}
	return fromWire(w)
}

func (c *MsgpackCodec) Name() string { return CodecNameMsgpack }
