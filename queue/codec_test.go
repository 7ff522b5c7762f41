package queue

import (
	"testing"

	"github.com/SpicychieF05/StreamZip/id"
	"github.com/SpicychieF05/StreamZip/job"
)

func TestCodecRoundTrip(t *testing.T) {
	t.Parallel()

	msg := job.Message{
		JobID: id.NewJobID(),
		Type:  job.TypeAudio,
		URL:   "https://youtube.com/watch?v=abc",
	}

	for _, codec := range []Codec{&JSONCodec{}, &MsgpackCodec{}} {
		t.Run(codec.Name(), func(t *testing.T) {
			data, err := codec.Encode(msg)
			if err != nil {
				t.Fatalf("Encode: %v", err)
			}
			got, err := codec.Decode(data)
			if err != nil {
				t.Fatalf("Decode: %v", err)
			}
			if got.JobID != msg.JobID || got.Type != msg.Type || got.URL != msg.URL {
				t.Errorf("round trip = %+v, want %+v", got, msg)
			}
		})
	}
}

func TestCodecDecodeErrors(t *testing.T) {
	t.Parallel()

	for _, codec := range []Codec{&JSONCodec{}, &MsgpackCodec{}} {
		t.Run(codec.Name(), func(t *testing.T) {
			if _, err := codec.Decode([]byte("\x00garbage")); err == nil {
				t.Error("expected error decoding garbage")
			}
		})
	}

	// A structurally valid payload with a bad job id must still fail.
	c := &JSONCodec{}
	if _, err := c.Decode([]byte(`{"job_id":"not-an-id","type":"video","url":"u"}`)); err == nil {
		t.Error("expected error for malformed job id")
	}
}

func TestGetCodec(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		want string
	}{
		{"json", CodecNameJSON},
		{"msgpack", CodecNameMsgpack},
		{"", CodecNameMsgpack},
		{"protobuf", CodecNameMsgpack},
	}
	for _, tt := range tests {
		if got := GetCodec(tt.name).Name(); got != tt.want {
			t.Errorf("GetCodec(%q).Name() = %q, want %q", tt.name, got, tt.want)
		}
	}
}
