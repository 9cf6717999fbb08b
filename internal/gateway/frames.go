// Package gateway terminates media-stream WebSocket connections from the
// telephony gateway and bridges each call's audio to the speech and
// conversation layers.
package gateway

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
)

// Frame event names on the media stream.
const (
	eventConnected = "connected"
	eventStart     = "start"
	eventMedia     = "media"
	eventMark      = "mark"
	eventStop      = "stop"
)

// Frame is one JSON control frame on the media connection. Exactly one of
// the event payloads is set, matching Event.
type Frame struct {
	Event    string      `json:"event"`
	StreamID string      `json:"streamSid,omitempty"`
	Start    *StartFrame `json:"start,omitempty"`
	Media    *MediaFrame `json:"media,omitempty"`
	Mark     *MarkFrame  `json:"mark,omitempty"`
	Stop     *StopFrame  `json:"stop,omitempty"`
}

// StartFrame announces the call: the gateway-assigned stream id, the gateway
// account identity, and the call routing numbers.
type StartFrame struct {
	StreamID     string            `json:"streamSid"`
	AccountID    string            `json:"accountSid"`
	CallID       string            `json:"callSid"`
	From         string            `json:"from"`
	To           string            `json:"to"`
	MediaFormat  MediaFormat       `json:"mediaFormat"`
	CustomParams map[string]string `json:"customParameters,omitempty"`
}

// MediaFormat describes the audio encoding on the stream. The gateway sends
// 8 kHz mono mu-law.
type MediaFormat struct {
	Encoding   string `json:"encoding"`
	SampleRate int    `json:"sampleRate"`
	Channels   int    `json:"channels"`
}

// MediaFrame carries one chunk of base64-encoded audio.
type MediaFrame struct {
	Track     string `json:"track,omitempty"`
	Chunk     string `json:"chunk,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
	Payload   string `json:"payload"`
}

// MarkFrame is echoed back by the gateway once the audio queued before it
// has finished playing.
type MarkFrame struct {
	Name string `json:"name"`
}

// StopFrame ends the stream.
type StopFrame struct {
	AccountID string `json:"accountSid"`
	CallID    string `json:"callSid"`
}

// decodeFrame parses one inbound control frame.
func decodeFrame(data []byte) (Frame, error) {
	var f Frame
	if err := json.Unmarshal(data, &f); err != nil {
		return Frame{}, fmt.Errorf("gateway: decoding frame: %w", err)
	}
	if f.Event == "" {
		return Frame{}, fmt.Errorf("gateway: frame missing event field")
	}
	return f, nil
}

// audioPayload decodes the base64 audio out of a media frame.
func (m *MediaFrame) audioPayload() ([]byte, error) {
	raw, err := base64.StdEncoding.DecodeString(m.Payload)
	if err != nil {
		return nil, fmt.Errorf("gateway: decoding media payload: %w", err)
	}
	return raw, nil
}

// encodeMediaFrame builds an outbound media frame around one audio chunk.
func encodeMediaFrame(streamID string, audio []byte) ([]byte, error) {
	f := Frame{
		Event:    eventMedia,
		StreamID: streamID,
		Media:    &MediaFrame{Payload: base64.StdEncoding.EncodeToString(audio)},
	}
	data, err := json.Marshal(f)
	if err != nil {
		return nil, fmt.Errorf("gateway: encoding media frame: %w", err)
	}
	return data, nil
}

// encodeMarkFrame builds an outbound mark frame. The gateway echoes it once
// playback reaches this point in the queue.
func encodeMarkFrame(streamID, name string) ([]byte, error) {
	f := Frame{
		Event:    eventMark,
		StreamID: streamID,
		Mark:     &MarkFrame{Name: name},
	}
	data, err := json.Marshal(f)
	if err != nil {
		return nil, fmt.Errorf("gateway: encoding mark frame: %w", err)
	}
	return data, nil
}
