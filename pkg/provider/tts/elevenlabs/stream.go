package elevenlabs

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/coder/websocket"
)

const wsEndpointFmt = "wss://api.elevenlabs.io/v1/text-to-speech/%s/stream-input?model_id=%s&output_format=%s"

// StreamSession is one open stream-input WebSocket to ElevenLabs. It is a
// per-utterance connection: send text fragments, flush, drain the audio,
// close. Not safe for concurrent use; the owning synthesis session
// serialises access.
type StreamSession struct {
	conn  *websocket.Conn
	first bool
}

// textMessage is the JSON payload sent for each text fragment.
type textMessage struct {
	Text          string         `json:"text"`
	VoiceSettings *voiceSettings `json:"voice_settings,omitempty"`
}

// boiMessage is the initial "begin of input" handshake.
type boiMessage struct {
	Text          string         `json:"text"`
	VoiceSettings *voiceSettings `json:"voice_settings,omitempty"`
	XiAPIKey      string         `json:"xi_api_key"`
}

// audioResponse is a message received over the WebSocket.
type audioResponse struct {
	Audio   string `json:"audio"` // base64-encoded PCM
	IsFinal bool   `json:"isFinal"`
	Message string `json:"message,omitempty"`
}

// DialStream opens a stream-input WebSocket for the given voice and performs
// the authentication handshake. The caller must Close the session.
func (p *Provider) DialStream(ctx context.Context, voiceID string) (*StreamSession, error) {
	if voiceID == "" {
		return nil, errors.New("elevenlabs: voiceID must not be empty")
	}

	url := fmt.Sprintf(wsEndpointFmt, voiceID, p.model, defaultOutputFmt)
	conn, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("elevenlabs: dial stream: %w", err)
	}

	// ElevenLabs requires a non-empty first text value in the handshake.
	boi := boiMessage{
		Text:          " ",
		VoiceSettings: &voiceSettings{Stability: 0.5, SimilarityBoost: 0.75},
		XiAPIKey:      p.apiKey,
	}
	payload, _ := json.Marshal(boi)
	if err := conn.Write(ctx, websocket.MessageText, payload); err != nil {
		conn.Close(websocket.StatusInternalError, "handshake failed")
		return nil, fmt.Errorf("elevenlabs: send handshake: %w", err)
	}

	return &StreamSession{conn: conn, first: true}, nil
}

// Send writes one text fragment to the stream. Voice settings accompany only
// the first fragment; subsequent fragments inherit them.
func (s *StreamSession) Send(ctx context.Context, text string) error {
	if text == "" {
		return nil
	}
	msg := textMessage{Text: text}
	if s.first {
		msg.VoiceSettings = &voiceSettings{Stability: 0.5, SimilarityBoost: 0.75}
		s.first = false
	}
	payload, _ := json.Marshal(msg)
	if err := s.conn.Write(ctx, websocket.MessageText, payload); err != nil {
		return fmt.Errorf("elevenlabs: stream send: %w", err)
	}
	return nil
}

// Flush signals end of input. ElevenLabs then synthesises any buffered text
// and marks the final audio message.
func (s *StreamSession) Flush(ctx context.Context) error {
	payload, _ := json.Marshal(textMessage{Text: ""})
	if err := s.conn.Write(ctx, websocket.MessageText, payload); err != nil {
		return fmt.Errorf("elevenlabs: stream flush: %w", err)
	}
	return nil
}

// KeepAlive sends a single-space fragment to hold the connection open during
// idle periods without triggering synthesis.
func (s *StreamSession) KeepAlive(ctx context.Context) error {
	payload, _ := json.Marshal(textMessage{Text: " "})
	if err := s.conn.Write(ctx, websocket.MessageText, payload); err != nil {
		return fmt.Errorf("elevenlabs: stream keep-alive: %w", err)
	}
	return nil
}

// Drain reads audio messages until the final marker or ctx expiry and
// returns the concatenated PCM.
func (s *StreamSession) Drain(ctx context.Context) ([]byte, error) {
	var pcm []byte
	for {
		_, data, err := s.conn.Read(ctx)
		if err != nil {
			if len(pcm) > 0 {
				// A truncated tail after real audio is still usable.
				return pcm, nil
			}
			return nil, fmt.Errorf("elevenlabs: stream read: %w", err)
		}

		var resp audioResponse
		if err := json.Unmarshal(data, &resp); err != nil {
			continue
		}
		if resp.Audio != "" {
			chunk, err := base64.StdEncoding.DecodeString(resp.Audio)
			if err == nil {
				pcm = append(pcm, chunk...)
			}
		}
		if resp.IsFinal {
			return pcm, nil
		}
	}
}

// Close tears down the WebSocket. Safe to call after errors.
func (s *StreamSession) Close() error {
	return s.conn.Close(websocket.StatusNormalClosure, "done")
}
