package gateway

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/frontdeskai/switchboard/internal/convo"
	"github.com/frontdeskai/switchboard/internal/sessioncache"
	"github.com/frontdeskai/switchboard/pkg/audio"
	"github.com/frontdeskai/switchboard/pkg/types"
)

// scriptConn feeds a fixed frame sequence to the bridge and records
// everything written back.
type scriptConn struct {
	mu      sync.Mutex
	inbound [][]byte
	writes  [][]byte
	closes  int
}

func (c *scriptConn) Read(ctx context.Context) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.inbound) == 0 {
		return nil, errors.New("connection dropped")
	}
	data := c.inbound[0]
	c.inbound = c.inbound[1:]
	return data, nil
}

func (c *scriptConn) Write(ctx context.Context, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.writes = append(c.writes, data)
	return nil
}

func (c *scriptConn) Close(reason string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closes++
	return nil
}

func (c *scriptConn) written() []Frame {
	c.mu.Lock()
	defer c.mu.Unlock()
	var frames []Frame
	for _, data := range c.writes {
		var f Frame
		if err := json.Unmarshal(data, &f); err == nil {
			frames = append(frames, f)
		}
	}
	return frames
}

type gwStore struct {
	mu       sync.Mutex
	business types.Business
	bizErr   error
	records  []types.CallRecord
}

func (s *gwStore) BusinessByNumber(ctx context.Context, phoneNumber string) (types.Business, error) {
	if s.bizErr != nil {
		return types.Business{}, s.bizErr
	}
	return s.business, nil
}

func (s *gwStore) WriteCallRecord(ctx context.Context, rec types.CallRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, rec)
	return nil
}

type gwSTT struct {
	transcript string
	err        error
	calls      int
}

func (s *gwSTT) Transcribe(ctx context.Context, wavPath string) (string, error) {
	s.calls++
	return s.transcript, s.err
}

type gwTurns struct {
	result      convo.Result
	transcripts []string
}

func (t *gwTurns) HandleTurn(ctx context.Context, businessID, callID, transcript string, history []types.ConversationTurn, phase types.Phase) convo.Result {
	t.transcripts = append(t.transcripts, transcript)
	return t.result
}

type gwSpeaker struct {
	failFor map[string]bool
	spoken  []string
	audio   []byte
}

func (s *gwSpeaker) Synthesize(ctx context.Context, text string) ([]byte, error) {
	if s.failFor[text] {
		return nil, errors.New("all providers down")
	}
	s.spoken = append(s.spoken, text)
	if s.audio != nil {
		return s.audio, nil
	}
	return audio.MulawSilence(outFrameBytes), nil
}

// noopRegistry stands in for the acceptor.
type noopRegistry struct {
	rekeys  []string
	removes int
	err     error
}

func (r *noopRegistry) rekey(oldKey, id string) error {
	r.rekeys = append(r.rekeys, id)
	return r.err
}

func (r *noopRegistry) remove(key string) { r.removes++ }

func frameJSON(t *testing.T, f Frame) []byte {
	t.Helper()
	data, err := json.Marshal(f)
	if err != nil {
		t.Fatalf("marshaling frame: %v", err)
	}
	return data
}

func startFrame(t *testing.T, account string) []byte {
	return frameJSON(t, Frame{
		Event: eventStart,
		Start: &StartFrame{
			StreamID:  "MZ1",
			AccountID: account,
			CallID:    "CA100",
			From:      "+15550100",
			To:        "+15550199",
			MediaFormat: MediaFormat{
				Encoding: "audio/x-mulaw", SampleRate: 8000, Channels: 1,
			},
		},
	})
}

func mediaFrameBytes(t *testing.T, payload []byte) []byte {
	return frameJSON(t, Frame{
		Event: eventMedia,
		Media: &MediaFrame{Payload: base64.StdEncoding.EncodeToString(payload)},
	})
}

func markFrameBytes(t *testing.T, name string) []byte {
	return frameJSON(t, Frame{Event: eventMark, Mark: &MarkFrame{Name: name}})
}

func stopFrameBytes(t *testing.T) []byte {
	return frameJSON(t, Frame{Event: eventStop, Stop: &StopFrame{CallID: "CA100"}})
}

func testDeps(store *gwStore, stt *gwSTT, turns *gwTurns, speaker *gwSpeaker) BridgeDeps {
	return BridgeDeps{
		Store:     store,
		Sessions:  sessioncache.NewMemory(),
		STT:       stt,
		Turns:     turns,
		Speaker:   speaker,
		AccountID: "AC-test",
	}
}

func TestBridgeFullTurn(t *testing.T) {
	store := &gwStore{business: types.Business{ID: "biz-1", Name: "Meridian Creative"}}
	stt := &gwSTT{transcript: "What are your business hours?"}
	turns := &gwTurns{result: convo.Result{
		ReplyText:  "We're open nine to five.",
		NextPhase:  types.PhaseGreeting,
		NextAction: types.ActionContinue,
	}}
	speaker := &gwSpeaker{}

	conn := &scriptConn{inbound: [][]byte{
		frameJSON(t, Frame{Event: eventConnected}),
		startFrame(t, "AC-test"),
		markFrameBytes(t, "reply-1"), // welcome playback confirmed
		mediaFrameBytes(t, audio.MulawSilence(inboundBufferBytes)),
		stopFrameBytes(t),
	}}

	b := newBridge("tmp", conn, testDeps(store, stt, turns, speaker), &noopRegistry{})
	if err := b.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if stt.calls != 1 {
		t.Fatalf("STT calls = %d, want 1", stt.calls)
	}
	if len(turns.transcripts) != 1 || turns.transcripts[0] != "What are your business hours?" {
		t.Fatalf("turns saw %v", turns.transcripts)
	}
	// Welcome plus the reply.
	if len(speaker.spoken) != 2 {
		t.Fatalf("spoken = %v, want welcome + reply", speaker.spoken)
	}
	if speaker.spoken[1] != "We're open nine to five." {
		t.Fatalf("reply spoken = %q", speaker.spoken[1])
	}

	var media, marks int
	for _, f := range conn.written() {
		switch f.Event {
		case eventMedia:
			media++
			if f.StreamID != "MZ1" {
				t.Fatalf("outbound media keyed to %q, want MZ1", f.StreamID)
			}
			if _, err := f.Media.audioPayload(); err != nil {
				t.Fatalf("outbound payload not valid base64: %v", err)
			}
		case eventMark:
			marks++
		}
	}
	if media == 0 || marks != 2 {
		t.Fatalf("outbound media=%d marks=%d, want media>0 marks=2", media, marks)
	}

	if len(store.records) != 1 {
		t.Fatalf("call records = %d, want 1", len(store.records))
	}
	rec := store.records[0]
	if rec.CallID != "CA100" || rec.TurnCount != 1 || rec.FromNumber != "+15550100" {
		t.Fatalf("call record = %+v", rec)
	}
}

func TestBridgeRejectsWrongAccount(t *testing.T) {
	store := &gwStore{business: types.Business{ID: "biz-1"}}
	conn := &scriptConn{inbound: [][]byte{startFrame(t, "AC-intruder")}}

	b := newBridge("tmp", conn, testDeps(store, &gwSTT{}, &gwTurns{}, &gwSpeaker{}), &noopRegistry{})
	err := b.Run(context.Background())
	if err == nil || !strings.Contains(err.Error(), "unexpected account") {
		t.Fatalf("Run err = %v, want account rejection", err)
	}
	if len(store.records) != 0 {
		t.Fatal("no call record should exist for a rejected connection")
	}
}

func TestBridgeDropsShortTranscript(t *testing.T) {
	store := &gwStore{business: types.Business{ID: "biz-1"}}
	stt := &gwSTT{transcript: "hm"}
	turns := &gwTurns{}

	conn := &scriptConn{inbound: [][]byte{
		startFrame(t, "AC-test"),
		markFrameBytes(t, "reply-1"),
		mediaFrameBytes(t, audio.MulawSilence(inboundBufferBytes)),
		stopFrameBytes(t),
	}}

	b := newBridge("tmp", conn, testDeps(store, stt, turns, &gwSpeaker{}), &noopRegistry{})
	if err := b.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(turns.transcripts) != 0 {
		t.Fatalf("short transcript reached the orchestrator: %v", turns.transcripts)
	}
}

func TestBridgeTranscriptionFailureNonFatal(t *testing.T) {
	store := &gwStore{business: types.Business{ID: "biz-1"}}
	stt := &gwSTT{err: errors.New("stt down")}
	turns := &gwTurns{}

	conn := &scriptConn{inbound: [][]byte{
		startFrame(t, "AC-test"),
		markFrameBytes(t, "reply-1"),
		mediaFrameBytes(t, audio.MulawSilence(inboundBufferBytes)),
		stopFrameBytes(t),
	}}

	b := newBridge("tmp", conn, testDeps(store, stt, turns, &gwSpeaker{}), &noopRegistry{})
	if err := b.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v, transcription failure must not end the call", err)
	}
	if len(turns.transcripts) != 0 {
		t.Fatal("failed transcription must not produce a turn")
	}
	if len(store.records) != 1 {
		t.Fatalf("call records = %d, want 1", len(store.records))
	}
}

func TestBridgeDiscardsAudioWhileSpeaking(t *testing.T) {
	store := &gwStore{business: types.Business{ID: "biz-1"}}
	stt := &gwSTT{transcript: "hello there"}
	turns := &gwTurns{result: convo.Result{ReplyText: "Hi!", NextAction: types.ActionContinue}}

	// No mark echo after the welcome: the speaking flag is still up when
	// the caller audio arrives, so it is discarded and STT never runs.
	conn := &scriptConn{inbound: [][]byte{
		startFrame(t, "AC-test"),
		mediaFrameBytes(t, audio.MulawSilence(inboundBufferBytes)),
		stopFrameBytes(t),
	}}

	b := newBridge("tmp", conn, testDeps(store, stt, turns, &gwSpeaker{}), &noopRegistry{})
	if err := b.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if stt.calls != 0 {
		t.Fatal("audio received while speaking must be discarded")
	}
}

func TestBridgeHangupAction(t *testing.T) {
	store := &gwStore{business: types.Business{ID: "biz-1"}}
	stt := &gwSTT{transcript: "goodbye then"}
	turns := &gwTurns{result: convo.Result{
		ReplyText:  "Thanks for calling!",
		NextPhase:  types.PhaseGreeting,
		NextAction: types.ActionHangup,
	}}

	conn := &scriptConn{inbound: [][]byte{
		startFrame(t, "AC-test"),
		markFrameBytes(t, "reply-1"),
		mediaFrameBytes(t, audio.MulawSilence(inboundBufferBytes)),
		// Never consumed: the bridge closes itself after the hangup.
		mediaFrameBytes(t, audio.MulawSilence(inboundBufferBytes)),
	}}

	b := newBridge("tmp", conn, testDeps(store, stt, turns, &gwSpeaker{}), &noopRegistry{})
	if err := b.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if stt.calls != 1 {
		t.Fatalf("STT calls = %d, want exactly the turn before hangup", stt.calls)
	}
	if len(store.records) != 1 {
		t.Fatalf("call records = %d, want 1", len(store.records))
	}
}

func TestBridgeVoicemailActionClosesCall(t *testing.T) {
	store := &gwStore{business: types.Business{ID: "biz-1"}}
	stt := &gwSTT{transcript: "the site is down, this is urgent"}
	turns := &gwTurns{result: convo.Result{
		ReplyText:  "The team is being notified right now.",
		NextPhase:  types.PhaseEscalation,
		NextAction: types.ActionVoicemail,
	}}

	conn := &scriptConn{inbound: [][]byte{
		startFrame(t, "AC-test"),
		markFrameBytes(t, "reply-1"),
		mediaFrameBytes(t, audio.MulawSilence(inboundBufferBytes)),
		// Never consumed: the bridge closes itself after routing to voicemail.
		mediaFrameBytes(t, audio.MulawSilence(inboundBufferBytes)),
	}}

	b := newBridge("tmp", conn, testDeps(store, stt, turns, &gwSpeaker{}), &noopRegistry{})
	if err := b.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if stt.calls != 1 {
		t.Fatalf("STT calls = %d, want exactly the turn before voicemail", stt.calls)
	}
	if len(store.records) != 1 {
		t.Fatalf("call records = %d, want 1", len(store.records))
	}
	if b.outcome != "voicemail" {
		t.Fatalf("outcome = %q, want voicemail", b.outcome)
	}
}

func TestBridgeSynthesisFailureSpeaksApology(t *testing.T) {
	store := &gwStore{business: types.Business{ID: "biz-1", WelcomeMessage: "Hello!"}}
	stt := &gwSTT{transcript: "tell me about pricing"}
	turns := &gwTurns{result: convo.Result{ReplyText: "It depends.", NextAction: types.ActionContinue}}
	speaker := &gwSpeaker{failFor: map[string]bool{"It depends.": true}}

	conn := &scriptConn{inbound: [][]byte{
		startFrame(t, "AC-test"),
		markFrameBytes(t, "reply-1"),
		mediaFrameBytes(t, audio.MulawSilence(inboundBufferBytes)),
		stopFrameBytes(t),
	}}

	b := newBridge("tmp", conn, testDeps(store, stt, turns, speaker), &noopRegistry{})
	if err := b.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(speaker.spoken) != 2 || speaker.spoken[1] != apologyText {
		t.Fatalf("spoken = %v, want welcome then apology", speaker.spoken)
	}
}

func TestBridgeCleanupExactlyOnce(t *testing.T) {
	store := &gwStore{business: types.Business{ID: "biz-1"}}
	reg := &noopRegistry{}
	conn := &scriptConn{inbound: [][]byte{
		startFrame(t, "AC-test"),
		stopFrameBytes(t),
	}}

	b := newBridge("tmp", conn, testDeps(store, &gwSTT{}, &gwTurns{}, &gwSpeaker{}), reg)
	ctx := context.Background()
	if err := b.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}
	// A racing error path would call cleanup again.
	b.cleanup(ctx, errors.New("late error"))
	b.cleanup(ctx, nil)

	if len(store.records) != 1 {
		t.Fatalf("call records = %d, want exactly 1", len(store.records))
	}
	if reg.removes != 1 {
		t.Fatalf("registry removes = %d, want exactly 1", reg.removes)
	}
}

func TestBridgeRekeyFailureEndsCall(t *testing.T) {
	store := &gwStore{business: types.Business{ID: "biz-1"}}
	reg := &noopRegistry{err: errors.New("call already bridged")}
	conn := &scriptConn{inbound: [][]byte{startFrame(t, "AC-test")}}

	b := newBridge("tmp", conn, testDeps(store, &gwSTT{}, &gwTurns{}, &gwSpeaker{}), reg)
	err := b.Run(context.Background())
	if err == nil || !strings.Contains(err.Error(), "adopting call id") {
		t.Fatalf("Run err = %v, want rekey failure", err)
	}
}

func TestBridgeStreamerPreferred(t *testing.T) {
	store := &gwStore{business: types.Business{ID: "biz-1", WelcomeMessage: "Hi!"}}
	speaker := &gwSpeaker{}
	streamer := &fakeStreamer{available: true, audio: audio.MulawSilence(outFrameBytes)}

	deps := testDeps(store, &gwSTT{}, &gwTurns{}, speaker)
	deps.Streamer = streamer

	conn := &scriptConn{inbound: [][]byte{
		startFrame(t, "AC-test"),
		stopFrameBytes(t),
	}}

	b := newBridge("tmp", conn, deps, &noopRegistry{})
	if err := b.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if streamer.calls != 1 {
		t.Fatalf("streamer calls = %d, want 1", streamer.calls)
	}
	if len(speaker.spoken) != 0 {
		t.Fatalf("ladder used despite healthy streamer: %v", speaker.spoken)
	}
}

type fakeStreamer struct {
	available bool
	audio     []byte
	err       error
	calls     int
}

func (f *fakeStreamer) Available() bool { return f.available }

func (f *fakeStreamer) Speak(ctx context.Context, text string) ([]byte, error) {
	f.calls++
	return f.audio, f.err
}
