package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/frontdeskai/switchboard/internal/convo"
	"github.com/frontdeskai/switchboard/internal/observe"
	"github.com/frontdeskai/switchboard/internal/sessioncache"
	"github.com/frontdeskai/switchboard/pkg/audio"
	"github.com/frontdeskai/switchboard/pkg/types"
)

// bridgeState is the lifecycle of one bridged call.
type bridgeState int

const (
	stateAwaitingStart bridgeState = iota
	stateStreaming
	stateClosed
)

const (
	// inboundBufferBytes is ~500ms of 8 kHz mu-law before a turn is cut.
	inboundBufferBytes = 4000

	// outFrameBytes is one 20ms mu-law frame.
	outFrameBytes = 160

	// outFrameInterval paces outbound frames so the gateway's playback
	// buffer is never overrun.
	outFrameInterval = 20 * time.Millisecond

	// minTranscriptChars drops silence artifacts and sub-word noise.
	minTranscriptChars = 3

	// speakingGrace pads the mark fallback timer beyond the audio length.
	speakingGrace = 2 * time.Second
)

// apologyText is spoken when every synthesis provider failed for a turn.
// The caller must never sit in silence.
const apologyText = "I'm sorry, I'm having a little trouble speaking right now. Could you give me a moment and say that again?"

// mediaConn is the bridge's view of the WebSocket, narrowed for tests.
type mediaConn interface {
	Read(ctx context.Context) ([]byte, error)
	Write(ctx context.Context, data []byte) error
	Close(reason string) error
}

// CallStore is the persistence surface the bridge needs.
type CallStore interface {
	BusinessByNumber(ctx context.Context, phoneNumber string) (types.Business, error)
	WriteCallRecord(ctx context.Context, rec types.CallRecord) error
}

// TurnHandler produces the agent's reply for one caller utterance.
// [convo.Orchestrator] implements it.
type TurnHandler interface {
	HandleTurn(ctx context.Context, businessID, callID, transcript string, history []types.ConversationTurn, phase types.Phase) convo.Result
}

// Transcriber turns a 16 kHz PCM WAV file into text.
type Transcriber interface {
	Transcribe(ctx context.Context, wavPath string) (string, error)
}

// Speaker synthesizes reply text to 8 kHz mu-law telephone audio.
// [speech.Synthesizer] implements it.
type Speaker interface {
	Synthesize(ctx context.Context, text string) ([]byte, error)
}

// StreamSpeaker is the optional low-latency synthesis path, tried before
// the Speaker ladder. [speech.Streamer] implements it.
type StreamSpeaker interface {
	Available() bool
	Speak(ctx context.Context, text string) ([]byte, error)
}

// registry is the acceptor's bridge index, as seen from a bridge.
type registry interface {
	rekey(oldKey, id string) error
	remove(key string)
}

// BridgeDeps are the collaborators every bridge shares.
type BridgeDeps struct {
	Store    CallStore
	Sessions sessioncache.Cache
	STT      Transcriber
	Turns    TurnHandler
	Speaker  Speaker

	// Streamer is optional; nil disables the streaming path.
	Streamer StreamSpeaker

	// AccountID is the expected gateway identity in the start frame.
	AccountID string

	Metrics *observe.Metrics
}

// Bridge owns one call: it consumes inbound media frames, cuts them into
// caller turns, and streams synthesized replies back. A bridge is
// single-threaded with respect to its own call; concurrency exists only
// across bridges.
type Bridge struct {
	key  string
	conn mediaConn
	deps BridgeDeps
	reg  registry

	mu       sync.Mutex
	state    bridgeState
	speaking bool
	markSeq  int
	markWait *time.Timer
	outcome  string

	streamID  string
	callID    string
	from, to  string
	business  types.Business
	phase     types.Phase
	startedAt time.Time
	turnCount int

	inbound []byte

	cleanupOnce sync.Once
}

func newBridge(key string, conn mediaConn, deps BridgeDeps, reg registry) *Bridge {
	return &Bridge{
		key:   key,
		conn:  conn,
		deps:  deps,
		reg:   reg,
		state: stateAwaitingStart,
		phase: types.PhaseGreeting,
	}
}

// Run drives the bridge until the stream stops, the connection drops, or
// ctx is cancelled. It always runs cleanup exactly once before returning.
func (b *Bridge) Run(ctx context.Context) error {
	if b.deps.Metrics != nil {
		b.deps.Metrics.ActiveCalls.Add(ctx, 1)
	}
	err := b.readLoop(ctx)
	b.cleanup(ctx, err)
	return err
}

func (b *Bridge) readLoop(ctx context.Context) error {
	for {
		if b.currentState() == stateClosed {
			return nil
		}
		data, err := b.conn.Read(ctx)
		if err != nil {
			if b.currentState() == stateClosed {
				return nil
			}
			return fmt.Errorf("gateway: reading frame: %w", err)
		}

		frame, err := decodeFrame(data)
		if err != nil {
			slog.Debug("dropping malformed frame", "call_id", b.callID, "error", err)
			continue
		}

		switch frame.Event {
		case eventConnected:
			// Handshake noise, nothing to do yet.
		case eventStart:
			if err := b.handleStart(ctx, frame.Start); err != nil {
				return err
			}
		case eventMedia:
			b.handleMedia(ctx, frame.Media)
		case eventMark:
			b.handleMark(frame.Mark)
		case eventStop:
			slog.Info("stream stopped by gateway", "call_id", b.callID)
			return nil
		default:
			slog.Debug("ignoring unknown frame event", "event", frame.Event)
		}
	}
}

// handleStart validates the gateway identity, adopts the real call id, and
// greets a brand-new caller.
func (b *Bridge) handleStart(ctx context.Context, start *StartFrame) error {
	if start == nil {
		return fmt.Errorf("gateway: start frame without payload")
	}
	if b.currentState() != stateAwaitingStart {
		slog.Warn("duplicate start frame ignored", "call_id", b.callID)
		return nil
	}
	if b.deps.AccountID != "" && start.AccountID != b.deps.AccountID {
		return fmt.Errorf("gateway: start frame from unexpected account %q", start.AccountID)
	}

	callID := start.CallID
	if callID == "" {
		callID = start.StreamID
	}
	if err := b.reg.rekey(b.key, callID); err != nil {
		return fmt.Errorf("gateway: adopting call id: %w", err)
	}
	b.key = callID
	b.callID = callID
	b.streamID = start.StreamID
	b.from = start.From
	b.to = start.To
	b.startedAt = time.Now()

	biz, err := b.deps.Store.BusinessByNumber(ctx, start.To)
	if err != nil {
		return fmt.Errorf("gateway: resolving business for %s: %w", start.To, err)
	}
	b.business = biz
	b.setState(stateStreaming)

	slog.Info("call bridged",
		"call_id", b.callID, "business", biz.Name, "from", start.From, "to", start.To)

	// A caller with no session history gets the welcome line before they
	// have to say anything.
	if _, found, err := b.deps.Sessions.Load(ctx, b.callID); err == nil && !found {
		welcome := biz.WelcomeMessage
		if welcome == "" {
			welcome = fmt.Sprintf("Thanks for calling %s! How can I help you today?", biz.Name)
		}
		b.speak(ctx, welcome)
	}
	return nil
}

// handleMedia accumulates inbound audio and cuts a turn once enough has
// buffered. Audio arriving while the agent is speaking is discarded.
func (b *Bridge) handleMedia(ctx context.Context, media *MediaFrame) {
	if media == nil || b.currentState() != stateStreaming {
		return
	}
	if b.isSpeaking() {
		b.inbound = b.inbound[:0]
		return
	}

	chunk, err := media.audioPayload()
	if err != nil {
		slog.Debug("dropping undecodable media frame", "call_id", b.callID, "error", err)
		return
	}
	b.inbound = append(b.inbound, chunk...)
	if len(b.inbound) < inboundBufferBytes {
		return
	}

	turn := b.inbound
	b.inbound = nil
	b.processTurn(ctx, turn)
}

// handleMark clears the speaking flag once the gateway confirms playback of
// the frames queued before the mark.
func (b *Bridge) handleMark(mark *MarkFrame) {
	if mark == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.markWait != nil {
		b.markWait.Stop()
		b.markWait = nil
	}
	b.speaking = false
}

// processTurn runs one full caller turn: transcribe, orchestrate, speak.
// Transcription failure is not fatal; the bridge just waits for more audio.
func (b *Bridge) processTurn(ctx context.Context, mulaw []byte) {
	turnStart := time.Now()

	transcript, err := b.transcribe(ctx, mulaw)
	if err != nil {
		slog.Warn("transcription failed, awaiting more audio",
			"call_id", b.callID, "error", err)
		return
	}
	if len(strings.TrimSpace(transcript)) < minTranscriptChars {
		return
	}

	var history []types.ConversationTurn
	if state, found, err := b.deps.Sessions.Load(ctx, b.callID); err != nil {
		slog.Warn("session load failed, continuing with empty history",
			"call_id", b.callID, "error", err)
	} else if found {
		history = state.History
		b.phase = state.Phase
	}

	res := b.deps.Turns.HandleTurn(ctx, b.business.ID, b.callID, transcript, history, b.phase)
	b.phase = res.NextPhase
	b.turnCount++

	b.speak(ctx, res.ReplyText)
	if b.deps.Metrics != nil {
		b.deps.Metrics.TurnDuration.Record(ctx, time.Since(turnStart).Seconds())
	}

	switch res.NextAction {
	case types.ActionHangup:
		b.close(ctx, "call complete")
	case types.ActionTransfer:
		slog.Info("transferring caller",
			"call_id", b.callID, "target", b.business.TransferNumber)
		b.setOutcome("transferred")
		b.close(ctx, "transferred")
	case types.ActionVoicemail:
		slog.Info("routing caller to voicemail", "call_id", b.callID)
		b.setOutcome("voicemail")
		b.close(ctx, "voicemail")
	}
}

// transcribe converts buffered telephone audio to text via a temporary WAV
// file, whose lifecycle the bridge owns.
func (b *Bridge) transcribe(ctx context.Context, mulaw []byte) (string, error) {
	pcm := audio.TelephonyToRecognition(mulaw)

	f, err := os.CreateTemp("", "switchboard-turn-*.wav")
	if err != nil {
		return "", fmt.Errorf("gateway: creating turn WAV: %w", err)
	}
	path := f.Name()
	f.Close()
	defer os.Remove(path)

	if err := audio.WriteWAV(path, pcm, audio.RecognitionRate); err != nil {
		return "", fmt.Errorf("gateway: writing turn WAV: %w", err)
	}

	sttStart := time.Now()
	transcript, err := b.deps.STT.Transcribe(ctx, path)
	if b.deps.Metrics != nil {
		b.deps.Metrics.STTDuration.Record(ctx, time.Since(sttStart).Seconds())
	}
	if err != nil {
		return "", err
	}
	return transcript, nil
}

// speak synthesizes text and streams it back in paced 20ms frames. A total
// synthesis failure plays the apology line instead; only a dead connection
// leaves the caller unanswered.
func (b *Bridge) speak(ctx context.Context, text string) {
	if text == "" {
		return
	}
	buf, err := b.synthesize(ctx, text)
	if err != nil {
		slog.Error("synthesis exhausted, speaking apology",
			"call_id", b.callID, "error", err)
		if buf, err = b.deps.Speaker.Synthesize(ctx, apologyText); err != nil {
			slog.Error("apology synthesis failed, caller gets silence",
				"call_id", b.callID, "error", err)
			return
		}
	}
	b.playback(ctx, buf)
}

// synthesize prefers the streaming path when it is healthy and falls back
// to the provider ladder.
func (b *Bridge) synthesize(ctx context.Context, text string) ([]byte, error) {
	if b.deps.Streamer != nil && b.deps.Streamer.Available() {
		buf, err := b.deps.Streamer.Speak(ctx, text)
		if err == nil {
			return buf, nil
		}
		slog.Warn("streaming synthesis failed, using ladder",
			"call_id", b.callID, "error", err)
	}
	return b.deps.Speaker.Synthesize(ctx, text)
}

// playback writes mu-law audio as paced media frames followed by a mark.
// The speaking flag holds until the gateway echoes the mark, with a
// duration-based fallback in case the echo is lost.
func (b *Bridge) playback(ctx context.Context, mulaw []byte) {
	if len(mulaw) == 0 {
		return
	}
	b.setSpeaking(len(mulaw))

	ticker := time.NewTicker(outFrameInterval)
	defer ticker.Stop()
	for _, frame := range audio.Frames(mulaw, outFrameBytes) {
		data, err := encodeMediaFrame(b.streamID, frame)
		if err != nil {
			slog.Error("encoding outbound frame", "call_id", b.callID, "error", err)
			return
		}
		if err := b.conn.Write(ctx, data); err != nil {
			slog.Warn("outbound audio write failed", "call_id", b.callID, "error", err)
			return
		}
		select {
		case <-ticker.C:
		case <-ctx.Done():
			return
		}
	}

	b.mu.Lock()
	b.markSeq++
	name := fmt.Sprintf("reply-%d", b.markSeq)
	b.mu.Unlock()
	if data, err := encodeMarkFrame(b.streamID, name); err == nil {
		if err := b.conn.Write(ctx, data); err != nil {
			slog.Warn("mark write failed", "call_id", b.callID, "error", err)
		}
	}
}

// setSpeaking raises the speaking flag and arms the fallback timer sized to
// the audio duration plus grace.
func (b *Bridge) setSpeaking(audioBytes int) {
	playTime := time.Duration(audioBytes) * time.Second / time.Duration(audio.TelephonyRate)
	b.mu.Lock()
	defer b.mu.Unlock()
	b.speaking = true
	if b.markWait != nil {
		b.markWait.Stop()
	}
	b.markWait = time.AfterFunc(playTime+speakingGrace, func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		b.speaking = false
		b.markWait = nil
	})
}

func (b *Bridge) isSpeaking() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.speaking
}

func (b *Bridge) currentState() bridgeState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

func (b *Bridge) setState(s bridgeState) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = s
}

func (b *Bridge) setOutcome(outcome string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.outcome = outcome
}

// close transitions to CLOSED so the read loop exits on its next pass.
func (b *Bridge) close(ctx context.Context, reason string) {
	b.setState(stateClosed)
	_ = b.conn.Close(reason)
}

// cleanup records the completed call and releases the bridge exactly once,
// no matter how many close/error paths race into it.
func (b *Bridge) cleanup(ctx context.Context, runErr error) {
	b.cleanupOnce.Do(func() {
		b.setState(stateClosed)
		b.mu.Lock()
		if b.markWait != nil {
			b.markWait.Stop()
			b.markWait = nil
		}
		outcome := b.outcome
		b.mu.Unlock()

		_ = b.conn.Close("closing")
		b.reg.remove(b.key)

		if outcome == "" {
			outcome = "completed"
		}
		if runErr != nil {
			outcome = "error"
		}
		if b.deps.Metrics != nil {
			b.deps.Metrics.RecordCallCompleted(ctx, outcome)
			b.deps.Metrics.ActiveCalls.Add(ctx, -1)
		}

		// A bridge that never saw a start frame has nothing to record.
		if b.callID == "" {
			return
		}
		rec := types.CallRecord{
			CallID:     b.callID,
			BusinessID: b.business.ID,
			FromNumber: b.from,
			ToNumber:   b.to,
			StartedAt:  b.startedAt,
			EndedAt:    time.Now(),
			TurnCount:  b.turnCount,
			FinalPhase: b.phase,
		}
		if err := b.deps.Store.WriteCallRecord(context.WithoutCancel(ctx), rec); err != nil {
			slog.Error("writing call record", "call_id", b.callID, "error", err)
		}
		slog.Info("call closed",
			"call_id", b.callID, "turns", b.turnCount, "outcome", outcome)
	})
}
