package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/coder/websocket"
	"github.com/google/uuid"
)

// Acceptor upgrades incoming media-stream connections and owns the bridge
// registry. Each accepted connection gets exactly one bridge, registered
// under a temporary key until the start frame supplies the real call id.
type Acceptor struct {
	deps BridgeDeps

	mu      sync.Mutex
	bridges map[string]*Bridge
}

var _ registry = (*Acceptor)(nil)

// NewAcceptor creates an acceptor for the given bridge collaborators.
func NewAcceptor(deps BridgeDeps) *Acceptor {
	return &Acceptor{
		deps:    deps,
		bridges: make(map[string]*Bridge),
	}
}

// Register installs the media-stream endpoint on mux.
func (a *Acceptor) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /media-stream", a.handleMediaStream)
}

func (a *Acceptor) handleMediaStream(w http.ResponseWriter, r *http.Request) {
	wsc, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		// The telephony gateway is not a browser; origin checks do not
		// apply to its connections.
		InsecureSkipVerify: true,
	})
	if err != nil {
		slog.Warn("websocket accept failed", "remote", r.RemoteAddr, "error", err)
		return
	}

	key := uuid.NewString()
	bridge := newBridge(key, &wsMediaConn{conn: wsc}, a.deps, a)
	a.mu.Lock()
	a.bridges[key] = bridge
	a.mu.Unlock()

	slog.Debug("media stream accepted", "remote", r.RemoteAddr, "key", key)
	if err := bridge.Run(r.Context()); err != nil {
		slog.Warn("bridge ended with error", "key", bridge.key, "error", err)
	}
}

// rekey moves a bridge from its temporary key to the call id announced in
// the start frame. A second bridge claiming an id already in use is
// rejected, keeping at most one bridge per call.
func (a *Acceptor) rekey(oldKey, id string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	bridge, ok := a.bridges[oldKey]
	if !ok {
		return fmt.Errorf("gateway: no bridge under key %q", oldKey)
	}
	if oldKey == id {
		return nil
	}
	if _, exists := a.bridges[id]; exists {
		return fmt.Errorf("gateway: call %q already has a bridge", id)
	}
	delete(a.bridges, oldKey)
	a.bridges[id] = bridge
	return nil
}

// remove drops a bridge from the registry. Safe to call repeatedly.
func (a *Acceptor) remove(key string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.bridges, key)
}

// ActiveBridges reports how many calls are currently bridged.
func (a *Acceptor) ActiveBridges() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.bridges)
}

// Shutdown closes every live bridge. Used during process shutdown; new
// connections are stopped by closing the HTTP server first.
func (a *Acceptor) Shutdown(ctx context.Context) {
	a.mu.Lock()
	bridges := make([]*Bridge, 0, len(a.bridges))
	for _, b := range a.bridges {
		bridges = append(bridges, b)
	}
	a.mu.Unlock()

	for _, b := range bridges {
		b.close(ctx, "server shutting down")
	}
}

// wsMediaConn adapts a coder/websocket connection to mediaConn.
type wsMediaConn struct {
	conn *websocket.Conn
}

var _ mediaConn = (*wsMediaConn)(nil)

func (w *wsMediaConn) Read(ctx context.Context) ([]byte, error) {
	_, data, err := w.conn.Read(ctx)
	return data, err
}

func (w *wsMediaConn) Write(ctx context.Context, data []byte) error {
	return w.conn.Write(ctx, websocket.MessageText, data)
}

func (w *wsMediaConn) Close(reason string) error {
	return w.conn.Close(websocket.StatusNormalClosure, reason)
}
