package preview

import (
	"bufio"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"
)

// Event is one LiveReload message. Hash changes on every completed build;
// Error is set when that build reported failures.
type Event struct {
	Hash  string `json:"hash"`
	Error bool   `json:"error,omitempty"`
}

// LiveReloadHub manages SSE clients for build-completion broadcasts.
type LiveReloadHub struct {
	mu      sync.RWMutex
	nextID  int
	clients map[int]*lrClient
	closed  bool
	last    Event
}

type lrClient struct {
	id   int
	ch   chan Event
	done chan struct{}
}

// NewLiveReloadHub returns an empty hub.
func NewLiveReloadHub() *LiveReloadHub {
	return &LiveReloadHub{clients: map[int]*lrClient{}}
}

// ServeHTTP implements the SSE endpoint at /livereload.
func (h *LiveReloadHub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	closed := h.closed
	h.mu.RUnlock()
	if closed {
		http.Error(w, "livereload shutting down", http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "stream unsupported", http.StatusInternalServerError)
		return
	}

	client := &lrClient{ch: make(chan Event, 8), done: make(chan struct{})}
	h.mu.Lock()
	client.id = h.nextID
	h.nextID++
	h.clients[client.id] = client
	current := h.last
	h.mu.Unlock()
	defer h.removeClient(client.id)

	// The first event is the baseline; clients reload only when it changes.
	bw := bufio.NewWriter(w)
	if _, err := bw.WriteString(": connected\n\n"); err != nil {
		slog.Debug("livereload write", "error", err)
		return
	}
	if current.Hash != "" {
		if err := writeEvent(bw, current); err != nil {
			slog.Debug("livereload write", "error", err)
			return
		}
	}
	if err := bw.Flush(); err == nil {
		flusher.Flush()
	}

	hb := time.NewTicker(30 * time.Second)
	defer hb.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case <-client.done:
			return
		case <-hb.C:
			if _, err := bw.WriteString(": ping\n\n"); err != nil {
				slog.Debug("livereload ping write", "error", err)
				continue
			}
			_ = bw.Flush()
			flusher.Flush()
		case ev := <-client.ch:
			if err := writeEvent(bw, ev); err != nil {
				slog.Debug("livereload broadcast write", "error", err)
				continue
			}
			_ = bw.Flush()
			flusher.Flush()
		}
	}
}

func writeEvent(bw *bufio.Writer, ev Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	_, err = bw.WriteString("data: " + string(payload) + "\n\n")
	return err
}

func (h *LiveReloadHub) removeClient(id int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if c, ok := h.clients[id]; ok {
		delete(h.clients, id)
		close(c.done)
	}
}

// Clients returns the number of connected clients.
func (h *LiveReloadHub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Broadcast sends ev to all clients, dropping clients whose buffers are full.
// An empty or repeated hash is ignored.
func (h *LiveReloadHub) Broadcast(ev Event) {
	h.mu.Lock()
	if h.closed || ev.Hash == "" || ev.Hash == h.last.Hash {
		h.mu.Unlock()
		return
	}
	h.last = ev
	snapshot := make([]*lrClient, 0, len(h.clients))
	for _, c := range h.clients {
		snapshot = append(snapshot, c)
	}
	h.mu.Unlock()

	dropped := 0
	for _, c := range snapshot {
		select {
		case c.ch <- ev:
		default:
			dropped++
			h.removeClient(c.id)
		}
	}
	slog.Debug("livereload broadcast", "hash", ev.Hash, "clients", len(snapshot), "dropped", dropped)
}

// Shutdown closes all clients and prevents future broadcasts.
func (h *LiveReloadHub) Shutdown() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	clients := h.clients
	h.clients = map[int]*lrClient{}
	h.mu.Unlock()
	for _, c := range clients {
		close(c.done)
	}
}

// LiveReloadScript is served at /livereload.js and injected into pages.
const LiveReloadScript = `(() => {
  if (window.__SITEBUILDER_LR__) return;
  window.__SITEBUILDER_LR__=true;
  function connect(){
    const es = new EventSource('/livereload');
    let current=null;
    es.onmessage = (e)=>{ try { const p=JSON.parse(e.data); if(current===null){ current=p.hash; return;} if(p.hash && p.hash!==current){ if(p.error){ console.warn('[sitebuilder] build reported errors'); } location.reload(); } } catch(_){} };
    es.onerror = ()=>{ console.warn('[sitebuilder] livereload error - retrying'); es.close(); setTimeout(connect,2000); };
  }
  connect();
})();`
