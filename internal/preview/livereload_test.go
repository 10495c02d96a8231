package preview

import (
	"bufio"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readUntil(t *testing.T, reader *bufio.Reader, needle string, within time.Duration) bool {
	t.Helper()
	deadline := time.Now().Add(within)
	for time.Now().Before(deadline) {
		line, err := reader.ReadString('\n')
		if err != nil {
			return false
		}
		if strings.Contains(line, needle) {
			return true
		}
	}
	return false
}

func connect(t *testing.T, url string) (*bufio.Reader, func()) {
	t.Helper()
	ctx, cancel := context.WithTimeout(t.Context(), 2*time.Second)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return bufio.NewReader(resp.Body), func() {
		_ = resp.Body.Close()
		cancel()
	}
}

func TestLiveReload_InitialConnectReceivesBaseline(t *testing.T) {
	hub := NewLiveReloadHub()
	defer hub.Shutdown()
	hub.Broadcast(Event{Hash: "abc123"})

	server := httptest.NewServer(hub)
	defer server.Close()

	reader, done := connect(t, server.URL)
	defer done()
	assert.True(t, readUntil(t, reader, `{"hash":"abc123"}`, time.Second))
}

func TestLiveReload_BroadcastSendsErrorFlag(t *testing.T) {
	hub := NewLiveReloadHub()
	defer hub.Shutdown()

	server := httptest.NewServer(hub)
	defer server.Close()

	reader, done := connect(t, server.URL)
	defer done()
	require.True(t, readUntil(t, reader, ": connected", time.Second))
	require.Eventually(t, func() bool { return hub.Clients() == 1 }, time.Second, 10*time.Millisecond)

	hub.Broadcast(Event{Hash: "def456", Error: true})
	assert.True(t, readUntil(t, reader, `{"hash":"def456","error":true}`, time.Second))
}

func TestLiveReload_DuplicateAndEmptyIgnored(t *testing.T) {
	hub := NewLiveReloadHub()
	defer hub.Shutdown()

	hub.Broadcast(Event{Hash: "same"})
	hub.Broadcast(Event{Hash: "same", Error: true})
	hub.Broadcast(Event{})
	assert.Equal(t, Event{Hash: "same"}, hub.last)
}

func TestLiveReload_ShutdownRejectsClients(t *testing.T) {
	hub := NewLiveReloadHub()
	hub.Shutdown()

	rec := httptest.NewRecorder()
	hub.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/livereload", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestInjectLiveReload(t *testing.T) {
	tests := []struct {
		name        string
		path        string
		contentType string
		body        string
		want        string
	}{
		{"page", "/index.html", "text/html; charset=utf-8", "<p>x</p></body>", "<p>x</p>" + scriptTag + "</body>"},
		{"no body tag", "/", "text/html", "<p>x</p>", "<p>x</p>" + scriptTag},
		{"asset path", "/app.css", "text/css", "a{}</body>", "a{}</body>"},
		{"non html response", "/feed", "application/json", `{"a":1}`, `{"a":1}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := injectLiveReload(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.Header().Set("Content-Type", tt.contentType)
				_, _ = w.Write([]byte(tt.body))
			}))
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))
			assert.Equal(t, tt.want, rec.Body.String())
		})
	}
}
