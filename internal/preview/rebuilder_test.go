package preview

import (
	"bufio"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRebuilder_CoalescesRequestsWhileBuilding(t *testing.T) {
	var runs atomic.Int32
	started := make(chan struct{}, 4)
	release := make(chan struct{})
	rb := NewRebuilder(newRunner(func(context.Context) error {
		runs.Add(1)
		started <- struct{}{}
		<-release
		return nil
	}), devSeq, nil)

	ctx, cancel := context.WithCancel(t.Context())
	defer cancel()
	go rb.Run(ctx)

	rb.Request(TriggerWatch)
	<-started
	for range 5 {
		rb.Request(TriggerWatch)
	}
	close(release)

	require.Eventually(t, func() bool { return runs.Load() == 2 }, 2*time.Second, 10*time.Millisecond)
	assert.Never(t, func() bool { return runs.Load() > 2 }, 200*time.Millisecond, 20*time.Millisecond)
}

func TestRebuilder_NotifiesAfterCompletion(t *testing.T) {
	var mu sync.Mutex
	var order []string
	rb := NewRebuilder(newRunner(func(context.Context) error {
		time.Sleep(20 * time.Millisecond)
		mu.Lock()
		order = append(order, "task")
		mu.Unlock()
		return nil
	}), devSeq, nil)
	rb.OnComplete(func(res Result) {
		mu.Lock()
		order = append(order, "complete:"+res.Trigger)
		mu.Unlock()
	})

	res := rb.Rebuild(t.Context(), TriggerSchedule)
	require.False(t, res.Failed())
	require.NotNil(t, res.Report)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"task", "complete:schedule"}, order)

	last, ok := rb.Last()
	require.True(t, ok)
	assert.Equal(t, res.Report.ID, last.Report.ID)
}

func TestRebuilder_LastBeforeAnyBuild(t *testing.T) {
	rb := NewRebuilder(newRunner(func(context.Context) error { return nil }), devSeq, nil)
	_, ok := rb.Last()
	assert.False(t, ok)
}

// The LiveReload event for a rebuild carries the finished build's id, so a
// reload can never race the build that produced it.
func TestServer_BroadcastsBuildIDAfterRebuild(t *testing.T) {
	cfg := testConfig(t)
	finished := make(chan struct{})
	rb := NewRebuilder(newRunner(func(context.Context) error { return nil }), devSeq, nil)
	server := NewServer(cfg, rb)
	rb.Rebuild(t.Context(), TriggerInitial)

	srv := httptest.NewServer(server.Handler())
	defer srv.Close()

	ctx, cancel := context.WithTimeout(t.Context(), 3*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/livereload", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	require.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	var ids []string
	go func() {
		defer close(finished)
		reader := bufio.NewReader(resp.Body)
		for len(ids) < 2 {
			line, err := reader.ReadString('\n')
			if err != nil {
				return
			}
			if strings.HasPrefix(line, "data: ") {
				ids = append(ids, line)
			}
		}
	}()

	require.Eventually(t, func() bool { return server.Hub().Clients() == 1 }, time.Second, 10*time.Millisecond)
	res := rb.Rebuild(t.Context(), TriggerWatch)

	select {
	case <-finished:
	case <-ctx.Done():
		t.Fatal("did not receive rebuild event")
	}
	require.Len(t, ids, 2)
	assert.Contains(t, ids[1], res.Report.ID)
	assert.NotEqual(t, ids[0], ids[1])
}
