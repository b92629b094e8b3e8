package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"clint/device/pic"
	"clint/sim/api"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type fakeBoard struct {
	mu     sync.Mutex
	raised []int
	status []api.LineStatus
	panics bool
}

func (b *fakeBoard) Raise(line int) error {
	if b.panics {
		panic("boom")
	}
	if line < 0 || line >= 4 {
		return fmt.Errorf("%w: %d", pic.ErrNoSuchLine, line)
	}

	b.mu.Lock()
	b.raised = append(b.raised, line)
	b.mu.Unlock()
	return nil
}

func (b *fakeBoard) Status() []api.LineStatus {
	return b.status
}

func newTestServer(t *testing.T, b Board) (*httptest.Server, *observer.ObservedLogs) {
	t.Helper()

	core, logs := observer.New(zap.InfoLevel)
	metrics := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("irqsim_handlers_installed 2\n"))
	})

	srv := httptest.NewServer(NewRouter(b, metrics, zap.New(core)))
	t.Cleanup(srv.Close)
	return srv, logs
}

func TestRaise(t *testing.T) {
	b := &fakeBoard{}
	srv, logs := newTestServer(t, b)

	specs := []struct {
		path   string
		status int
	}{
		{"/irq/2", http.StatusAccepted},
		{"/irq/0", http.StatusAccepted},
		{"/irq/9", http.StatusNotFound},
		{"/irq/-1", http.StatusNotFound},
		{"/irq/abc", http.StatusBadRequest},
	}

	for _, spec := range specs {
		t.Run(spec.path, func(t *testing.T) {
			res, err := http.Post(srv.URL+spec.path, "application/json", nil)
			require.NoError(t, err)
			defer res.Body.Close()

			assert.Equal(t, spec.status, res.StatusCode)
			assert.Equal(t, "application/json", res.Header.Get("Content-Type"))

			if spec.status == http.StatusAccepted {
				var body api.RaiseResponse
				require.NoError(t, json.NewDecoder(res.Body).Decode(&body))
				assert.Equal(t, "raised", body.Status)
			} else {
				var body api.ErrorResponse
				require.NoError(t, json.NewDecoder(res.Body).Decode(&body))
				assert.NotEmpty(t, body.Error)
			}
		})
	}

	assert.Equal(t, []int{2, 0}, b.raised)
	assert.Equal(t, len(specs), logs.FilterMessage("request").Len())
}

func TestRaiseWrongMethod(t *testing.T) {
	srv, _ := newTestServer(t, &fakeBoard{})

	res, err := http.Get(srv.URL + "/irq/1")
	require.NoError(t, err)
	res.Body.Close()

	assert.Equal(t, http.StatusMethodNotAllowed, res.StatusCode)
}

func TestHandlers(t *testing.T) {
	exp := []api.LineStatus{
		{Line: 0, Source: "systick", Handler: api.HandlerBase, Ticks: 42},
		{Line: 3, Source: "uart", Handler: api.HandlerOverride, Masked: true},
	}
	srv, _ := newTestServer(t, &fakeBoard{status: exp})

	res, err := http.Get(srv.URL + "/handlers")
	require.NoError(t, err)
	defer res.Body.Close()

	require.Equal(t, http.StatusOK, res.StatusCode)

	var got []api.LineStatus
	require.NoError(t, json.NewDecoder(res.Body).Decode(&got))
	assert.Equal(t, exp, got)
}

func TestMetrics(t *testing.T) {
	srv, _ := newTestServer(t, &fakeBoard{})

	res, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	res.Body.Close()

	assert.Equal(t, http.StatusOK, res.StatusCode)
}

func TestPanicRecovered(t *testing.T) {
	srv, logs := newTestServer(t, &fakeBoard{panics: true})

	res, err := http.Post(srv.URL+"/irq/1", "application/json", nil)
	require.NoError(t, err)
	res.Body.Close()

	assert.Equal(t, http.StatusInternalServerError, res.StatusCode)
	require.Equal(t, 1, logs.FilterMessage("request").Len())
	assert.Equal(t, int64(http.StatusInternalServerError), logs.FilterMessage("request").All()[0].ContextMap()["status"])
}
