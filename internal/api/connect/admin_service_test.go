package connect

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"connectrpc.com/connect"
	"github.com/faiface/beep"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osa030/goalhorn/internal/app/dispatch"
	"github.com/osa030/goalhorn/internal/app/executor"
	"github.com/osa030/goalhorn/internal/app/playback"
	"github.com/osa030/goalhorn/internal/infra/audio"
	"github.com/osa030/goalhorn/internal/infra/clipstore"
)

const testToken = "s3cret"

type mockDispatcher struct {
	mu     sync.Mutex
	tokens []string
}

func (m *mockDispatcher) Dispatch(ctx context.Context, token string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tokens = append(m.tokens, token)
}

func (m *mockDispatcher) Commands() []dispatch.Command {
	return []dispatch.Command{{Token: "all_stop", Action: "stop_all"}}
}

func (m *mockDispatcher) received() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.tokens...)
}

type fixedCount int

func (c fixedCount) SubscriberCount() int { return int(c) }

type mutedOpener struct{}

func (mutedOpener) OpenLine(clip *clipstore.Clip, loop bool) (audio.Line, error) {
	return audio.NewMutedLine(clip.Duration(), loop, -80, 6), nil
}

func newTestBoard(t *testing.T) *playback.Board {
	t.Helper()
	exec := executor.New(executor.Config{Workers: 1, QueueSize: 4})
	t.Cleanup(exec.Close)

	format := beep.Format{SampleRate: 44100, NumChannels: 2, Precision: 2}
	clip := clipstore.FromStreamer("crowd.wav", format, beep.Silence(format.SampleRate.N(time.Second)))
	board, err := playback.NewBoard(playback.BoardConfig{
		Slots:          map[string]playback.SlotSpec{"continuous": {Clip: clip, Loop: true}},
		ContinuousSlot: "continuous",
		Ramp:           playback.RampConfig{Steps: 10, StepDuration: time.Millisecond, HeadroomDB: 10},
	}, mutedOpener{}, exec, nil)
	require.NoError(t, err)
	return board
}

func newTestServer(t *testing.T) (*httptest.Server, *mockDispatcher, *playback.Board) {
	t.Helper()
	d := &mockDispatcher{}
	board := newTestBoard(t)

	mux := http.NewServeMux()
	path, handler := NewAdminServiceHandler(
		NewAdminService(d, board, fixedCount(2)),
		connect.WithInterceptors(NewAdminAuthInterceptor(testToken)),
	)
	mux.Handle(path, handler)

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, d, board
}

func TestAdminService_Dispatch(t *testing.T) {
	srv, d, _ := newTestServer(t)
	client := NewAdminClient(srv.Client(), srv.URL, testToken)

	require.NoError(t, client.Dispatch(context.Background(), " goal_release "))
	assert.Equal(t, []string{"goal_release"}, d.received())

	err := client.Dispatch(context.Background(), "  ")
	assert.Equal(t, connect.CodeInvalidArgument, connect.CodeOf(err))
	assert.Len(t, d.received(), 1)
}

func TestAdminService_GetStatus(t *testing.T) {
	srv, _, board := newTestServer(t)
	client := NewAdminClient(srv.Client(), srv.URL, testToken)

	board.Loop().EnsureEngaged()

	status, err := client.GetStatus(context.Background())
	require.NoError(t, err)
	assert.Equal(t, true, status["loop_engaged"])
	assert.Equal(t, float64(2), status["observers"])
	assert.Equal(t, []any{"all_stop"}, status["commands"])

	slots, ok := status["slots"].([]any)
	require.True(t, ok)
	require.Len(t, slots, 1)
	slot := slots[0].(map[string]any)
	assert.Equal(t, "continuous", slot["name"])
	assert.Equal(t, "playing", slot["state"])
	assert.Equal(t, float64(-4), slot["gain_db"])
}

func TestAdminAuthInterceptor(t *testing.T) {
	srv, d, _ := newTestServer(t)

	tests := []struct {
		name  string
		token string
	}{
		{name: "missing token", token: ""},
		{name: "wrong token", token: "guess"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := NewAdminClient(srv.Client(), srv.URL, tt.token)
			err := client.Dispatch(context.Background(), "all_stop")
			assert.Equal(t, connect.CodeUnauthenticated, connect.CodeOf(err))

			_, err = client.GetStatus(context.Background())
			assert.Equal(t, connect.CodeUnauthenticated, connect.CodeOf(err))
		})
	}
	assert.Empty(t, d.received())
}

func TestAdminServiceHandler_UnknownProcedure(t *testing.T) {
	srv, _, _ := newTestServer(t)

	resp, err := srv.Client().Post(srv.URL+"/"+AdminServiceName+"/Explode", "application/proto", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
