package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/HerbHall/capa/internal/capa"
	"github.com/HerbHall/capa/internal/event"
	"github.com/HerbHall/capa/internal/testutil"
	"github.com/HerbHall/capa/pkg/anomaly"
	"github.com/HerbHall/capa/pkg/plugin"
	"github.com/HerbHall/capa/pkg/plugin/plugintest"
	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// wireMessage decodes a Message keeping Data raw.
type wireMessage struct {
	Type  MessageType     `json:"type"`
	RunID string          `json:"run_id"`
	Data  json.RawMessage `json:"data"`
}

func newTestServer(t *testing.T, bus plugin.EventBus) (*Module, *httptest.Server) {
	t.Helper()
	detector := capa.NewDetector(capa.DefaultConfig(), zaptest.NewLogger(t), nil, bus)
	m := New(detector)
	require.NoError(t, m.Init(context.Background(), plugintest.LoggerOnly(t, pluginName)))

	mux := http.NewServeMux()
	for _, r := range m.Routes() {
		mux.HandleFunc(r.Method+" "+r.Path, r.Handler)
	}
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return m, srv
}

func dial(t *testing.T, srv *httptest.Server, path string) *websocket.Conn {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + path
	conn, _, err := websocket.Dial(ctx, url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.CloseNow() })
	return conn
}

func TestContract(t *testing.T) {
	plugintest.TestPluginContract(t, func() plugin.Plugin { return New(nil) }, nil)
}

func TestDetectStream(t *testing.T) {
	_, srv := newTestServer(t, nil)
	conn := dial(t, srv, "/detect")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	series := testutil.NewSeries(100, testutil.WithShift(40, 50, 10))
	require.NoError(t, wsjson.Write(ctx, conn, testutil.NewDetectRequest(series)))

	var steps []anomaly.Step
	for {
		var msg wireMessage
		require.NoError(t, wsjson.Read(ctx, conn, &msg))

		if msg.Type == MessageDetectStep {
			var s anomaly.Step
			require.NoError(t, json.Unmarshal(msg.Data, &s))
			steps = append(steps, s)
			continue
		}

		require.Equal(t, MessageDetectCompleted, msg.Type, string(msg.Data))
		var resp anomaly.DetectResponse
		require.NoError(t, json.Unmarshal(msg.Data, &resp))
		assert.Equal(t, msg.RunID, resp.RunID)
		assert.True(t, resp.Online)
		assert.Empty(t, resp.Steps)
		assert.Equal(t, []anomaly.Anomaly{{Start: 40, End: 50, Kind: anomaly.KindCollective}}, resp.Anomalies)
		break
	}

	require.Len(t, steps, 100)
	assert.Equal(t, 50, steps[49].T)
	assert.Equal(t, 40, steps[49].Start)
	assert.Equal(t, anomaly.KindCollective, steps[49].Kind)
}

func TestDetectStream_InvalidRequest(t *testing.T) {
	_, srv := newTestServer(t, nil)
	conn := dial(t, srv, "/detect")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req := testutil.NewDetectRequest(testutil.NewSeries(20), testutil.WithLengths(8, 4))
	require.NoError(t, wsjson.Write(ctx, conn, req))

	var msg wireMessage
	require.NoError(t, wsjson.Read(ctx, conn, &msg))
	require.Equal(t, MessageDetectError, msg.Type)

	var data ErrorData
	require.NoError(t, json.Unmarshal(msg.Data, &data))
	assert.Equal(t, http.StatusBadRequest, data.Status)
	assert.Contains(t, data.Error, "min length")
}

func TestDetectStream_Unavailable(t *testing.T) {
	m := New(nil)
	require.NoError(t, m.Init(context.Background(), plugintest.LoggerOnly(t, pluginName)))

	w := httptest.NewRecorder()
	m.handleDetectStream(w, httptest.NewRequest(http.MethodGet, "/detect", http.NoBody))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "degraded", m.Health(context.Background()).Status)
}

func TestFeed(t *testing.T) {
	m, srv := newTestServer(t, nil)
	conn := dial(t, srv, "/detections")

	require.Eventually(t, func() bool { return m.hub.ClientCount() == 1 }, 5*time.Second, 10*time.Millisecond)

	summary := anomaly.DetectionSummary{RunID: "run-42", N: 100, Anomalies: 1, Collective: 1}
	m.handleDetectionCompleted(context.Background(), plugin.Event{
		Topic:     capa.TopicDetectionCompleted,
		Timestamp: time.Now(),
		Payload:   summary,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	var msg wireMessage
	require.NoError(t, wsjson.Read(ctx, conn, &msg))
	assert.Equal(t, MessageDetectionCompleted, msg.Type)
	assert.Equal(t, "run-42", msg.RunID)

	var got anomaly.DetectionSummary
	require.NoError(t, json.Unmarshal(msg.Data, &got))
	assert.Equal(t, summary, got)

	require.NoError(t, m.Stop(context.Background()))
	assert.Equal(t, 0, m.hub.ClientCount())
}

func TestFeed_FromBus(t *testing.T) {
	bus := event.NewBus(zaptest.NewLogger(t))
	m, srv := newTestServer(t, bus)
	for _, sub := range m.Subscriptions() {
		bus.Subscribe(sub.Topic, sub.Handler)
	}
	conn := dial(t, srv, "/detections")
	require.Eventually(t, func() bool { return m.hub.ClientCount() == 1 }, 5*time.Second, 10*time.Millisecond)

	detector := capa.NewDetector(capa.DefaultConfig(), zaptest.NewLogger(t), nil, bus)
	resp, err := detector.Detect(context.Background(), testutil.NewDetectRequest(testutil.NewSeries(30, testutil.WithSpike(10, 50))), nil)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	var msg wireMessage
	require.NoError(t, wsjson.Read(ctx, conn, &msg))
	assert.Equal(t, resp.RunID, msg.RunID)
}
