package ws

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/HerbHall/capa/internal/capa"
	"github.com/HerbHall/capa/pkg/anomaly"
	"github.com/HerbHall/capa/pkg/plugin"
	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Routes implements plugin.HTTPProvider.
func (m *Module) Routes() []plugin.Route {
	return []plugin.Route{
		{Method: "GET", Path: "/detect", Handler: m.handleDetectStream, Detection: true},
		{Method: "GET", Path: "/detections", Handler: m.handleFeed},
	}
}

func (m *Module) accept(w http.ResponseWriter, r *http.Request) (*websocket.Conn, error) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: m.cfg.OriginPatterns,
	})
	if err != nil {
		m.logger.Debug("websocket accept failed", zap.Error(err))
		return nil, err
	}
	conn.SetReadLimit(m.cfg.MaxMessageSize)
	return conn, nil
}

// handleDetectStream reads one DetectRequest, runs it online, and sends a
// detect.step message per observation followed by detect.completed or
// detect.error. The run is cancelled if the client goes away.
func (m *Module) handleDetectStream(w http.ResponseWriter, r *http.Request) {
	if m.detector == nil {
		http.Error(w, "streaming detection unavailable", http.StatusServiceUnavailable)
		return
	}
	conn, err := m.accept(w, r)
	if err != nil {
		return
	}
	defer conn.CloseNow()

	var req anomaly.DetectRequest
	if err := wsjson.Read(r.Context(), conn, &req); err != nil {
		m.logger.Debug("read detect request", zap.Error(err))
		conn.Close(websocket.StatusUnsupportedData, "expected a detect request")
		return
	}

	// Further client frames are not expected; CloseRead cancels ctx when the
	// client disconnects.
	ctx := conn.CloseRead(r.Context())

	resp, err := m.detector.Detect(ctx, req, func(s anomaly.Step) error {
		return writeMessage(ctx, conn, m.cfg.WriteTimeout, Message{
			Type:      MessageDetectStep,
			Timestamp: time.Now(),
			Data:      StepData(s),
		})
	})
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		_ = writeMessage(ctx, conn, m.cfg.WriteTimeout, Message{
			Type:      MessageDetectError,
			Timestamp: time.Now(),
			Data:      ErrorData{Error: err.Error(), Status: capa.StatusFor(err)},
		})
		conn.Close(websocket.StatusNormalClosure, "detection failed")
		return
	}

	resp.Steps = nil
	if err := writeMessage(ctx, conn, m.cfg.WriteTimeout, Message{
		Type:      MessageDetectCompleted,
		RunID:     resp.RunID,
		Timestamp: resp.FinishedAt,
		Data:      CompletedData(*resp),
	}); err != nil {
		return
	}
	conn.Close(websocket.StatusNormalClosure, "")
}

// handleFeed streams a detection.completed message for every run finished
// while the client is connected.
func (m *Module) handleFeed(w http.ResponseWriter, r *http.Request) {
	conn, err := m.accept(w, r)
	if err != nil {
		return
	}

	client := &Client{
		conn:   conn,
		id:     uuid.NewString(),
		send:   make(chan Message, m.cfg.SendBuffer),
		logger: m.logger,
	}
	m.hub.Register(client)

	ctx, cancel := context.WithCancel(r.Context())
	done := make(chan struct{})
	go func() {
		defer close(done)
		client.writePump(ctx, m.cfg.WriteTimeout)
		cancel()
	}()

	client.readPump(ctx)

	m.hub.Unregister(client)
	cancel()
	<-done
	if err := conn.Close(websocket.StatusNormalClosure, ""); err != nil && !errors.Is(err, context.Canceled) {
		m.logger.Debug("close feed connection", zap.Error(err))
	}
}
