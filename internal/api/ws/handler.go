package ws

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/dashworker/internal/bootstrap"
	"github.com/GriffinCanCode/dashworker/internal/infrastructure/logging"
	"github.com/GriffinCanCode/dashworker/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/dashworker/internal/protocol"
	"github.com/GriffinCanCode/dashworker/internal/shared/id"
)

const (
	writeTimeout   = 10 * time.Second
	maxMessageSize = 16 << 20
	queueSize      = 256
)

// WorkerFactory creates the worker for one page session.
type WorkerFactory func(poster protocol.Poster, logger *logging.Logger) *bootstrap.Worker

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		return true // CORS middleware decides
	},
}

// Handler serves worker sessions over WebSocket. Each connection gets its
// own worker and runtime.
type Handler struct {
	newWorker WorkerFactory
	logger    *logging.Logger
	metrics   *monitoring.Metrics
	active    atomic.Int64
}

// NewHandler creates a new WebSocket handler. metrics may be nil.
func NewHandler(newWorker WorkerFactory, logger *logging.Logger, metrics *monitoring.Metrics) *Handler {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Handler{
		newWorker: newWorker,
		logger:    logger.Named("ws"),
		metrics:   metrics,
	}
}

// Sessions returns the number of connected pages.
func (h *Handler) Sessions() int64 {
	return h.active.Load()
}

// HandleConnection upgrades the request and runs the session until the page
// disconnects.
func (h *Handler) HandleConnection(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("WebSocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()
	conn.SetReadLimit(maxMessageSize)

	sessionID := id.NewSessionID()
	logger := h.logger.With(zap.String("session", string(sessionID)))

	h.active.Add(1)
	if h.metrics != nil {
		h.metrics.IncSessions()
	}
	defer func() {
		h.active.Add(-1)
		if h.metrics != nil {
			h.metrics.DecSessions()
		}
	}()

	logger.Info("Session started", zap.String("remote", c.ClientIP()))
	h.serve(conn, logger)
	if started, err := id.Timestamp(sessionID.String()); err == nil {
		logger.Info("Session ended", zap.Duration("duration", time.Since(started)))
	} else {
		logger.Info("Session ended")
	}
}

func (h *Handler) serve(conn *websocket.Conn, logger *logging.Logger) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	queue := protocol.NewQueue(queueSize)
	worker := h.newWorker(queue, logger)

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		h.write(conn, queue, cancel, logger)
	}()

	var tasks sync.WaitGroup
	inbound := make(chan protocol.Message, queueSize)

	tasks.Add(1)
	go func() {
		defer tasks.Done()
		if err := worker.Start(ctx); err != nil {
			logger.Error("Worker startup failed", zap.Error(err))
		}
	}()

	tasks.Add(1)
	go func() {
		defer tasks.Done()
		for {
			select {
			case msg := <-inbound:
				// Failures are already reported to the page.
				_ = worker.OnMessage(ctx, msg)
			case <-ctx.Done():
				return
			}
		}
	}()

	h.read(ctx, conn, queue, inbound, logger)

	cancel()
	tasks.Wait()
	if err := worker.Close(); err != nil {
		logger.Warn("Failed to close worker", zap.Error(err))
	}
	queue.Close()
	<-writerDone
}

// read decodes frames until the connection fails or ctx ends.
func (h *Handler) read(ctx context.Context, conn *websocket.Conn, queue *protocol.Queue, inbound chan<- protocol.Message, logger *logging.Logger) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Warn("WebSocket read error", zap.Error(err))
			}
			return
		}

		msg, err := protocol.Decode(data)
		if err != nil {
			logger.Warn("Dropping malformed frame", zap.Error(err))
			_ = queue.Post(protocol.Status("Malformed message: " + err.Error()))
			continue
		}

		select {
		case inbound <- msg:
		case <-ctx.Done():
			return
		}
	}
}

// write drains the queue onto the connection. After a write error it keeps
// draining so posters never block.
func (h *Handler) write(conn *websocket.Conn, queue *protocol.Queue, cancel context.CancelFunc, logger *logging.Logger) {
	failed := false
	for msg := range queue.Messages() {
		if failed {
			continue
		}
		data, err := protocol.Encode(msg)
		if err != nil {
			logger.Error("Failed to encode message", zap.String("type", string(msg.Type)), zap.Error(err))
			continue
		}
		_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			logger.Warn("WebSocket write error", zap.Error(err))
			failed = true
			cancel()
			_ = conn.Close() // unblocks the reader
		}
	}
	if failed {
		return
	}
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
}
