package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"audio-transcriber/pkg/models"
	"audio-transcriber/pkg/storage"
)

const statusPollInterval = 500 * time.Millisecond

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type WebSocketMessage struct {
	Type       string          `json:"type"`
	JobID      string          `json:"job_id,omitempty"`
	Status     string          `json:"status,omitempty"`
	ChunksDone int             `json:"chunks_done,omitempty"`
	ChunkCount int             `json:"chunk_count,omitempty"`
	Data       json.RawMessage `json:"data,omitempty"`
	Error      string          `json:"error,omitempty"`
}

// wsConn serialises writes; gorilla allows one concurrent writer.
type wsConn struct {
	*websocket.Conn
	mu sync.Mutex
}

func (c *wsConn) send(msg WebSocketMessage) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.WriteJSON(msg)
}

// WebSocketHandler streams job progress. Clients send
// {"type":"subscribe","job_id":...} and receive status_update messages until
// processing_complete or processing_failed.
func (h *Handlers) WebSocketHandler(w http.ResponseWriter, r *http.Request) {
	raw, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	conn := &wsConn{Conn: raw}
	defer conn.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	for {
		var msg WebSocketMessage
		if err := conn.ReadJSON(&msg); err != nil {
			break
		}

		switch msg.Type {
		case "subscribe":
			h.handleSubscribe(ctx, conn, &msg)
		case "ping":
			conn.send(WebSocketMessage{Type: "pong"})
		default:
			conn.send(WebSocketMessage{
				Type:  "error",
				Error: "Unknown message type",
			})
		}
	}
}

func (h *Handlers) handleSubscribe(ctx context.Context, conn *wsConn, msg *WebSocketMessage) {
	if msg.JobID == "" {
		conn.send(WebSocketMessage{
			Type:  "error",
			Error: "job_id is required",
		})
		return
	}
	if _, err := h.pipeline.Job(msg.JobID); err != nil {
		conn.send(WebSocketMessage{
			Type:  "error",
			JobID: msg.JobID,
			Error: err.Error(),
		})
		return
	}

	h.logger.Debug("websocket subscribed", zap.String("job_id", msg.JobID))
	go h.monitorJob(ctx, conn, msg.JobID)
}

func (h *Handlers) monitorJob(ctx context.Context, conn *wsConn, jobID string) {
	ticker := time.NewTicker(statusPollInterval)
	defer ticker.Stop()

	type progress struct {
		status      models.ProcessingStatus
		done, total int
	}
	var last progress
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			job, err := h.pipeline.Job(jobID)
			if err != nil {
				if !errors.Is(err, storage.ErrJobNotFound) {
					conn.send(WebSocketMessage{
						Type:  "error",
						JobID: jobID,
						Error: err.Error(),
					})
				}
				return
			}

			current := progress{status: job.Status, done: job.ChunksDone, total: job.ChunkCount}
			if current != last {
				update := WebSocketMessage{
					Type:       "status_update",
					JobID:      jobID,
					Status:     string(job.Status),
					ChunksDone: job.ChunksDone,
					ChunkCount: job.ChunkCount,
				}
				if conn.send(update) != nil {
					return
				}
				last = current
			}

			switch job.Status {
			case models.StatusCompleted:
				msg := completionMessage(jobID, job)
				if msg.Type == "processing_failed" {
					h.logger.Error("failed to encode finished job",
						zap.String("job_id", jobID),
						zap.String("error", msg.Error),
					)
				}
				conn.send(msg)
				return
			case models.StatusFailed:
				conn.send(WebSocketMessage{
					Type:  "processing_failed",
					JobID: jobID,
					Error: job.Error,
				})
				return
			}
		}
	}
}

// completionMessage carries the finished job, or a processing_failed message
// when it cannot be encoded.
func completionMessage(jobID string, v interface{}) WebSocketMessage {
	data, err := json.Marshal(v)
	if err != nil {
		return WebSocketMessage{
			Type:  "processing_failed",
			JobID: jobID,
			Error: fmt.Sprintf("encoding result: %v", err),
		}
	}
	return WebSocketMessage{
		Type:  "processing_complete",
		JobID: jobID,
		Data:  data,
	}
}
