package web

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

const (
	writeWait  = 10 * time.Second
	pingPeriod = 30 * time.Second
)

// handleDetectionStream upgrades the connection and relays live
// detection batches for one task until the client disconnects.
func (s *Server) handleDetectionStream(c *gin.Context) {
	id, ok := s.taskID(c)
	if !ok {
		return
	}
	if _, err := s.store.GetTask(c.Request.Context(), id); err != nil {
		s.storeError(c, err)
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed", "task_id", id, "error", err)
		return
	}
	defer conn.Close()

	sub := s.hub.Subscribe(id)
	defer sub.Cancel()
	s.log.Debug("detection stream opened", "task_id", id)

	// Drain client frames so pong handling and close detection work.
	clientGone := make(chan struct{})
	go func() {
		defer close(clientGone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	pings := time.NewTicker(pingPeriod)
	defer pings.Stop()

	for {
		select {
		case <-clientGone:
			return
		case <-pings.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case batch, open := <-sub.C:
			if !open {
				return
			}
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(batch); err != nil {
				s.log.Debug("detection stream closed", "task_id", id, "error", err)
				return
			}
		}
	}
}
