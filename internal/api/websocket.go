package api

import (
	"log"
	"net/http"

	"trading-bot/internal/events"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// websocket streams every bus event to the client as JSON. A slow
// client gets events dropped rather than backing up the bus.
func (s *Server) websocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("ws upgrade error: %v", err)
		return
	}
	defer conn.Close()

	if s.Bus == nil {
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"error":"bus not ready"}`))
		return
	}

	out := make(chan events.Event, 100)
	forward := func(e events.Event) error {
		select {
		case out <- e:
		default:
			// drop if the client is slow; keep the bus non-blocking
		}
		return nil
	}
	unsub := s.Bus.SubscribeAll(forward)
	defer unsub()

	// Reader goroutine: only there to observe the close.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-closed:
			return
		case e := <-out:
			if err := conn.WriteJSON(e); err != nil {
				log.Printf("ws write error: %v", err)
				return
			}
		}
	}
}
