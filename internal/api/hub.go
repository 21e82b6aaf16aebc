package api

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/danmuck/swarmctl/internal/coordinator"
	"github.com/danmuck/swarmctl/internal/logs"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = 54 * time.Second
	wsSendBuffer = 16
)

// FeedbackHub fans tick feedback out to websocket clients. A slow client
// loses frames rather than slowing the tick.
type FeedbackHub struct {
	upgrader websocket.Upgrader

	mu   sync.RWMutex
	subs map[*wsClient]struct{}
}

type wsClient struct {
	conn *websocket.Conn
	send chan []byte
	once sync.Once
}

func NewFeedbackHub() *FeedbackHub {
	return &FeedbackHub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		subs: make(map[*wsClient]struct{}),
	}
}

// Clients reports how many websocket clients are attached.
func (h *FeedbackHub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// PublishFeedback implements coordinator.FeedbackSink.
func (h *FeedbackHub) PublishFeedback(fb coordinator.Feedback) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if len(h.subs) == 0 {
		return
	}
	data, err := json.Marshal(fb)
	if err != nil {
		logs.Errf("api.FeedbackHub.PublishFeedback marshal err=%v", err)
		return
	}
	for sub := range h.subs {
		select {
		case sub.send <- data:
		default:
			logs.Debugf("api.FeedbackHub.PublishFeedback backpressure drop tick=%d", fb.Tick)
		}
	}
}

func (h *FeedbackHub) serveWS(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logs.Warnf("api.FeedbackHub.serveWS upgrade err=%v", err)
		return
	}
	sub := &wsClient{conn: conn, send: make(chan []byte, wsSendBuffer)}
	h.mu.Lock()
	h.subs[sub] = struct{}{}
	h.mu.Unlock()
	logs.Infof("api.FeedbackHub.serveWS attached remote=%s", c.Request.RemoteAddr)

	go h.writePump(sub)
	go h.readPump(sub)
}

func (h *FeedbackHub) remove(sub *wsClient) {
	sub.once.Do(func() {
		h.mu.Lock()
		delete(h.subs, sub)
		h.mu.Unlock()
		close(sub.send)
	})
}

// readPump only exists to notice the client going away and to answer pongs.
func (h *FeedbackHub) readPump(sub *wsClient) {
	defer h.remove(sub)
	sub.conn.SetReadLimit(1024)
	_ = sub.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	sub.conn.SetPongHandler(func(string) error {
		return sub.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})
	for {
		if _, _, err := sub.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logs.Warnf("api.FeedbackHub.readPump err=%v", err)
			}
			return
		}
	}
}

func (h *FeedbackHub) writePump(sub *wsClient) {
	ticker := time.NewTicker(wsPingPeriod)
	defer func() {
		ticker.Stop()
		_ = sub.conn.Close()
	}()
	for {
		select {
		case data, ok := <-sub.send:
			_ = sub.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if !ok {
				_ = sub.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := sub.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				h.remove(sub)
				return
			}
		case <-ticker.C:
			_ = sub.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := sub.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				h.remove(sub)
				return
			}
		}
	}
}

var _ coordinator.FeedbackSink = (*FeedbackHub)(nil)
