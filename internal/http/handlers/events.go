package handlers

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/kali23041/3d-gsplat/internal/core"
)

// Origin checks are handled by the CORS layer and bearer auth; the upgrader
// itself accepts any origin.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// Keepalive policy for the event stream. A peer that stops acknowledging
// pings or draining writes is cut loose instead of pinning the handler
// goroutine. Vars rather than consts so tests can tighten them.
var (
	eventWriteWait  = 10 * time.Second
	eventPongWait   = 60 * time.Second
	eventPingPeriod = 30 * time.Second
)

// Events upgrades to a websocket and streams job change events to the
// caller. By default the stream carries the caller's own jobs; ?job_id=
// narrows it to one job, and admins may pass ?all=true for the global feed.
// Closing the socket just unsubscribes; publishers are unaffected.
func (a *App) Events(w http.ResponseWriter, r *http.Request) {
	p, ok := a.principal(w, r)
	if !ok {
		return
	}

	filter := core.Filter{OwnerID: p.UserID}
	if r.URL.Query().Get("all") == "true" && p.Admin {
		filter.OwnerID = ""
	}
	if jobID := r.URL.Query().Get("job_id"); jobID != "" {
		filter.JobID = jobID
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		a.Log.Warn().Err(err).Msg("handlers: websocket upgrade failed")
		return
	}

	sub := a.Svc.Events().Subscribe(filter)
	defer sub.Close()
	defer conn.Close()

	_ = conn.SetReadDeadline(time.Now().Add(eventPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(eventPongWait))
	})

	// Reader goroutine: discard client frames, unblock the writer on close
	// or on a peer that stops answering pings.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(eventPingPeriod)
	defer ping.Stop()

	for {
		select {
		case <-done:
			return
		case <-ping.C:
			_ = conn.SetWriteDeadline(time.Now().Add(eventWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case ev, open := <-sub.C:
			if !open {
				// Evicted for falling behind; the client reconnects.
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(eventWriteWait))
			if err := conn.WriteJSON(ev); err != nil {
				return
			}
		}
	}
}
