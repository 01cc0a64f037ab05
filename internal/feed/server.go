package feed

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/gonut/nut/internal/config"
	"github.com/gonut/nut/internal/logger"
)

// Handler upgrades requests to WebSocket and attaches them to the hub.
func (h *Hub) Handler(cfg config.FeedConfig) http.Handler {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			allowed := cfg.IsOriginAllowed(origin, r.Host)
			if !allowed {
				logger.Warning("feed connection rejected - origin not allowed",
					"origin", origin,
					"host", r.Host,
					"remote_addr", r.RemoteAddr)
			}
			return allowed
		},
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			// Upgrade has already written the HTTP error.
			return
		}

		c := newClient(h, conn)
		if !h.add(c) {
			conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"))
			conn.Close()
			return
		}
		go c.writePump()
		go c.readPump()
	})
}

// NewMux returns the feed routes: /ws for the stream and /healthz.
func NewMux(h *Hub, cfg config.FeedConfig) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/ws", h.Handler(cfg))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok\n"))
	})
	return mux
}

// Serve runs the hub and an HTTP server on cfg.Listen until ctx is cancelled.
func Serve(ctx context.Context, cfg config.FeedConfig, h *Hub) error {
	ln, err := net.Listen("tcp", cfg.Listen)
	if err != nil {
		return err
	}
	return ServeListener(ctx, ln, cfg, h)
}

// ServeListener is Serve on an existing listener.
func ServeListener(ctx context.Context, ln net.Listener, cfg config.FeedConfig, h *Hub) error {
	srv := &http.Server{
		Handler:           NewMux(h, cfg),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go h.Run(ctx)
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	logger.Info("feed listening", "address", ln.Addr().String())
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
