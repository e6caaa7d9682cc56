// Package server is the demo feed producer: a gin router serving the random
// message stream over SSE and WebSocket.
package server

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/process"
	"github.com/tmaxmax/go-sse"

	"github.com/feedwatch/feedwatch/internal/config"
	"github.com/feedwatch/feedwatch/internal/mock"
)

const readHeaderTimeout = 5 * time.Second

// Server owns the HTTP listener, the fan-out hub and the generator.
type Server struct {
	cfg     config.ServeConfig
	log     *zerolog.Logger
	sse     *sse.Server
	hub     *Hub
	gen     *mock.Generator
	http    *http.Server
	started time.Time
}

// New builds the server. Nothing listens until Run.
func New(cfg config.ServeConfig, logger *zerolog.Logger, opts ...mock.Option) *Server {
	sseServer := &sse.Server{}
	hub := NewHub(sseServer, logger)
	s := &Server{
		cfg:     cfg,
		log:     logger,
		sse:     sseServer,
		hub:     hub,
		gen:     mock.NewGenerator(hub, cfg.MinInterval, cfg.MaxInterval, opts...),
		started: time.Now(),
	}
	s.http = &http.Server{
		Addr:              cfg.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: readHeaderTimeout,
	}
	return s
}

// Hub returns the fan-out hub, mainly for tests.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Handler builds the gin engine.
func (s *Server) Handler() http.Handler {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), LoggerMiddleware(s.log), CORSMiddleware())

	r.GET("/", s.handleRoot)
	r.GET("/health", s.handleHealth)
	r.GET("/stream_message", s.handleStream)
	r.GET("/ws", s.handleWS)
	return r
}

// Run starts the generator and the listener, and blocks until ctx is
// cancelled or the listener fails.
func (s *Server) Run(ctx context.Context) error {
	genCtx, stopGen := context.WithCancel(ctx)
	defer stopGen()
	s.gen.Start(genCtx)

	serverErr := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", s.cfg.Addr).Msg("feed server listening")
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
			return
		}
		serverErr <- nil
	}()

	select {
	case err := <-serverErr:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer cancel()

		s.log.Info().Msg("shutting down feed server")
		// Open event streams never finish on their own.
		if err := s.sse.Shutdown(shutdownCtx); err != nil {
			s.log.Warn().Err(err).Msg("sse shutdown")
		}
		if err := s.http.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return <-serverErr
	}
}

func (s *Server) handleRoot(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"message":   "Random Message Streaming Server is running!",
		"endpoints": []string{"/stream_message", "/ws"},
	})
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status        string  `json:"status"`
	Uptime        string  `json:"uptime"`
	UptimeSeconds float64 `json:"uptime_seconds"`
	RSSBytes      uint64  `json:"rss_bytes,omitempty"`
	WSClients     int     `json:"ws_clients"`
}

func (s *Server) handleHealth(c *gin.Context) {
	up := time.Since(s.started)
	resp := HealthResponse{
		Status:        "ok",
		Uptime:        up.Truncate(time.Second).String(),
		UptimeSeconds: up.Seconds(),
		WSClients:     s.hub.ClientCount(),
	}
	if rss, err := processRSS(); err == nil {
		resp.RSSBytes = rss
	} else {
		s.log.Debug().Err(err).Msg("read process memory")
	}
	c.JSON(http.StatusOK, resp)
}

func processRSS() (uint64, error) {
	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return 0, err
	}
	mem, err := p.MemoryInfo()
	if err != nil {
		return 0, err
	}
	return mem.RSS, nil
}

func (s *Server) handleStream(c *gin.Context) {
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	s.log.Debug().Str("remote", c.Request.RemoteAddr).Msg("sse subscriber connected")
	s.sse.ServeHTTP(c.Writer, c.Request)
	s.log.Debug().Str("remote", c.Request.RemoteAddr).Msg("sse subscriber gone")
}

var upgrader = websocket.Upgrader{
	// The demo server is open to any origin, like its SSE endpoint.
	CheckOrigin: func(*http.Request) bool { return true },
}

func (s *Server) handleWS(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.log.Warn().Err(err).Msg("ws upgrade")
		return
	}

	client := s.hub.AddClient(conn)
	s.log.Info().Str("client", client.id.String()).Str("remote", c.Request.RemoteAddr).Msg("ws client connected")

	go func() {
		defer func() {
			s.hub.RemoveClient(client)
			s.log.Info().Str("client", client.id.String()).Msg("ws client disconnected")
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}
