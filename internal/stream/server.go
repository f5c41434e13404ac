// Package stream serves frames to remote renderers over a websocket and
// accepts their input as session commands. It also exposes a small JSON API
// and the Prometheus metrics endpoint.
package stream

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/pprof"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"habitat/internal/log"
	"habitat/internal/metrics"
	"habitat/internal/model"
)

// Engine is the part of a session the server drives.
type Engine interface {
	Subscribe(fn func(model.Frame)) (func(), error)
	Frame() (model.Frame, error)
	ListHoles(ctx context.Context) ([]model.HoleInfo, error)
	CommandRun(ctx context.Context, cmd model.Command) (interface{}, error)
}

// Server is the HTTP face of one session.
type Server struct {
	cfg      model.StreamConfig
	engine   Engine
	hub      *Hub
	logger   *log.Logger
	metrics  *metrics.Metrics
	router   *gin.Engine
	upgrader websocket.Upgrader
}

// New builds the router. Call Run to subscribe to frames and listen.
func New(cfg model.StreamConfig, engine Engine, logger *log.Logger, m *metrics.Metrics) *Server {
	if cfg.Path == "" {
		cfg.Path = "/ws"
	}
	if logger == nil {
		logger = log.NewDiscard()
	}
	s := &Server{
		cfg:     cfg,
		engine:  engine,
		hub:     NewHub(logger, m),
		logger:  logger,
		metrics: m,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}

	router := gin.New()
	router.Use(gin.Recovery(), s.requestLogger)
	router.GET(cfg.Path, s.handleSocket)
	api := router.Group("/api")
	api.GET("/frame", s.handleFrame)
	api.GET("/holes", s.handleHoles)
	api.POST("/command", s.handleCommand)
	if m != nil {
		router.GET("/metrics", gin.WrapH(m.Handler()))
	}
	pprof.Register(router)
	s.router = router
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler { return s.router }

// Hub returns the client hub.
func (s *Server) Hub() *Hub { return s.hub }

// Attach subscribes the hub to the engine's frames.
func (s *Server) Attach() (func(), error) {
	return s.engine.Subscribe(s.hub.Broadcast)
}

// Run serves until ctx is done, then shuts the listener down.
func (s *Server) Run(ctx context.Context) error {
	detach, err := s.Attach()
	if err != nil {
		return err
	}
	defer detach()

	srv := &http.Server{Addr: s.cfg.Addr, Handler: s.router, ReadHeaderTimeout: 10 * time.Second}
	errc := make(chan error, 1)
	go func() {
		s.logger.Info(ctx, "Listening", log.Fields{"addr": s.cfg.Addr, "path": s.cfg.Path})
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdown)
	}
}

func (s *Server) requestLogger(c *gin.Context) {
	start := time.Now()
	c.Next()
	fields := log.Fields{
		"method":  c.Request.Method,
		"path":    c.Request.URL.Path,
		"code":    c.Writer.Status(),
		"latency": time.Since(start).String(),
	}
	if len(c.Errors) > 0 {
		fields["errors"] = c.Errors.Errors()
	}
	if c.Writer.Status()/100 != 2 {
		s.logger.Warn(c.Request.Context(), "Request failed", fields)
		return
	}
	s.logger.Debug(c.Request.Context(), "Request served", fields)
}

func check(c *gin.Context, code int, err error) bool {
	if err != nil && !c.IsAborted() {
		c.AbortWithStatusJSON(code, c.Error(err).JSON())
	}
	return err == nil && !c.IsAborted()
}

func (s *Server) handleFrame(c *gin.Context) {
	f, err := s.engine.Frame()
	if !check(c, http.StatusServiceUnavailable, err) {
		return
	}
	c.JSON(http.StatusOK, f)
}

func (s *Server) handleHoles(c *gin.Context) {
	holes, err := s.engine.ListHoles(c.Request.Context())
	if !check(c, http.StatusInternalServerError, err) {
		return
	}
	if holes == nil {
		holes = []model.HoleInfo{}
	}
	c.JSON(http.StatusOK, holes)
}

func (s *Server) handleCommand(c *gin.Context) {
	var cmd model.Command
	if !check(c, http.StatusBadRequest, c.ShouldBindJSON(&cmd)) {
		return
	}
	result, err := s.engine.CommandRun(c.Request.Context(), cmd)
	if !check(c, http.StatusUnprocessableEntity, err) {
		return
	}
	c.JSON(http.StatusOK, Message{Type: "result", Op: cmd.Scope + " " + cmd.Operation, Result: result})
}

// handleSocket upgrades the connection, sends the current frame and then
// runs each received command against the engine.
func (s *Server) handleSocket(c *gin.Context) {
	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.Warn(c.Request.Context(), "Websocket upgrade failed", log.Fields{"error": err})
		return
	}
	cl := newClient(conn)
	go cl.writer()

	if f, err := s.engine.Frame(); err == nil {
		_ = cl.reply(Message{Type: "frame", Frame: &f})
	}
	s.hub.add(cl)
	s.logger.Info(c.Request.Context(), "Stream client connected", log.Fields{"remote": conn.RemoteAddr().String()})

	defer func() {
		s.hub.remove(cl)
		close(cl.done)
		s.logger.Info(context.Background(), "Stream client disconnected", log.Fields{"remote": conn.RemoteAddr().String()})
	}()

	conn.SetReadLimit(maxMessage)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	ctx := c.Request.Context()
	for {
		var cmd model.Command
		if err := conn.ReadJSON(&cmd); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Warn(ctx, "Stream read failed", log.Fields{"error": err})
			}
			return
		}
		conn.SetReadDeadline(time.Now().Add(pongWait))
		result, err := s.engine.CommandRun(ctx, cmd)
		reply := Message{Type: "result", Op: cmd.Scope + " " + cmd.Operation, Result: result}
		if err != nil {
			reply = Message{Type: "error", Op: reply.Op, Error: err.Error()}
		}
		if err := cl.reply(reply); err != nil {
			return
		}
	}
}
