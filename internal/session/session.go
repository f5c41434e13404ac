// Package session runs one exploration canvas: it owns the node store, the
// viewport, the layout and physics engines and the input controller, and
// serializes every change onto a single executor goroutine.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"habitat/internal/controller"
	"habitat/internal/event"
	"habitat/internal/graph"
	"habitat/internal/layout"
	"habitat/internal/log"
	"habitat/internal/metrics"
	"habitat/internal/model"
	"habitat/internal/physics"
	"habitat/internal/provider"
	"habitat/internal/storage"
	"habitat/internal/viewport"
)

var (
	ErrClosed            = errors.New("session closed")
	ErrExpansionInFlight = errors.New("expansion already in flight")
	ErrStale             = errors.New("tree was replaced while the request was pending")
	ErrNoSnapshot        = errors.New("no snapshot for hole")
)

// Options wires a session to its collaborators. Provider and Snapshots are
// required; the rest default to no-op implementations.
type Options struct {
	Config    *model.Config
	Provider  provider.TopicProvider
	Snapshots storage.SnapshotStore
	Logger    *log.Logger
	Events    *event.EventManager
	Metrics   *metrics.Metrics
}

// Session is safe for concurrent use. Its public methods post work to the
// executor and wait for the result.
type Session struct {
	cfg       model.Config
	store     *graph.Store
	view      *viewport.Transform
	placer    *layout.Placer
	sim       *physics.Simulator
	ctrl      *controller.Controller
	provider  provider.TopicProvider
	snapshots storage.SnapshotStore
	logger    *log.Logger
	events    *event.EventManager
	metrics   *metrics.Metrics

	hole      string
	physicsOn bool
	sequence  uint64
	listeners map[int]func(model.Frame)
	nextLis   int

	physicsLoop *physics.Scheduler
	keyLoop     *physics.Scheduler

	ctx       context.Context
	cancel    context.CancelFunc
	queue     chan func()
	stop      chan struct{}
	closeOnce sync.Once
	pending   sync.WaitGroup

	commandHandlers map[string]map[string]CommandHandler
}

// New creates a session. Call Start to seed or restore the tree.
func New(opts Options) (*Session, error) {
	if opts.Provider == nil {
		return nil, errors.New("session requires a topic provider")
	}
	if opts.Snapshots == nil {
		return nil, errors.New("session requires a snapshot store")
	}
	cfg := opts.Config
	if cfg == nil {
		return nil, errors.New("session requires a configuration")
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.NewDiscard()
	}
	events := opts.Events
	if events == nil {
		events = event.NewEventManager()
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		cfg:       *cfg,
		store:     graph.NewStore(),
		view:      viewport.New(cfg.Viewport.Width, cfg.Viewport.Height, cfg.Viewport.MinScale, cfg.Viewport.MaxScale),
		placer:    layout.NewPlacer(layoutConfig(cfg.Layout)),
		sim:       physics.NewSimulator(physicsConfig(cfg.Physics)),
		provider:  provider.Checked(opts.Provider),
		snapshots: opts.Snapshots,
		logger:    logger,
		events:    events,
		metrics:   opts.Metrics,
		hole:      cfg.Seed.Hole,
		listeners: make(map[int]func(model.Frame)),
		ctx:       ctx,
		cancel:    cancel,
		queue:     make(chan func()),
		stop:      make(chan struct{}),
	}
	if s.hole == "" {
		s.hole = "start"
	}
	s.ctrl = controller.New(controlsConfig(cfg.Controls), s.view, s.store)

	interval := frameInterval(cfg.Physics.FrameMillis)
	s.physicsLoop = physics.NewScheduler(interval, func() { _ = s.run(s.physicsFrame) })
	s.keyLoop = physics.NewScheduler(interval, func() { _ = s.run(s.keyFrame) })
	s.initCommandHandlers()

	go s.executor()
	logger.Info(ctx, "Session created", log.Fields{"hole": s.hole})
	return s, nil
}

func layoutConfig(c model.LayoutConfig) layout.Config {
	return layout.Config{
		Radius:      c.Radius,
		MinDistance: c.MinDistance,
		AngleStep:   c.AngleStep,
		RadiusStep:  c.RadiusStep,
		MaxAttempts: c.MaxAttempts,
	}
}

func physicsConfig(c model.PhysicsConfig) physics.Config {
	def := physics.DefaultConfig()
	out := physics.Config{
		Force:             c.Force,
		MinDistance:       c.MinDistance,
		ParentForce:       c.ParentForce,
		ParentMinDistance: c.ParentMinDistance,
		Damping:           c.Damping,
	}
	if out.Force <= 0 {
		out.Force = def.Force
	}
	if out.MinDistance <= 0 {
		out.MinDistance = def.MinDistance
	}
	if out.ParentForce <= 0 {
		out.ParentForce = def.ParentForce
	}
	if out.ParentMinDistance <= 0 {
		out.ParentMinDistance = def.ParentMinDistance
	}
	if out.Damping <= 0 {
		out.Damping = def.Damping
	}
	return out
}

func controlsConfig(c model.ControlsConfig) controller.Config {
	def := controller.DefaultConfig()
	if c.WheelStep <= 0 {
		c.WheelStep = def.WheelStep
	}
	if c.KeyZoomStep <= 0 {
		c.KeyZoomStep = def.KeyZoomStep
	}
	if c.PanSpeed <= 0 {
		c.PanSpeed = def.PanSpeed
	}
	if c.DragThreshold < 0 {
		c.DragThreshold = def.DragThreshold
	}
	return controller.Config{
		WheelStep:     c.WheelStep,
		KeyZoomStep:   c.KeyZoomStep,
		PanSpeed:      c.PanSpeed,
		DragThreshold: c.DragThreshold,
	}
}

func frameInterval(ms int) time.Duration {
	if ms <= 0 {
		ms = 16
	}
	return time.Duration(ms) * time.Millisecond
}

// executor processes work from the queue until the session closes.
func (s *Session) executor() {
	for {
		select {
		case fn := <-s.queue:
			fn()
		case <-s.stop:
			return
		}
	}
}

// run executes fn on the executor and waits for its result.
func (s *Session) run(fn func() error) error {
	errc := make(chan error, 1)
	select {
	case s.queue <- func() { errc <- fn() }:
	case <-s.stop:
		return ErrClosed
	}
	select {
	case err := <-errc:
		return err
	case <-s.stop:
		return ErrClosed
	}
}

// post queues fn without waiting. It reports false once the session is closed.
func (s *Session) post(fn func()) bool {
	select {
	case s.queue <- fn:
		return true
	case <-s.stop:
		return false
	}
}

// Start restores the configured hole if a snapshot exists, otherwise it seeds
// a single root node. Physics starts if enabled in the configuration.
func (s *Session) Start(ctx context.Context) error {
	nodes, ok, err := s.snapshots.Load(ctx, s.hole)
	if err != nil {
		return fmt.Errorf("failed to load hole '%s': %w", s.hole, err)
	}
	err = s.run(func() error {
		if ok {
			err := s.store.Replace(nodes)
			if err == nil {
				s.centerOnFocus()
				s.logger.Info(ctx, "Hole restored", log.Fields{"hole": s.hole, "nodes": len(nodes)})
				s.publish()
				return nil
			}
			s.logger.Warn(ctx, "Stored hole is invalid, reseeding", log.Fields{"hole": s.hole, "error": err})
		}
		root := model.NodeInfo{
			Label:    s.cfg.Seed.Topic,
			Position: model.Position{X: s.cfg.Seed.X, Y: s.cfg.Seed.Y},
		}
		if _, err := s.store.ResetToSeed([]model.NodeInfo{root}); err != nil {
			return fmt.Errorf("failed to seed tree: %w", err)
		}
		s.view.ResetTo(root.Position.Vec())
		s.publish()
		return nil
	})
	if err != nil {
		return err
	}
	if s.cfg.Physics.Enabled {
		return s.SetPhysics(true)
	}
	return nil
}

// Close stops the frame loops, cancels outstanding provider calls and shuts
// down the executor.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.physicsLoop.Stop()
		s.keyLoop.Stop()
		s.cancel()
		s.pending.Wait()
		close(s.stop)
		s.logger.Info(context.Background(), "Session closed", log.Fields{"hole": s.hole})
	})
	return nil
}

// Subscribe registers fn for every published frame, starting with the
// current one. fn runs on the executor and must not block or call back into
// the session. The returned function removes it.
func (s *Session) Subscribe(fn func(model.Frame)) (func(), error) {
	var id int
	err := s.run(func() error {
		id = s.nextLis
		s.nextLis++
		s.listeners[id] = fn
		fn(s.frame())
		return nil
	})
	if err != nil {
		return nil, err
	}
	return func() {
		_ = s.run(func() error {
			delete(s.listeners, id)
			return nil
		})
	}, nil
}

// Frame returns the current frame.
func (s *Session) Frame() (model.Frame, error) {
	var f model.Frame
	err := s.run(func() error {
		f = s.frame()
		return nil
	})
	return f, err
}

func (s *Session) frame() model.Frame {
	return model.Frame{
		Sequence:    s.sequence,
		Generation:  s.store.Generation(),
		Hole:        s.hole,
		Physics:     s.physicsOn,
		Nodes:       s.store.Nodes(),
		Connections: s.store.Connections(),
		Transform:   s.view.State(),
	}
}

// publish sends a new frame to every listener.
func (s *Session) publish() {
	s.sequence++
	s.metrics.SetNodes(s.store.Len())
	if len(s.listeners) == 0 {
		return
	}
	f := s.frame()
	for _, fn := range s.listeners {
		fn(f)
	}
}

func (s *Session) physicsFrame() error {
	moved, err := s.sim.Tick(s.store)
	s.metrics.Frame()
	if err != nil {
		s.logger.Error(s.ctx, "Physics tick failed", log.Fields{"error": err})
		return err
	}
	if moved > 0 {
		s.publish()
	}
	return nil
}

func (s *Session) keyFrame() error {
	if !s.ctrl.Tick() {
		s.keyLoop.Stop()
		return nil
	}
	s.publish()
	return nil
}

// Hole returns the key of the live hole.
func (s *Session) Hole() string {
	var key string
	_ = s.run(func() error {
		key = s.hole
		return nil
	})
	return key
}

// Node returns a copy of a live node.
func (s *Session) Node(id int) (model.Node, error) {
	var n model.Node
	err := s.run(func() error {
		var ok bool
		n, ok = s.store.Node(id)
		if !ok {
			return fmt.Errorf("node %d: %w", id, graph.ErrNodeNotFound)
		}
		return nil
	})
	return n, err
}

// Detail is the full view of one node.
type Detail struct {
	Node     model.Node
	Path     []string
	Children []model.Node
}

// Detail returns a node with its path from the root and its children.
func (s *Session) Detail(id int) (Detail, error) {
	var d Detail
	err := s.run(func() error {
		n, ok := s.store.Node(id)
		if !ok {
			return fmt.Errorf("node %d: %w", id, graph.ErrNodeNotFound)
		}
		d = Detail{Node: n, Path: s.store.Path(id), Children: s.store.ChildrenOf(id)}
		return nil
	})
	return d, err
}

// ApplyConfig retunes layout, physics, controls and zoom bounds on the live
// session. Storage, provider and stream settings need a restart.
func (s *Session) ApplyConfig(cfg *model.Config) error {
	err := s.run(func() error {
		s.cfg.Layout = cfg.Layout
		s.cfg.Physics = cfg.Physics
		s.cfg.Controls = cfg.Controls
		s.cfg.Seed = cfg.Seed
		s.cfg.Provider.ChildCount = cfg.Provider.ChildCount
		s.placer = layout.NewPlacer(layoutConfig(cfg.Layout))
		s.sim.SetConfig(physicsConfig(cfg.Physics))
		s.ctrl.SetConfig(controlsConfig(cfg.Controls))
		s.view.SetBounds(cfg.Viewport.MinScale, cfg.Viewport.MaxScale)
		s.physicsLoop.SetInterval(frameInterval(cfg.Physics.FrameMillis))
		s.keyLoop.SetInterval(frameInterval(cfg.Physics.FrameMillis))
		s.publish()
		return nil
	})
	if err != nil {
		return err
	}
	s.events.Publish(event.Event{Type: event.ConfigReloaded, Data: cfg})
	s.logger.Info(s.ctx, "Configuration applied", nil)
	return s.SetPhysics(cfg.Physics.Enabled)
}
