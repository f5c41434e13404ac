package session

import (
	"context"
	"fmt"
	"time"

	"gonum.org/v1/gonum/spatial/r2"

	"habitat/internal/controller"
	"habitat/internal/event"
	"habitat/internal/graph"
	"habitat/internal/layout"
	"habitat/internal/log"
	"habitat/internal/model"
	"habitat/internal/provider"
)

// ClickResult describes what a node click did. For an activation that needs
// the provider, Done closes once the children exist or the request failed.
type ClickResult struct {
	Action controller.ClickAction
	Node   model.Node

	done    chan struct{}
	created []model.Node
	err     error
}

func newClickResult(action controller.ClickAction, n model.Node) *ClickResult {
	return &ClickResult{Action: action, Node: n, done: make(chan struct{})}
}

func (r *ClickResult) finish(created []model.Node, err error) {
	r.created = created
	r.err = err
	close(r.done)
}

// Done is closed when the click has fully resolved.
func (r *ClickResult) Done() <-chan struct{} { return r.done }

// Wait blocks until the click resolves and returns the created children.
func (r *ClickResult) Wait(ctx context.Context) ([]model.Node, error) {
	select {
	case <-r.done:
		return r.created, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Click dispatches a click on node id. Visited nodes resolve to a detail
// view, burrowed nodes and clicks that end a drag are ignored, and anything
// else is activated. A node without children is activated only once the
// provider has returned its children.
func (s *Session) Click(id int) (*ClickResult, error) {
	var res *ClickResult
	err := s.run(func() error {
		n, ok := s.store.Node(id)
		if !ok {
			return fmt.Errorf("node %d: %w", id, graph.ErrNodeNotFound)
		}
		res = newClickResult(s.ctrl.Click(n), n)
		if res.Action != controller.ActionActivate {
			res.finish(nil, nil)
			return nil
		}
		if s.store.HasChildren(id) {
			if err := s.activate(id); err != nil {
				return err
			}
			res.Node, _ = s.store.Node(id)
			res.finish(nil, nil)
			return nil
		}
		return s.startExpansion(n, res)
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// activate promotes id to Current and centers the view on it.
func (s *Session) activate(id int) error {
	if err := s.store.SetState(id, model.StateCurrent); err != nil {
		return err
	}
	n, _ := s.store.Node(id)
	s.view.CenterOn(n.Position.Vec())
	s.events.Publish(event.Event{Type: event.NodeActivated, Data: event.NodeData{ID: n.ID, Label: n.Label}})
	s.publish()
	return nil
}

func (s *Session) startExpansion(n model.Node, res *ClickResult) error {
	if exp, _ := s.store.Expansion(n.ID); exp == model.ExpansionInFlight {
		return fmt.Errorf("node %d: %w", n.ID, ErrExpansionInFlight)
	}
	if err := s.store.SetExpansion(n.ID, model.ExpansionInFlight); err != nil {
		return err
	}
	req := provider.Request{
		Seed:    n.Label,
		Journey: s.store.Path(n.ID),
		Count:   s.childCount(),
		Exclude: s.store.Labels(),
	}
	gen := s.store.Generation()

	s.pending.Add(1)
	go s.expand(n.ID, gen, req, res)

	s.events.Publish(event.Event{Type: event.ExpansionStarted, Data: event.NodeData{ID: n.ID, Label: n.Label}})
	s.logger.Debug(s.ctx, "Expansion started", log.Fields{"node": n.ID, "label": n.Label, "count": req.Count})
	return nil
}

func (s *Session) childCount() int {
	if s.cfg.Provider.ChildCount > 0 {
		return s.cfg.Provider.ChildCount
	}
	return 5
}

func (s *Session) requestContext() (context.Context, context.CancelFunc) {
	if s.cfg.Provider.TimeoutSec > 0 {
		return context.WithTimeout(s.ctx, time.Duration(s.cfg.Provider.TimeoutSec)*time.Second)
	}
	return context.WithCancel(s.ctx)
}

// expand calls the provider off the executor and posts the result back.
func (s *Session) expand(id int, gen uint64, req provider.Request, res *ClickResult) {
	defer s.pending.Done()

	ctx, cancel := s.requestContext()
	defer cancel()
	start := time.Now()
	topics, err := s.provider.RequestTopics(ctx, req)
	elapsed := time.Since(start)

	if !s.post(func() { s.completeExpansion(id, gen, topics, err, elapsed, res) }) {
		res.finish(nil, ErrClosed)
	}
}

func (s *Session) completeExpansion(id int, gen uint64, topics []model.Topic, err error, elapsed time.Duration, res *ClickResult) {
	if gen != s.store.Generation() {
		s.metrics.Expansion("stale", elapsed)
		s.logger.Debug(s.ctx, "Discarding stale expansion", log.Fields{"node": id})
		res.finish(nil, ErrStale)
		return
	}
	n, ok := s.store.Node(id)
	if !ok {
		res.finish(nil, ErrStale)
		return
	}
	if err != nil {
		s.failExpansion(n, err, elapsed, res)
		return
	}
	if s.store.HasChildren(id) {
		res.finish(nil, fmt.Errorf("node %d: %w", id, graph.ErrAlreadyExpanded))
		return
	}

	parent := n.Position.Vec()
	if s.cfg.Layout.Relocate && !n.IsRoot() {
		if gp, ok := s.store.Node(n.ParentID); ok {
			parent = layout.Relocate(parent, gp.Position.Vec())
			_ = s.store.SetPosition(id, model.PositionOf(parent))
		}
	}

	positions := s.placer.Place(parent, s.positions(), len(topics))
	items := make([]model.NodeInfo, len(topics))
	for i, t := range topics {
		items[i] = model.NodeInfo{
			Label:       t.Title,
			Description: t.Description,
			Position:    model.PositionOf(positions[i]),
		}
	}
	created, err := s.store.CreateBatch(id, items)
	if err != nil {
		s.failExpansion(n, err, elapsed, res)
		return
	}
	if err := s.store.SetState(id, model.StateCurrent); err != nil {
		s.logger.Warn(s.ctx, "Expanded node could not be activated", log.Fields{"node": id, "error": err})
	}
	s.view.CenterOn(parent)

	ids := make([]int, len(created))
	for i, c := range created {
		ids[i] = c.ID
	}
	s.metrics.Expansion("success", elapsed)
	s.events.Publish(event.Event{Type: event.NodesCreated, Data: event.NodesCreatedData{ParentID: id, IDs: ids}})
	s.events.Publish(event.Event{Type: event.NodeActivated, Data: event.NodeData{ID: id, Label: n.Label}})
	s.logger.Info(s.ctx, "Node expanded", log.Fields{"node": id, "label": n.Label, "children": len(created)})
	s.publish()
	res.Node, _ = s.store.Node(id)
	res.finish(created, nil)
}

// failExpansion leaves the node's state untouched and allows a retry.
func (s *Session) failExpansion(n model.Node, err error, elapsed time.Duration, res *ClickResult) {
	_ = s.store.SetExpansion(n.ID, model.ExpansionNotStarted)
	s.metrics.Expansion("error", elapsed)
	s.events.Publish(event.Event{Type: event.ExpansionFailed, Data: event.ExpansionFailedData{ID: n.ID, Err: err}})
	s.logger.Error(s.ctx, "Expansion failed", log.Fields{"node": n.ID, "label": n.Label, "error": err})
	s.publish()
	res.finish(nil, fmt.Errorf("failed to expand '%s': %w", n.Label, err))
}

func (s *Session) positions() []r2.Vec {
	nodes := s.store.Nodes()
	out := make([]r2.Vec, len(nodes))
	for i, n := range nodes {
		out[i] = n.Position.Vec()
	}
	return out
}
