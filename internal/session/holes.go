package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"habitat/internal/event"
	"habitat/internal/graph"
	"habitat/internal/log"
	"habitat/internal/model"
	"habitat/internal/provider"
	"habitat/internal/storage"
)

var ErrNoFocus = errors.New("tree has no nodes to focus")

// Burrow saves the live tree under the current hole key with its Current node
// marked Burrowed, then starts a new hole seeded from that node's topic. If
// the provider fails nothing changes.
func (s *Session) Burrow(ctx context.Context) ([]model.Node, error) {
	var (
		req     provider.Request
		gen     uint64
		current model.Node
		has     bool
	)
	err := s.run(func() error {
		gen = s.store.Generation()
		current, has = s.store.Current()
		req = provider.Request{Seed: s.cfg.Seed.Topic, Count: s.seedCount(), Exclude: s.store.Labels()}
		if has {
			req.Seed = current.Label
			req.Journey = s.store.Path(current.ID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	rctx, cancel := s.requestContext()
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()
	topics, err := s.provider.RequestTopics(rctx, req)
	if err != nil {
		s.logger.Error(ctx, "Burrow failed", log.Fields{"seed": req.Seed, "error": err})
		return nil, fmt.Errorf("failed to seed new hole from '%s': %w", req.Seed, err)
	}

	var seeded []model.Node
	err = s.run(func() error {
		if gen != s.store.Generation() {
			return ErrStale
		}
		snapshot := s.store.Nodes()
		if has {
			for i := range snapshot {
				if snapshot[i].ID == current.ID {
					snapshot[i].State = model.StateBurrowed
					snapshot[i].IsFaded = false
				}
			}
		}
		if err := s.snapshots.Save(ctx, s.hole, snapshot); err != nil {
			return fmt.Errorf("failed to save hole '%s': %w", s.hole, err)
		}
		s.events.Publish(event.Event{Type: event.HoleSaved, Data: event.HoleData{Key: s.hole, NodeCount: len(snapshot)}})
		if has {
			if err := s.store.MarkBurrowed(current.ID); err != nil {
				return err
			}
			s.events.Publish(event.Event{Type: event.NodeBurrowed, Data: event.NodeData{ID: current.ID, Label: current.Label}})
		}

		center := s.view.ScreenToWorld(s.view.Center())
		positions := s.placer.Seed(center, nil, len(topics))
		items := make([]model.NodeInfo, len(topics))
		for i, t := range topics {
			items[i] = model.NodeInfo{Label: t.Title, Description: t.Description, Position: model.PositionOf(positions[i])}
		}
		var err error
		seeded, err = s.store.ResetToSeed(items)
		if err != nil {
			return err
		}

		previous := s.hole
		s.hole = s.uniqueKey(ctx, req.Seed)
		s.view.ResetTo(seeded[0].Position.Vec())
		s.metrics.Burrow()
		s.logger.Info(ctx, "Burrowed", log.Fields{"saved": previous, "hole": s.hole, "seeds": len(seeded)})
		s.publish()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return seeded, nil
}

func (s *Session) seedCount() int {
	if s.cfg.Seed.Count > 0 {
		return s.cfg.Seed.Count
	}
	return 5
}

// uniqueKey derives a hole key from label that no saved hole uses yet.
func (s *Session) uniqueKey(ctx context.Context, label string) string {
	base := strings.ToLower(strings.Join(strings.Fields(label), "-"))
	if base == "" {
		base = "hole"
	}
	used := make(map[string]bool)
	if holes, err := s.snapshots.List(ctx); err == nil {
		for _, h := range holes {
			used[h.Key] = true
		}
	}
	key := base
	for i := 2; used[key]; i++ {
		key = fmt.Sprintf("%s-%d", base, i)
	}
	return key
}

// centerOnFocus centers the view on the Current node, or on the first node.
func (s *Session) centerOnFocus() {
	if n, ok := s.store.Current(); ok {
		s.view.CenterOn(n.Position.Vec())
		return
	}
	if nodes := s.store.Nodes(); len(nodes) > 0 {
		s.view.ResetTo(nodes[0].Position.Vec())
	}
}

// SaveHole stores the live tree under the current hole key.
func (s *Session) SaveHole(ctx context.Context) (string, error) {
	var key string
	err := s.run(func() error {
		key = s.hole
		return s.saveLive(ctx)
	})
	return key, err
}

func (s *Session) saveLive(ctx context.Context) error {
	nodes := s.store.Nodes()
	if len(nodes) == 0 {
		return nil
	}
	if err := s.snapshots.Save(ctx, s.hole, nodes); err != nil {
		return fmt.Errorf("failed to save hole '%s': %w", s.hole, err)
	}
	s.events.Publish(event.Event{Type: event.HoleSaved, Data: event.HoleData{Key: s.hole, NodeCount: len(nodes)}})
	return nil
}

// OpenHole saves the live tree, then replaces it with the snapshot stored
// under key. A missing or corrupt snapshot leaves the live tree unchanged.
func (s *Session) OpenHole(ctx context.Context, key string) error {
	nodes, ok, err := s.snapshots.Load(ctx, key)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("hole '%s': %w", key, ErrNoSnapshot)
	}
	return s.run(func() error { return s.install(ctx, key, nodes) })
}

func (s *Session) install(ctx context.Context, key string, nodes []model.Node) error {
	if err := s.saveLive(ctx); err != nil {
		return err
	}
	if err := s.store.Replace(nodes); err != nil {
		return err
	}
	s.hole = key
	s.centerOnFocus()
	s.events.Publish(event.Event{Type: event.HoleRestored, Data: event.HoleData{Key: key, NodeCount: len(nodes)}})
	s.logger.Info(ctx, "Hole opened", log.Fields{"hole": key, "nodes": len(nodes)})
	s.publish()
	return nil
}

// ListHoles lists saved holes, most recently updated first.
func (s *Session) ListHoles(ctx context.Context) ([]model.HoleInfo, error) {
	return s.snapshots.List(ctx)
}

// DeleteHole removes a saved hole. The live tree is not affected.
func (s *Session) DeleteHole(ctx context.Context, key string) error {
	return s.snapshots.Delete(ctx, key)
}

// ExportHole writes a hole to path as json, xml or dot. An empty key exports
// the live tree.
func (s *Session) ExportHole(ctx context.Context, key, path, format string) error {
	if format == "" {
		format = storage.FormatFromPath(path)
	}
	var nodes []model.Node
	if key == "" {
		err := s.run(func() error {
			key = s.hole
			nodes = s.store.Nodes()
			return nil
		})
		if err != nil {
			return err
		}
	} else {
		var ok bool
		var err error
		nodes, ok, err = s.snapshots.Load(ctx, key)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("hole '%s': %w", key, ErrNoSnapshot)
		}
	}

	if format == "dot" {
		g := graph.NewStore()
		if err := g.Replace(nodes); err != nil {
			return err
		}
		data, err := g.MarshalDOT(key)
		if err != nil {
			return fmt.Errorf("failed to render hole '%s': %w", key, err)
		}
		return storage.WriteFile(path, data)
	}
	now := time.Now()
	return storage.FileExport(&model.Hole{Key: key, Nodes: nodes, Created: now, Updated: now}, path, format)
}

// ImportHole reads a json or xml hole file, stores it and opens it.
func (s *Session) ImportHole(ctx context.Context, path string) (string, error) {
	hole, err := storage.FileImport(path, storage.FormatFromPath(path))
	if err != nil {
		return "", err
	}
	if hole.Key == "" {
		return "", storage.ErrEmptyKey
	}
	probe := graph.NewStore()
	if err := probe.Replace(hole.Nodes); err != nil {
		return "", err
	}
	err = s.run(func() error {
		if err := s.install(ctx, hole.Key, hole.Nodes); err != nil {
			return err
		}
		return s.saveLive(ctx)
	})
	return hole.Key, err
}
