package session

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"habitat/internal/config"
	"habitat/internal/controller"
	"habitat/internal/model"
	"habitat/internal/provider"
	"habitat/internal/storage"
)

func topics(prefix string, n int) []model.Topic {
	out := make([]model.Topic, n)
	for i := range out {
		out[i] = model.Topic{Title: fmt.Sprintf("%s %d", prefix, i+1), Description: "about " + prefix}
	}
	return out
}

func echoProvider() provider.Func {
	return func(ctx context.Context, req provider.Request) ([]model.Topic, error) {
		return topics(req.Seed, req.Count), nil
	}
}

func newTestSession(t *testing.T, p provider.TopicProvider) (*Session, *storage.MemorySnapshotStore) {
	t.Helper()
	cfg := config.Default()
	cfg.Physics.Enabled = false
	snaps := storage.NewMemorySnapshotStore()
	s, err := New(Options{Config: cfg, Provider: p, Snapshots: snaps})
	require.NoError(t, err)
	require.NoError(t, s.Start(context.Background()))
	t.Cleanup(func() { _ = s.Close() })
	return s, snaps
}

func rootOf(t *testing.T, s *Session) model.Node {
	t.Helper()
	f, err := s.Frame()
	require.NoError(t, err)
	require.NotEmpty(t, f.Nodes)
	return f.Nodes[0]
}

func waitClick(t *testing.T, s *Session, id int) (*ClickResult, []model.Node, error) {
	t.Helper()
	res, err := s.Click(id)
	require.NoError(t, err)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	created, err := res.Wait(ctx)
	return res, created, err
}

func TestNewRequiresCollaborators(t *testing.T) {
	_, err := New(Options{Config: config.Default(), Snapshots: storage.NewMemorySnapshotStore()})
	assert.Error(t, err)
	_, err = New(Options{Config: config.Default(), Provider: echoProvider()})
	assert.Error(t, err)
	_, err = New(Options{Provider: echoProvider(), Snapshots: storage.NewMemorySnapshotStore()})
	assert.Error(t, err)
}

func TestStartSeedsSingleRoot(t *testing.T) {
	s, _ := newTestSession(t, echoProvider())
	f, err := s.Frame()
	require.NoError(t, err)
	require.Len(t, f.Nodes, 1)
	root := f.Nodes[0]
	assert.Equal(t, "Start", root.Label)
	assert.Equal(t, model.Position{X: 1000, Y: 1000}, root.Position)
	assert.Equal(t, model.StateUnvisited, root.State)
	assert.Equal(t, "start", f.Hole)
	assert.Equal(t, 1.0, f.Transform.Scale)
	assert.InDelta(t, 640-1000, f.Transform.OffsetX, 1e-9)
	assert.InDelta(t, 400-1000, f.Transform.OffsetY, 1e-9)
}

func TestClickExpandsRoot(t *testing.T) {
	var req provider.Request
	p := provider.Func(func(ctx context.Context, r provider.Request) ([]model.Topic, error) {
		req = r
		return topics("child", r.Count), nil
	})
	s, _ := newTestSession(t, p)
	root := rootOf(t, s)

	res, created, err := waitClick(t, s, root.ID)
	require.NoError(t, err)
	assert.Equal(t, controller.ActionActivate, res.Action)
	require.Len(t, created, 5)
	assert.Equal(t, "Start", req.Seed)
	assert.Equal(t, []string{"Start"}, req.Journey)
	assert.Equal(t, []string{"Start"}, req.Exclude)

	f, err := s.Frame()
	require.NoError(t, err)
	assert.Len(t, f.Nodes, 6)
	require.Len(t, f.Connections, 5)
	for i, c := range created {
		assert.Equal(t, 1, c.Depth)
		assert.Equal(t, model.Connection{From: root.ID, To: c.ID}, f.Connections[i])
		d := math.Hypot(c.Position.X-1000, c.Position.Y-1000)
		assert.InDelta(t, 300, d, 1e-6)
	}
	n, err := s.Node(root.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StateCurrent, n.State)
	assert.Equal(t, model.ExpansionDone, n.Expansion)
}

func TestClickExpandedNodeActivatesWithoutProvider(t *testing.T) {
	var calls atomic.Int32
	p := provider.Func(func(ctx context.Context, r provider.Request) ([]model.Topic, error) {
		calls.Add(1)
		return topics(r.Seed, r.Count), nil
	})
	s, _ := newTestSession(t, p)
	root := rootOf(t, s)
	_, created, err := waitClick(t, s, root.ID)
	require.NoError(t, err)

	_, _, err = waitClick(t, s, created[0].ID)
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())

	res, more, err := waitClick(t, s, created[0].ID)
	require.NoError(t, err)
	assert.Empty(t, more)
	assert.Equal(t, controller.ActionActivate, res.Action)
	assert.Equal(t, int32(2), calls.Load())
}

func TestRelocateMovesParentAwayFromGrandparent(t *testing.T) {
	s, _ := newTestSession(t, echoProvider())
	root := rootOf(t, s)
	_, created, err := waitClick(t, s, root.ID)
	require.NoError(t, err)
	child := created[0]

	_, grandkids, err := waitClick(t, s, child.ID)
	require.NoError(t, err)
	moved, err := s.Node(child.ID)
	require.NoError(t, err)
	assert.InDelta(t, 2*(child.Position.X-1000)+1000, moved.Position.X, 1e-6)
	assert.InDelta(t, 2*(child.Position.Y-1000)+1000, moved.Position.Y, 1e-6)
	for _, g := range grandkids {
		assert.Equal(t, 2, g.Depth)
	}
}

func TestVisitedClickOpensDetail(t *testing.T) {
	s, _ := newTestSession(t, echoProvider())
	root := rootOf(t, s)
	_, created, err := waitClick(t, s, root.ID)
	require.NoError(t, err)
	_, _, err = waitClick(t, s, created[1].ID)
	require.NoError(t, err)

	res, _, err := waitClick(t, s, root.ID)
	require.NoError(t, err)
	assert.Equal(t, controller.ActionOpenDetail, res.Action)
	n, err := s.Node(root.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StateVisited, n.State)

	d, err := s.Detail(created[1].ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"Start", "Start 2"}, d.Path)
	assert.Len(t, d.Children, 5)
}

func TestProviderFailureLeavesStateUnchanged(t *testing.T) {
	tests := []struct {
		name string
		fn   provider.Func
		want error
	}{
		{"error", func(ctx context.Context, r provider.Request) ([]model.Topic, error) {
			return nil, errors.New("offline")
		}, nil},
		{"short batch", func(ctx context.Context, r provider.Request) ([]model.Topic, error) {
			return topics("x", r.Count-1), nil
		}, provider.ErrShortBatch},
		{"long batch", func(ctx context.Context, r provider.Request) ([]model.Topic, error) {
			return topics("x", r.Count+1), nil
		}, provider.ErrBatchSize},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, _ := newTestSession(t, tt.fn)
			root := rootOf(t, s)
			_, created, err := waitClick(t, s, root.ID)
			require.Error(t, err)
			if tt.want != nil {
				assert.ErrorIs(t, err, tt.want)
			}
			assert.Empty(t, created)

			n, err := s.Node(root.ID)
			require.NoError(t, err)
			assert.Equal(t, model.StateUnvisited, n.State)
			assert.Equal(t, model.ExpansionNotStarted, n.Expansion)
			f, _ := s.Frame()
			assert.Len(t, f.Nodes, 1)
		})
	}
}

func TestFailedExpansionCanBeRetried(t *testing.T) {
	var calls atomic.Int32
	p := provider.Func(func(ctx context.Context, r provider.Request) ([]model.Topic, error) {
		if calls.Add(1) == 1 {
			return nil, errors.New("try again")
		}
		return topics(r.Seed, r.Count), nil
	})
	s, _ := newTestSession(t, p)
	root := rootOf(t, s)
	_, _, err := waitClick(t, s, root.ID)
	require.Error(t, err)
	_, created, err := waitClick(t, s, root.ID)
	require.NoError(t, err)
	assert.Len(t, created, 5)
}

// gatedProvider blocks every request until release is closed.
func gatedProvider(release <-chan struct{}, started chan<- struct{}) provider.Func {
	return func(ctx context.Context, r provider.Request) ([]model.Topic, error) {
		started <- struct{}{}
		select {
		case <-release:
			return topics(r.Seed, r.Count), nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

func TestSecondClickWhileInFlightIsRejected(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{}, 4)
	s, _ := newTestSession(t, gatedProvider(release, started))
	root := rootOf(t, s)

	res, err := s.Click(root.ID)
	require.NoError(t, err)
	<-started

	n, err := s.Node(root.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ExpansionInFlight, n.Expansion)
	assert.Equal(t, model.StateUnvisited, n.State)

	_, err = s.Click(root.ID)
	assert.ErrorIs(t, err, ErrExpansionInFlight)

	require.NoError(t, s.Pan(5, 5), "view stays responsive while expanding")

	close(release)
	created, err := res.Wait(context.Background())
	require.NoError(t, err)
	assert.Len(t, created, 5)
}

func TestStaleExpansionIsDiscarded(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{}, 4)
	s, snaps := newTestSession(t, gatedProvider(release, started))
	ctx := context.Background()
	require.NoError(t, snaps.Save(ctx, "elsewhere", []model.Node{
		{ID: 0, ParentID: model.NoParent, Label: "Elsewhere", State: model.StateUnvisited},
	}))
	root := rootOf(t, s)

	res, err := s.Click(root.ID)
	require.NoError(t, err)
	<-started
	require.NoError(t, s.OpenHole(ctx, "elsewhere"))

	close(release)
	created, err := res.Wait(ctx)
	assert.ErrorIs(t, err, ErrStale)
	assert.Empty(t, created)

	f, err := s.Frame()
	require.NoError(t, err)
	require.Len(t, f.Nodes, 1)
	assert.Equal(t, "Elsewhere", f.Nodes[0].Label)
	assert.Equal(t, "elsewhere", f.Hole)
	assert.Empty(t, f.Connections)
}

func TestBurrow(t *testing.T) {
	s, snaps := newTestSession(t, echoProvider())
	ctx := context.Background()
	root := rootOf(t, s)
	_, created, err := waitClick(t, s, root.ID)
	require.NoError(t, err)
	_, _, err = waitClick(t, s, created[2].ID)
	require.NoError(t, err)

	seeded, err := s.Burrow(ctx)
	require.NoError(t, err)
	require.Len(t, seeded, 5)

	f, err := s.Frame()
	require.NoError(t, err)
	assert.Len(t, f.Nodes, 5)
	assert.Empty(t, f.Connections)
	for _, n := range f.Nodes {
		assert.NotEqual(t, model.StateCurrent, n.State)
		assert.True(t, n.IsRoot())
		assert.Equal(t, "about Start 3", n.Description)
	}
	assert.Equal(t, "start-3", f.Hole)

	saved, ok, err := snaps.Load(ctx, "start")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Len(t, saved, 11)
	for _, n := range saved {
		if n.ID == created[2].ID {
			assert.Equal(t, model.StateBurrowed, n.State)
		} else {
			assert.NotEqual(t, model.StateCurrent, n.State)
		}
	}
}

func TestBurrowKeysAreUnique(t *testing.T) {
	s, _ := newTestSession(t, echoProvider())
	ctx := context.Background()
	_, err := s.Burrow(ctx)
	require.NoError(t, err)
	first := s.Hole()
	_, err = s.Burrow(ctx)
	require.NoError(t, err)
	assert.NotEqual(t, first, s.Hole())
}

func TestBurrowProviderFailureChangesNothing(t *testing.T) {
	var fail atomic.Bool
	p := provider.Func(func(ctx context.Context, r provider.Request) ([]model.Topic, error) {
		if fail.Load() {
			return nil, errors.New("offline")
		}
		return topics(r.Seed, r.Count), nil
	})
	s, snaps := newTestSession(t, p)
	ctx := context.Background()
	root := rootOf(t, s)
	_, _, err := waitClick(t, s, root.ID)
	require.NoError(t, err)
	before, err := s.Frame()
	require.NoError(t, err)

	fail.Store(true)
	_, err = s.Burrow(ctx)
	require.Error(t, err)

	after, err := s.Frame()
	require.NoError(t, err)
	assert.Equal(t, before.Nodes, after.Nodes)
	assert.Equal(t, before.Hole, after.Hole)
	_, ok, err := snaps.Load(ctx, "start")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStartRestoresSavedHole(t *testing.T) {
	cfg := config.Default()
	cfg.Physics.Enabled = false
	snaps := storage.NewMemorySnapshotStore()
	ctx := context.Background()
	require.NoError(t, snaps.Save(ctx, "start", []model.Node{
		{ID: 4, ParentID: model.NoParent, Label: "Root", State: model.StateVisited, Position: model.Position{X: 10, Y: 10}},
		{ID: 5, ParentID: 4, Depth: 1, Label: "Leaf", State: model.StateCurrent, Position: model.Position{X: 50, Y: 10}},
	}))
	s, err := New(Options{Config: cfg, Provider: echoProvider(), Snapshots: snaps})
	require.NoError(t, err)
	defer s.Close()
	require.NoError(t, s.Start(ctx))

	f, err := s.Frame()
	require.NoError(t, err)
	assert.Len(t, f.Nodes, 2)
	assert.Equal(t, []model.Connection{{From: 4, To: 5}}, f.Connections)
	assert.InDelta(t, 640-50, f.Transform.OffsetX, 1e-9)
}

func TestOpenMissingHoleKeepsTree(t *testing.T) {
	s, _ := newTestSession(t, echoProvider())
	err := s.OpenHole(context.Background(), "nowhere")
	assert.ErrorIs(t, err, ErrNoSnapshot)
	assert.Equal(t, "Start", rootOf(t, s).Label)
}

func TestExportAndImport(t *testing.T) {
	s, _ := newTestSession(t, echoProvider())
	ctx := context.Background()
	_, _, err := waitClick(t, s, rootOf(t, s).ID)
	require.NoError(t, err)
	dir := t.TempDir()

	dotPath := filepath.Join(dir, "start.dot")
	require.NoError(t, s.ExportHole(ctx, "", dotPath, ""))
	data, err := os.ReadFile(dotPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "n0 -> n1")

	jsonPath := filepath.Join(dir, "start.json")
	require.NoError(t, s.ExportHole(ctx, "", jsonPath, "json"))
	_, err = s.Burrow(ctx)
	require.NoError(t, err)

	key, err := s.ImportHole(ctx, jsonPath)
	require.NoError(t, err)
	assert.Equal(t, "start", key)
	f, err := s.Frame()
	require.NoError(t, err)
	assert.Len(t, f.Nodes, 6)
	assert.Equal(t, "start", f.Hole)
}

func TestSubscribeReceivesFrames(t *testing.T) {
	s, _ := newTestSession(t, echoProvider())
	frames := make(chan model.Frame, 16)
	cancel, err := s.Subscribe(func(f model.Frame) { frames <- f })
	require.NoError(t, err)
	first := <-frames

	require.NoError(t, s.Pan(10, 0))
	next := <-frames
	assert.Greater(t, next.Sequence, first.Sequence)
	assert.InDelta(t, first.Transform.OffsetX+10, next.Transform.OffsetX, 1e-9)

	cancel()
	require.NoError(t, s.Pan(10, 0))
	assert.Never(t, func() bool { return len(frames) > 0 }, 50*time.Millisecond, 10*time.Millisecond)
}

func TestWheelZoomSequence(t *testing.T) {
	s, _ := newTestSession(t, echoProvider())
	require.NoError(t, s.Wheel(100, 100, -1))
	require.NoError(t, s.Wheel(100, 100, -1))
	f, err := s.Frame()
	require.NoError(t, err)
	require.NoError(t, s.ZoomAt(100, 100, f.Transform.Scale-0.3))
	f, err = s.Frame()
	require.NoError(t, err)
	assert.InDelta(t, 0.9, f.Transform.Scale, 1e-9)
}

func TestPhysicsLoopSeparatesNodes(t *testing.T) {
	s, snaps := newTestSession(t, echoProvider())
	ctx := context.Background()
	require.NoError(t, snaps.Save(ctx, "close", []model.Node{
		{ID: 0, ParentID: model.NoParent, Label: "a", State: model.StateUnvisited, Position: model.Position{X: 0, Y: 0}},
		{ID: 1, ParentID: model.NoParent, Label: "b", State: model.StateUnvisited, Position: model.Position{X: 50, Y: 0}},
	}))
	require.NoError(t, s.OpenHole(ctx, "close"))

	require.NoError(t, s.SetPhysics(true))
	assert.True(t, s.Physics())
	assert.Eventually(t, func() bool {
		a, err1 := s.Node(0)
		b, err2 := s.Node(1)
		return err1 == nil && err2 == nil && b.Position.X-a.Position.X >= 100
	}, 2*time.Second, 10*time.Millisecond)
	require.NoError(t, s.SetPhysics(false))
	assert.False(t, s.Physics())
}

func TestStepPhysics(t *testing.T) {
	s, snaps := newTestSession(t, echoProvider())
	ctx := context.Background()
	require.NoError(t, snaps.Save(ctx, "close", []model.Node{
		{ID: 0, ParentID: model.NoParent, Label: "a", State: model.StateUnvisited},
		{ID: 1, ParentID: model.NoParent, Label: "b", State: model.StateUnvisited, Position: model.Position{X: 10}},
	}))
	require.NoError(t, s.OpenHole(ctx, "close"))
	moved, err := s.StepPhysics(1)
	require.NoError(t, err)
	assert.Equal(t, 1, moved)
}

func TestKeyPanLoop(t *testing.T) {
	s, _ := newTestSession(t, echoProvider())
	before, err := s.Frame()
	require.NoError(t, err)
	require.NoError(t, s.KeyDown("a"))
	assert.Eventually(t, func() bool {
		f, err := s.Frame()
		return err == nil && f.Transform.OffsetX >= before.Transform.OffsetX+30
	}, 2*time.Second, 10*time.Millisecond)
	require.NoError(t, s.KeyUp("a"))
}

func TestNodeDragSuppressesClick(t *testing.T) {
	s, _ := newTestSession(t, echoProvider())
	root := rootOf(t, s)
	require.NoError(t, s.NodeMouseDown(root.ID, 100, 100))
	require.NoError(t, s.MouseMove(120, 100))
	require.NoError(t, s.MouseUp())

	n, err := s.Node(root.ID)
	require.NoError(t, err)
	assert.InDelta(t, 1020, n.Position.X, 1e-9)

	res, _, err := waitClick(t, s, root.ID)
	require.NoError(t, err)
	assert.Equal(t, controller.ActionIgnore, res.Action)
}

func TestCommandRun(t *testing.T) {
	s, _ := newTestSession(t, echoProvider())
	ctx := context.Background()
	root := rootOf(t, s)

	out, err := s.CommandRun(ctx, model.Command{Scope: "node", Operation: "click", Args: []string{fmt.Sprint(root.ID)}})
	require.NoError(t, err)
	click := out.(ClickOutcome)
	assert.Equal(t, "activate", click.Action)
	assert.Len(t, click.Created, 5)

	_, err = s.CommandRun(ctx, model.Command{Scope: "view", Operation: "zoom", Args: []string{"2"}})
	require.NoError(t, err)
	out, err = s.CommandRun(ctx, model.Command{Scope: "view", Operation: "show"})
	require.NoError(t, err)
	assert.Equal(t, 2.0, out.(model.Frame).Transform.Scale)

	out, err = s.CommandRun(ctx, model.Command{Scope: "hole", Operation: "current"})
	require.NoError(t, err)
	assert.Equal(t, "start", out)

	_, err = s.CommandRun(ctx, model.Command{Scope: "nope", Operation: "x"})
	assert.Error(t, err)
	_, err = s.CommandRun(ctx, model.Command{Scope: "node", Operation: "click"})
	assert.Error(t, err)
	_, err = s.CommandRun(ctx, model.Command{Scope: "node", Operation: "click", Args: []string{"abc"}})
	assert.Error(t, err)
}

func TestClosedSessionRejectsWork(t *testing.T) {
	s, _ := newTestSession(t, echoProvider())
	require.NoError(t, s.Close())
	_, err := s.Frame()
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, s.Pan(1, 1), ErrClosed)
}
