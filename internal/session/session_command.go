package session

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"habitat/internal/log"
	"habitat/internal/model"
)

// CommandHandler is a function type for command handlers
type CommandHandler func(*Session, context.Context, model.Command) (interface{}, error)

// ClickOutcome is the result of a resolved node click.
type ClickOutcome struct {
	Action  string       `json:"action"`
	Node    model.Node   `json:"node"`
	Created []model.Node `json:"created,omitempty"`
}

// initCommandHandlers initializes the command handlers map
func (s *Session) initCommandHandlers() {
	s.commandHandlers = map[string]map[string]CommandHandler{
		"node":    initNodeCommandHandlers(),
		"view":    initViewCommandHandlers(),
		"physics": initPhysicsCommandHandlers(),
		"hole":    initHoleCommandHandlers(),
		"input":   initInputCommandHandlers(),
	}
}

// CommandRun executes a command within the session context
func (s *Session) CommandRun(ctx context.Context, cmd model.Command) (interface{}, error) {
	s.logger.Command(ctx, "Running command", log.Fields{"scope": cmd.Scope, "operation": cmd.Operation, "args": cmd.Args})

	scopeHandlers, ok := s.commandHandlers[cmd.Scope]
	if !ok {
		return nil, fmt.Errorf("invalid command scope: %s", cmd.Scope)
	}
	handler, ok := scopeHandlers[cmd.Operation]
	if !ok {
		return nil, fmt.Errorf("invalid %s operation: %s", cmd.Scope, cmd.Operation)
	}

	result, err := handler(s, ctx, cmd)
	if err != nil {
		s.logger.Error(ctx, "Command execution failed", log.Fields{"scope": cmd.Scope, "operation": cmd.Operation, "error": err})
	}
	return result, err
}

func argCount(cmd model.Command, min, max int, usage string) error {
	if len(cmd.Args) < min || len(cmd.Args) > max {
		return fmt.Errorf("%s %s requires %s", cmd.Scope, cmd.Operation, usage)
	}
	return nil
}

func intArg(cmd model.Command, i int) (int, error) {
	v, err := strconv.Atoi(cmd.Args[i])
	if err != nil {
		return 0, fmt.Errorf("invalid integer '%s'", cmd.Args[i])
	}
	return v, nil
}

func floatArgs(cmd model.Command, from int) ([]float64, error) {
	out := make([]float64, 0, len(cmd.Args)-from)
	for _, a := range cmd.Args[from:] {
		v, err := strconv.ParseFloat(a, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid number '%s'", a)
		}
		out = append(out, v)
	}
	return out, nil
}

func initNodeCommandHandlers() map[string]CommandHandler {
	return map[string]CommandHandler{
		"click":  handleNodeClick,
		"open":   handleNodeOpen,
		"drag":   handleNodeDrag,
		"center": handleNodeCenter,
		"list":   handleNodeList,
	}
}

func handleNodeClick(s *Session, ctx context.Context, cmd model.Command) (interface{}, error) {
	if err := argCount(cmd, 1, 1, "1 argument: <id>"); err != nil {
		return nil, err
	}
	id, err := intArg(cmd, 0)
	if err != nil {
		return nil, err
	}
	res, err := s.Click(id)
	if err != nil {
		return nil, err
	}
	created, err := res.Wait(ctx)
	if err != nil {
		return nil, err
	}
	return ClickOutcome{Action: res.Action.String(), Node: res.Node, Created: created}, nil
}

func handleNodeOpen(s *Session, ctx context.Context, cmd model.Command) (interface{}, error) {
	if err := argCount(cmd, 1, 1, "1 argument: <id>"); err != nil {
		return nil, err
	}
	id, err := intArg(cmd, 0)
	if err != nil {
		return nil, err
	}
	return s.Detail(id)
}

func handleNodeDrag(s *Session, ctx context.Context, cmd model.Command) (interface{}, error) {
	if err := argCount(cmd, 3, 3, "3 arguments: <id> <dx> <dy>"); err != nil {
		return nil, err
	}
	id, err := intArg(cmd, 0)
	if err != nil {
		return nil, err
	}
	d, err := floatArgs(cmd, 1)
	if err != nil {
		return nil, err
	}
	return nil, s.Drag(id, d[0], d[1])
}

func handleNodeCenter(s *Session, ctx context.Context, cmd model.Command) (interface{}, error) {
	if err := argCount(cmd, 1, 1, "1 argument: <id>"); err != nil {
		return nil, err
	}
	id, err := intArg(cmd, 0)
	if err != nil {
		return nil, err
	}
	return nil, s.Center(id)
}

func handleNodeList(s *Session, ctx context.Context, cmd model.Command) (interface{}, error) {
	f, err := s.Frame()
	if err != nil {
		return nil, err
	}
	return f.Nodes, nil
}

func initViewCommandHandlers() map[string]CommandHandler {
	return map[string]CommandHandler{
		"pan":    handleViewPan,
		"zoom":   handleViewZoom,
		"reset":  handleViewReset,
		"resize": handleViewResize,
		"show":   handleViewShow,
	}
}

func handleViewPan(s *Session, ctx context.Context, cmd model.Command) (interface{}, error) {
	if err := argCount(cmd, 2, 2, "2 arguments: <dx> <dy>"); err != nil {
		return nil, err
	}
	d, err := floatArgs(cmd, 0)
	if err != nil {
		return nil, err
	}
	return nil, s.Pan(d[0], d[1])
}

// handleViewZoom zooms about a screen point, or about the viewport center
// when only the scale is given.
func handleViewZoom(s *Session, ctx context.Context, cmd model.Command) (interface{}, error) {
	if len(cmd.Args) != 1 && len(cmd.Args) != 3 {
		return nil, errors.New("view zoom requires 1 or 3 arguments: <scale> | <x> <y> <scale>")
	}
	v, err := floatArgs(cmd, 0)
	if err != nil {
		return nil, err
	}
	if len(v) == 3 {
		return nil, s.ZoomAt(v[0], v[1], v[2])
	}
	f, err := s.Frame()
	if err != nil {
		return nil, err
	}
	return nil, s.ZoomAt(f.Transform.Width/2, f.Transform.Height/2, v[0])
}

func handleViewReset(s *Session, ctx context.Context, cmd model.Command) (interface{}, error) {
	return nil, s.Reset()
}

func handleViewResize(s *Session, ctx context.Context, cmd model.Command) (interface{}, error) {
	if err := argCount(cmd, 2, 2, "2 arguments: <width> <height>"); err != nil {
		return nil, err
	}
	v, err := floatArgs(cmd, 0)
	if err != nil {
		return nil, err
	}
	return nil, s.Resize(v[0], v[1])
}

func handleViewShow(s *Session, ctx context.Context, cmd model.Command) (interface{}, error) {
	return s.Frame()
}

func initPhysicsCommandHandlers() map[string]CommandHandler {
	return map[string]CommandHandler{
		"on":     func(s *Session, _ context.Context, _ model.Command) (interface{}, error) { return nil, s.SetPhysics(true) },
		"off":    func(s *Session, _ context.Context, _ model.Command) (interface{}, error) { return nil, s.SetPhysics(false) },
		"status": func(s *Session, _ context.Context, _ model.Command) (interface{}, error) { return s.Physics(), nil },
		"step":   handlePhysicsStep,
	}
}

func handlePhysicsStep(s *Session, ctx context.Context, cmd model.Command) (interface{}, error) {
	if err := argCount(cmd, 0, 1, "0 or 1 argument: [ticks]"); err != nil {
		return nil, err
	}
	n := 1
	if len(cmd.Args) == 1 {
		var err error
		if n, err = intArg(cmd, 0); err != nil {
			return nil, err
		}
	}
	return s.StepPhysics(n)
}

func initHoleCommandHandlers() map[string]CommandHandler {
	return map[string]CommandHandler{
		"burrow":  handleHoleBurrow,
		"list":    handleHoleList,
		"open":    handleHoleOpen,
		"save":    handleHoleSave,
		"delete":  handleHoleDelete,
		"export":  handleHoleExport,
		"import":  handleHoleImport,
		"current": func(s *Session, _ context.Context, _ model.Command) (interface{}, error) { return s.Hole(), nil },
	}
}

func handleHoleBurrow(s *Session, ctx context.Context, cmd model.Command) (interface{}, error) {
	return s.Burrow(ctx)
}

func handleHoleList(s *Session, ctx context.Context, cmd model.Command) (interface{}, error) {
	return s.ListHoles(ctx)
}

func handleHoleOpen(s *Session, ctx context.Context, cmd model.Command) (interface{}, error) {
	if err := argCount(cmd, 1, 1, "1 argument: <key>"); err != nil {
		return nil, err
	}
	return nil, s.OpenHole(ctx, cmd.Args[0])
}

func handleHoleSave(s *Session, ctx context.Context, cmd model.Command) (interface{}, error) {
	return s.SaveHole(ctx)
}

func handleHoleDelete(s *Session, ctx context.Context, cmd model.Command) (interface{}, error) {
	if err := argCount(cmd, 1, 1, "1 argument: <key>"); err != nil {
		return nil, err
	}
	return nil, s.DeleteHole(ctx, cmd.Args[0])
}

func handleHoleExport(s *Session, ctx context.Context, cmd model.Command) (interface{}, error) {
	if err := argCount(cmd, 1, 3, "1 to 3 arguments: <filename> [json|xml|dot] [key]"); err != nil {
		return nil, err
	}
	var format, key string
	if len(cmd.Args) > 1 {
		format = cmd.Args[1]
	}
	if len(cmd.Args) > 2 {
		key = cmd.Args[2]
	}
	return nil, s.ExportHole(ctx, key, cmd.Args[0], format)
}

func handleHoleImport(s *Session, ctx context.Context, cmd model.Command) (interface{}, error) {
	if err := argCount(cmd, 1, 1, "1 argument: <filename>"); err != nil {
		return nil, err
	}
	return s.ImportHole(ctx, cmd.Args[0])
}

// Input commands carry raw pointer and keyboard events from a remote
// renderer. Clicks do not wait for the provider.
func initInputCommandHandlers() map[string]CommandHandler {
	return map[string]CommandHandler{
		"mousedown":  handleInputPoint((*Session).MouseDown),
		"mousemove":  handleInputPoint((*Session).MouseMove),
		"mouseup":    func(s *Session, _ context.Context, _ model.Command) (interface{}, error) { return nil, s.MouseUp() },
		"mouseleave": func(s *Session, _ context.Context, _ model.Command) (interface{}, error) { return nil, s.MouseLeave() },
		"nodedown":   handleInputNodeDown,
		"wheel":      handleInputWheel,
		"keydown":    handleInputKey((*Session).KeyDown),
		"keyup":      handleInputKey((*Session).KeyUp),
		"blur":       func(s *Session, _ context.Context, _ model.Command) (interface{}, error) { return nil, s.Blur() },
		"click":      handleInputClick,
	}
}

func handleInputPoint(fn func(*Session, float64, float64) error) CommandHandler {
	return func(s *Session, ctx context.Context, cmd model.Command) (interface{}, error) {
		if err := argCount(cmd, 2, 2, "2 arguments: <x> <y>"); err != nil {
			return nil, err
		}
		p, err := floatArgs(cmd, 0)
		if err != nil {
			return nil, err
		}
		return nil, fn(s, p[0], p[1])
	}
}

func handleInputKey(fn func(*Session, string) error) CommandHandler {
	return func(s *Session, ctx context.Context, cmd model.Command) (interface{}, error) {
		if err := argCount(cmd, 1, 1, "1 argument: <key>"); err != nil {
			return nil, err
		}
		return nil, fn(s, cmd.Args[0])
	}
}

func handleInputNodeDown(s *Session, ctx context.Context, cmd model.Command) (interface{}, error) {
	if err := argCount(cmd, 3, 3, "3 arguments: <id> <x> <y>"); err != nil {
		return nil, err
	}
	id, err := intArg(cmd, 0)
	if err != nil {
		return nil, err
	}
	p, err := floatArgs(cmd, 1)
	if err != nil {
		return nil, err
	}
	return nil, s.NodeMouseDown(id, p[0], p[1])
}

func handleInputWheel(s *Session, ctx context.Context, cmd model.Command) (interface{}, error) {
	if err := argCount(cmd, 3, 3, "3 arguments: <x> <y> <deltaY>"); err != nil {
		return nil, err
	}
	v, err := floatArgs(cmd, 0)
	if err != nil {
		return nil, err
	}
	return nil, s.Wheel(v[0], v[1], v[2])
}

func handleInputClick(s *Session, ctx context.Context, cmd model.Command) (interface{}, error) {
	if err := argCount(cmd, 1, 1, "1 argument: <id>"); err != nil {
		return nil, err
	}
	id, err := intArg(cmd, 0)
	if err != nil {
		return nil, err
	}
	res, err := s.Click(id)
	if err != nil {
		return nil, err
	}
	return ClickOutcome{Action: res.Action.String(), Node: res.Node}, nil
}
