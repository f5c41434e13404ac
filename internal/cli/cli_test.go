package cli

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"habitat/internal/model"
	"habitat/internal/session"
)

type fakeRunner struct {
	got    []model.Command
	result interface{}
	err    error
}

func (f *fakeRunner) CommandRun(ctx context.Context, cmd model.Command) (interface{}, error) {
	f.got = append(f.got, cmd)
	if cmd.Scope == "hole" && cmd.Operation == "current" {
		return "start", nil
	}
	return f.result, f.err
}

func TestParseArgs(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"node click 3", []string{"node", "click", "3"}},
		{`hole export "my hole.json"`, []string{"hole", "export", "my hole.json"}},
		{"  view   pan 1  2 ", []string{"view", "pan", "1", "2"}},
		{`hole open ""`, []string{"hole", "open", ""}},
		{"", nil},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ParseArgs(tt.in), tt.in)
	}
}

func TestExecuteRunsCommand(t *testing.T) {
	r := &fakeRunner{result: []model.Node{{ID: 0, ParentID: model.NoParent, Label: "Start", State: model.StateCurrent}}}
	var out bytes.Buffer
	c := NewCLI(r, nil, &out, false)

	require.NoError(t, c.Execute(context.Background(), "Node LIST"))
	require.Len(t, r.got, 1)
	assert.Equal(t, model.Command{Scope: "node", Operation: "list", Args: []string{}}, r.got[0])
	assert.Equal(t, "* Start [0]\n", out.String())
}

func TestExecuteRendersClick(t *testing.T) {
	r := &fakeRunner{result: session.ClickOutcome{
		Action:  "activate",
		Node:    model.Node{ID: 0, Label: "Start", State: model.StateCurrent},
		Created: []model.Node{{ID: 1, ParentID: 0, Label: "Ants"}},
	}}
	var out bytes.Buffer
	require.NoError(t, NewCLI(r, nil, &out, false).Execute(context.Background(), "node click 0"))
	assert.Contains(t, out.String(), "Start: 1 new topics")
	assert.Contains(t, out.String(), "o Ants [1]")
}

func TestExecuteHoleListMarksCurrent(t *testing.T) {
	r := &fakeRunner{result: []model.HoleInfo{{Key: "start", NodeCount: 3}}}
	var out bytes.Buffer
	require.NoError(t, NewCLI(r, nil, &out, false).Execute(context.Background(), "hole list"))
	assert.Contains(t, out.String(), "* start (3 nodes")
}

func TestExecuteErrorsAndExit(t *testing.T) {
	r := &fakeRunner{err: errors.New("invalid command scope: x")}
	var out bytes.Buffer
	c := NewCLI(r, nil, &out, false)

	assert.EqualError(t, c.Execute(context.Background(), "x y"), "invalid command scope: x")
	assert.ErrorIs(t, c.Execute(context.Background(), "exit"), ErrExit)
	assert.NoError(t, c.Execute(context.Background(), "   "))
}

func TestHelp(t *testing.T) {
	var out bytes.Buffer
	c := NewCLI(&fakeRunner{}, nil, &out, false)
	require.NoError(t, c.Execute(context.Background(), "help hole export"))
	assert.Contains(t, out.String(), "Syntax: hole export <filename> [json|xml|dot] [key]")

	out.Reset()
	require.NoError(t, c.Execute(context.Background(), "help physics"))
	assert.Contains(t, out.String(), "Commands for physics:")
	assert.Contains(t, out.String(), "step")
}
