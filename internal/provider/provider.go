// Package provider supplies topics for new nodes.
package provider

import (
	"context"
	"errors"
	"fmt"

	"habitat/internal/model"
)

var (
	ErrShortBatch   = errors.New("provider returned fewer topics than requested")
	ErrBatchSize    = errors.New("provider returned more topics than requested")
	ErrInvalidCount = errors.New("topic count must be positive")
)

// Request asks for Count topics related to Seed. Journey is the chain of
// labels that led to Seed, root first. Exclude lists titles already on the
// canvas.
type Request struct {
	Seed    string
	Journey []string
	Count   int
	Exclude []string
}

// TopicProvider generates related topics. Implementations may block on the
// network and must honor ctx.
type TopicProvider interface {
	RequestTopics(ctx context.Context, req Request) ([]model.Topic, error)
}

// Func adapts a function to TopicProvider.
type Func func(ctx context.Context, req Request) ([]model.Topic, error)

func (f Func) RequestTopics(ctx context.Context, req Request) ([]model.Topic, error) {
	return f(ctx, req)
}

type checked struct {
	next TopicProvider
}

// Checked wraps p so that any batch whose size differs from the requested
// count is reported as an error instead of being padded or truncated.
func Checked(p TopicProvider) TopicProvider {
	if c, ok := p.(checked); ok {
		return c
	}
	return checked{next: p}
}

func (c checked) RequestTopics(ctx context.Context, req Request) ([]model.Topic, error) {
	if req.Count <= 0 {
		return nil, fmt.Errorf("count %d: %w", req.Count, ErrInvalidCount)
	}
	topics, err := c.next.RequestTopics(ctx, req)
	if err != nil {
		return nil, err
	}
	switch {
	case len(topics) < req.Count:
		return nil, fmt.Errorf("got %d of %d: %w", len(topics), req.Count, ErrShortBatch)
	case len(topics) > req.Count:
		return nil, fmt.Errorf("got %d of %d: %w", len(topics), req.Count, ErrBatchSize)
	}
	return topics, nil
}
