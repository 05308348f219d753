package model

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/techthiyanes/langtest/registry"
	"github.com/techthiyanes/langtest/sample"
)

// NewDiscoveredAdapter resolves a model's serving endpoints through the
// registry and returns an adapter that spreads predictions across them.
// The endpoint list is refreshed via a registry watch, so instances that
// come and go mid-run are picked up without restarting the harness.
//
// Resolution failure at construction is fatal: a run against a model
// with no live endpoint can only produce a report full of errors.
func NewDiscoveredAdapter(ctx context.Context, reg registry.Registry, modelName string, opts RemoteOptions) (Adapter, error) {
	instances, err := reg.Resolve(ctx, modelName)
	if err != nil {
		return nil, fmt.Errorf("resolve model %s: %w", modelName, err)
	}
	if len(instances) == 0 {
		return nil, fmt.Errorf("model %s has no live endpoints", modelName)
	}

	d := &discovered{opts: opts}
	if err := d.update(instances); err != nil {
		return nil, err
	}

	updates, err := reg.Watch(ctx, modelName)
	if err != nil {
		return nil, fmt.Errorf("watch model %s: %w", modelName, err)
	}
	go func() {
		for instances := range updates {
			if len(instances) == 0 {
				// Keep the last known endpoints; an empty blip during a
				// rolling restart should not kill in-flight samples.
				continue
			}
			_ = d.update(instances)
		}
	}()

	return d, nil
}

type discovered struct {
	opts RemoteOptions
	next atomic.Uint64

	mu       sync.RWMutex
	adapters []*Remote
}

func (d *discovered) update(instances []registry.EndpointInfo) error {
	adapters := make([]*Remote, 0, len(instances))
	for _, info := range instances {
		opts := d.opts
		opts.URL = info.URL
		remote, err := NewRemote(opts)
		if err != nil {
			return fmt.Errorf("endpoint %s: %w", info.InstanceID, err)
		}
		adapters = append(adapters, remote)
	}
	d.mu.Lock()
	d.adapters = adapters
	d.mu.Unlock()
	return nil
}

// Predict implements Adapter by rotating through the live endpoints.
func (d *discovered) Predict(ctx context.Context, task sample.Task, input string) (sample.Output, error) {
	d.mu.RLock()
	adapters := d.adapters
	d.mu.RUnlock()
	if len(adapters) == 0 {
		return sample.Output{}, fmt.Errorf("no live endpoints")
	}
	i := d.next.Add(1) - 1
	return adapters[i%uint64(len(adapters))].Predict(ctx, task, input)
}
