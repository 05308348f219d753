// Package registry provides discovery of model-serving endpoints.
//
// Test harnesses frequently run against models served by short-lived
// workers (spot GPU instances, per-branch deployment previews). Instead
// of hard-coding endpoint URLs, serving workers register themselves in
// etcd under the model name they serve, and harness processes resolve a
// live endpoint at run time. Lease TTLs remove crashed workers
// automatically, so a resolve never returns an endpoint whose worker
// stopped renewing its lease.
package registry

import (
	"context"
	"time"
)

// EndpointInfo describes one registered model-serving instance.
//
// Multiple instances can serve the same model concurrently, each with a
// unique InstanceID. Resolvers pick among them.
type EndpointInfo struct {
	// Model is the served model's name (e.g., "ner-bert-base").
	Model string `json:"model"`

	// Version is the model or deployment version (e.g., "2024-11-01").
	Version string `json:"version"`

	// InstanceID uniquely identifies this serving instance, typically a UUID.
	InstanceID string `json:"instance_id"`

	// URL is the prediction endpoint, e.g. "http://10.0.3.7:8080/predict".
	URL string `json:"url"`

	// Tasks lists the task names this instance can serve.
	Tasks []string `json:"tasks,omitempty"`

	// Metadata carries deployment-specific attributes (hardware, region).
	Metadata map[string]string `json:"metadata,omitempty"`

	// StartedAt is when this instance came up.
	StartedAt time.Time `json:"started_at"`
}

// Registry is the endpoint registration and discovery interface.
// Implementations must be safe for concurrent use.
type Registry interface {
	// Register adds a serving instance under its model name. The entry
	// stays visible while the lease is renewed; a background goroutine
	// renews it every TTL/3. Re-registering the same InstanceID
	// replaces the existing entry.
	Register(ctx context.Context, info EndpointInfo) error

	// Deregister revokes the instance's lease, removing it immediately.
	// Deregistering an unknown instance is a no-op.
	Deregister(ctx context.Context, info EndpointInfo) error

	// Resolve returns all live instances serving the named model. The
	// slice may be empty; callers decide whether that is fatal.
	Resolve(ctx context.Context, model string) ([]EndpointInfo, error)

	// Watch emits the current instance list for a model whenever it
	// changes. The initial state is sent immediately. The channel closes
	// when the context is canceled or the registry is closed.
	Watch(ctx context.Context, model string) (<-chan []EndpointInfo, error)

	// Close stops keepalives and watches and releases the connection.
	Close() error
}

// Config holds etcd connection settings for the registry.
type Config struct {
	// Endpoints is the etcd cluster, e.g. ["localhost:2379"].
	Endpoints []string `json:"endpoints" yaml:"endpoints"`

	// Namespace prefixes all keys. Entries live under
	// /{namespace}/models/{model}/{instance-id}. Default: "langtest".
	Namespace string `json:"namespace" yaml:"namespace"`

	// TTL is the lease time-to-live in seconds. Default: 30.
	TTL int `json:"ttl" yaml:"ttl"`

	// TLS enables mutual TLS to etcd when set.
	TLS *TLSConfig `json:"tls" yaml:"tls"`
}

// TLSConfig holds certificate paths for mutual TLS to etcd.
type TLSConfig struct {
	Enabled  bool   `json:"enabled" yaml:"enabled"`
	CertFile string `json:"cert_file" yaml:"cert_file"`
	KeyFile  string `json:"key_file" yaml:"key_file"`
	CAFile   string `json:"ca_file" yaml:"ca_file"`
}
