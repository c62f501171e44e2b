package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"strings"

	"github.com/go-logr/logr"

	"github.com/stacklok/gateway-release-server/internal/manifest"
	"github.com/stacklok/gateway-release-server/internal/models"
)

//go:generate mockgen -destination=mocks/mock_registry.go -package=mocks -source=registry.go Registry,Locator

// ErrInvalidPrefix is returned for prefixes that would address more than one stage
var ErrInvalidPrefix = errors.New("invalid key prefix")

// ErrInvalidManifest is returned when an object fails validation
var ErrInvalidManifest = errors.New("invalid manifest")

// Registry is the manifest store of a single gateway instance
type Registry interface {
	// Apply creates or replaces one object under prefix
	Apply(ctx context.Context, prefix string, obj *manifest.Object) error
	// SyncByPrefix makes the content under prefix equal to objs
	SyncByPrefix(ctx context.Context, prefix string, objs []*manifest.Object) error
	// DeleteByPrefix removes every object under prefix
	DeleteByPrefix(ctx context.Context, prefix string) error
	// IterByKind yields the objects of one kind stored under prefix, ordered by name
	IterByKind(ctx context.Context, prefix string, kind manifest.Kind) iter.Seq2[*manifest.Object, error]
}

// Locator hands out the registry of a gateway instance
type Locator interface {
	For(ctx context.Context, target *models.MicroGateway) (Registry, error)
}

// KVRegistry implements Registry on top of a KV store, keeping each object as JSON
// under prefix + kind + "/" + name.
type KVRegistry struct {
	kv KV
}

var _ Registry = (*KVRegistry)(nil)

// New returns a registry backed by kv
func New(kv KV) *KVRegistry {
	return &KVRegistry{kv: kv}
}

// Apply implements Registry
func (r *KVRegistry) Apply(ctx context.Context, prefix string, obj *manifest.Object) error {
	if err := checkPrefix(prefix); err != nil {
		return err
	}
	if err := obj.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidManifest, err)
	}

	// serializing stores an independent copy
	data, err := json.Marshal(obj)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", obj.Key(), err)
	}
	if err := r.kv.Put(ctx, prefix+obj.Key(), data); err != nil {
		return fmt.Errorf("failed to put %s%s: %w", prefix, obj.Key(), err)
	}
	return nil
}

// SyncByPrefix implements Registry. It clears the prefix, then applies objs.
func (r *KVRegistry) SyncByPrefix(ctx context.Context, prefix string, objs []*manifest.Object) error {
	if err := r.DeleteByPrefix(ctx, prefix); err != nil {
		return err
	}
	for _, obj := range objs {
		if err := r.Apply(ctx, prefix, obj); err != nil {
			return fmt.Errorf("sync of %s aborted: %w", prefix, err)
		}
	}

	logr.FromContextOrDiscard(ctx).V(1).Info("Synced registry prefix", "prefix", prefix, "objects", len(objs))
	return nil
}

// DeleteByPrefix implements Registry
func (r *KVRegistry) DeleteByPrefix(ctx context.Context, prefix string) error {
	if err := checkPrefix(prefix); err != nil {
		return err
	}

	entries, err := r.kv.List(ctx, prefix)
	if err != nil {
		return fmt.Errorf("failed to list %s: %w", prefix, err)
	}
	for _, e := range entries {
		if err := r.kv.Delete(ctx, e.Key); err != nil {
			return fmt.Errorf("failed to delete %s: %w", e.Key, err)
		}
	}
	return nil
}

// IterByKind implements Registry. A listing or decoding failure is yielded once
// and ends the sequence.
func (r *KVRegistry) IterByKind(
	ctx context.Context,
	prefix string,
	kind manifest.Kind,
) iter.Seq2[*manifest.Object, error] {
	return func(yield func(*manifest.Object, error) bool) {
		if err := checkPrefix(prefix); err != nil {
			yield(nil, err)
			return
		}

		entries, err := r.kv.List(ctx, prefix+string(kind)+"/")
		if err != nil {
			yield(nil, fmt.Errorf("failed to list %s%s: %w", prefix, kind, err))
			return
		}
		for _, e := range entries {
			var obj manifest.Object
			if err := json.Unmarshal(e.Value, &obj); err != nil {
				yield(nil, fmt.Errorf("failed to decode %s: %w", e.Key, err))
				return
			}
			if !yield(&obj, nil) {
				return
			}
		}
	}
}

// Collect drains seq into a slice, stopping at the first error
func Collect(seq iter.Seq2[*manifest.Object, error]) ([]*manifest.Object, error) {
	var out []*manifest.Object
	for obj, err := range seq {
		if err != nil {
			return nil, err
		}
		out = append(out, obj)
	}
	return out, nil
}

// checkPrefix accepts exactly "/<gateway>/<stage>/" with non-empty segments
func checkPrefix(prefix string) error {
	parts := strings.Split(prefix, "/")
	if len(parts) != 4 || parts[0] != "" || parts[1] == "" || parts[2] == "" || parts[3] != "" {
		return fmt.Errorf("%w: %q", ErrInvalidPrefix, prefix)
	}
	return nil
}
