package distributor

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/cenkalti/backoff/v5"
	"github.com/go-logr/logr"
	"sigs.k8s.io/yaml"

	"github.com/stacklok/gateway-release-server/internal/manifest"
	"github.com/stacklok/gateway-release-server/internal/models"
)

// ValuesFile is the file name of a rendered bundle
const ValuesFile = "values.yaml"

// BundleValues is the document written to ValuesFile
type BundleValues struct {
	Gateway           string             `json:"gateway"`
	Stage             string             `json:"stage"`
	InstanceID        string             `json:"instanceID"`
	ResourceVersionID int64              `json:"resourceVersionID"`
	Manifests         []*manifest.Object `json:"manifests"`
}

// BundleDistributor renders releases as values files under
// <dir>/<instance>/<gateway>/<stage>/ for a templated deployment flow.
type BundleDistributor struct {
	dir   string
	locks *KeyedMutex
	inst  instrumentation
}

var _ Distributor = (*BundleDistributor)(nil)

// NewBundleDistributor returns a distributor rendering into dir
func NewBundleDistributor(dir string, opts ...Option) *BundleDistributor {
	return &BundleDistributor{
		dir:   dir,
		locks: NewKeyedMutex(),
		inst:  newInstrumentation(StrategyBundle, opts),
	}
}

// Render returns the values document of rel for target. The output only
// depends on its inputs: manifests are ordered by kind and name.
func Render(rel *Release, target *models.MicroGateway) ([]byte, error) {
	objs := slices.Clone(rel.Manifests)
	manifest.SortByKey(objs)

	out, err := yaml.Marshal(&BundleValues{
		Gateway:           rel.Gateway,
		Stage:             rel.Stage,
		InstanceID:        target.ID,
		ResourceVersionID: rel.ResourceVersionID,
		Manifests:         objs,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to render values: %w", err)
	}
	return out, nil
}

// BundlePath returns the directory holding the bundle of scope for target
func (d *BundleDistributor) BundlePath(scope Scope, target *models.MicroGateway) (string, error) {
	parts := []string{target.ID, scope.Gateway, scope.Stage}
	for _, part := range parts {
		if part == "" || part == "." || part == ".." || strings.ContainsAny(part, `/\`) {
			return "", fmt.Errorf("invalid bundle path component %q", part)
		}
	}
	return filepath.Join(append([]string{d.dir}, parts...)...), nil
}

// Distribute implements Distributor
func (d *BundleDistributor) Distribute(
	ctx context.Context,
	rel *Release,
	target *models.MicroGateway,
	attemptID string,
) error {
	scope := rel.Scope()
	return d.inst.observe(ctx, OpDistribute, scope, target, func(ctx context.Context) error {
		dir, err := d.BundlePath(scope, target)
		if err != nil {
			return backoff.Permanent(err)
		}
		data, err := Render(rel, target)
		if err != nil {
			return backoff.Permanent(err)
		}

		unlock := d.locks.Lock(dir)
		defer unlock()

		if err := writeAtomic(dir, ValuesFile, data); err != nil {
			return err
		}
		logr.FromContextOrDiscard(ctx).V(1).Info("Rendered bundle", "path", dir, "attempt", attemptID)
		return nil
	})
}

// Revoke implements Distributor. Revoking a missing bundle is not an error.
func (d *BundleDistributor) Revoke(
	ctx context.Context,
	scope Scope,
	target *models.MicroGateway,
	attemptID string,
) error {
	return d.inst.observe(ctx, OpRevoke, scope, target, func(ctx context.Context) error {
		dir, err := d.BundlePath(scope, target)
		if err != nil {
			return backoff.Permanent(err)
		}

		unlock := d.locks.Lock(dir)
		defer unlock()

		if err := os.RemoveAll(dir); err != nil {
			return fmt.Errorf("failed to remove bundle: %w", err)
		}
		logr.FromContextOrDiscard(ctx).V(1).Info("Removed bundle", "path", dir, "attempt", attemptID)
		return nil
	})
}

// writeAtomic writes data to dir/name through a temporary file and a rename
func writeAtomic(dir, name string, data []byte) error {
	if err := os.MkdirAll(dir, 0750); err != nil {
		return fmt.Errorf("failed to create bundle directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+name+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temporary file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to write temporary file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temporary file: %w", err)
	}
	if err := os.Rename(tmpName, filepath.Join(dir, name)); err != nil {
		return fmt.Errorf("failed to move bundle into place: %w", err)
	}
	return nil
}
