package distributor

import (
	"context"
	"errors"

	"github.com/cenkalti/backoff/v5"
	"github.com/go-logr/logr"

	"github.com/stacklok/gateway-release-server/internal/models"
	"github.com/stacklok/gateway-release-server/internal/naming"
	"github.com/stacklok/gateway-release-server/internal/registry"
)

// RegistryDistributor replaces the (gateway, stage) prefix of the instance
// registry with the release manifests.
type RegistryDistributor struct {
	locator registry.Locator
	locks   *KeyedMutex
	inst    instrumentation
}

var _ Distributor = (*RegistryDistributor)(nil)

// NewRegistryDistributor returns a distributor writing through locator
func NewRegistryDistributor(locator registry.Locator, opts ...Option) *RegistryDistributor {
	return &RegistryDistributor{
		locator: locator,
		locks:   NewKeyedMutex(),
		inst:    newInstrumentation(StrategyRegistry, opts),
	}
}

// Distribute implements Distributor
func (d *RegistryDistributor) Distribute(
	ctx context.Context,
	rel *Release,
	target *models.MicroGateway,
	attemptID string,
) error {
	scope := rel.Scope()
	return d.inst.observe(ctx, OpDistribute, scope, target, func(ctx context.Context) error {
		reg, err := d.locator.For(ctx, target)
		if err != nil {
			return err
		}

		prefix := naming.KeyPrefix(scope.Gateway, scope.Stage)
		unlock := d.locks.Lock(target.ID + prefix)
		defer unlock()

		logr.FromContextOrDiscard(ctx).V(1).Info("Syncing registry prefix",
			"target", target.ID, "prefix", prefix, "manifests", len(rel.Manifests), "attempt", attemptID)
		return permanentIfInvalid(reg.SyncByPrefix(ctx, prefix, rel.Manifests))
	})
}

// Revoke implements Distributor
func (d *RegistryDistributor) Revoke(
	ctx context.Context,
	scope Scope,
	target *models.MicroGateway,
	attemptID string,
) error {
	return d.inst.observe(ctx, OpRevoke, scope, target, func(ctx context.Context) error {
		reg, err := d.locator.For(ctx, target)
		if err != nil {
			return err
		}

		prefix := naming.KeyPrefix(scope.Gateway, scope.Stage)
		unlock := d.locks.Lock(target.ID + prefix)
		defer unlock()

		logr.FromContextOrDiscard(ctx).V(1).Info("Deleting registry prefix",
			"target", target.ID, "prefix", prefix, "attempt", attemptID)
		return permanentIfInvalid(reg.DeleteByPrefix(ctx, prefix))
	})
}

// permanentIfInvalid marks registry errors caused by the input itself
func permanentIfInvalid(err error) error {
	if errors.Is(err, registry.ErrInvalidPrefix) || errors.Is(err, registry.ErrInvalidManifest) {
		return backoff.Permanent(err)
	}
	return err
}
