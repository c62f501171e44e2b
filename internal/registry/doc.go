// Package registry stores the manifests distributed to gateway instances.
//
// Every gateway instance has its own Registry. Manifests of one (gateway, stage)
// live under a common key prefix (see naming.KeyPrefix), so a whole stage can be
// replaced or removed with a single prefix operation:
//
//	reg, err := locator.For(ctx, target)
//	err = reg.SyncByPrefix(ctx, naming.KeyPrefix("demo", "prod"), objs)
//	for obj, err := range reg.IterByKind(ctx, prefix, manifest.KindResource) {
//		...
//	}
//
// SyncByPrefix clears the prefix and then applies the new set. The two phases
// are not atomic: a reader can observe a partially written prefix, and a
// failure half way leaves it partially written until the next sync.
package registry
