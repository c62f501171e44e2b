// Package convertor turns validated release data into the manifests distributed
// to a gateway instance.
package convertor

import (
	"context"
	"fmt"

	"github.com/go-logr/logr"

	"github.com/stacklok/gateway-release-server/internal/manifest"
	"github.com/stacklok/gateway-release-server/internal/models"
	"github.com/stacklok/gateway-release-server/internal/releasedata"
)

// Convertor produces the manifests of one kind. Returning no manifests is valid.
type Convertor interface {
	Kind() manifest.Kind
	Convert(ctx context.Context, data *releasedata.ReleaseData, target *models.MicroGateway) ([]*manifest.Object, error)
}

// PluginLinker is told about plugins the conversion derives on its own, so the
// owner of plugin bindings can keep track of them.
type PluginLinker interface {
	LinkHeaderRewrite(ctx context.Context, gateway models.Gateway, stage models.Stage, headers map[string]string) error
}

type noopLinker struct{}

func (noopLinker) LinkHeaderRewrite(context.Context, models.Gateway, models.Stage, map[string]string) error {
	return nil
}

// Options configures the default convertors
type Options struct {
	// ControllerEndpoints are handed to every instance in its gateway config
	ControllerEndpoints []string
	// BasePathTemplate may contain {gateway}, {stage} and {instance_id}
	BasePathTemplate string
	// DomainTemplate and PathPrefixTemplate may contain {gateway} and {stage}
	DomainTemplate     string
	PathPrefixTemplate string
	// Linker defaults to a no-op
	Linker PluginLinker
}

// DefaultOrder is the order manifests are produced in
var DefaultOrder = []manifest.Kind{
	manifest.KindGatewayConfig,
	manifest.KindStage,
	manifest.KindTLS,
	manifest.KindEndpoints,
	manifest.KindService,
	manifest.KindResource,
}

// Orchestrator runs a table of convertors in a fixed order
type Orchestrator struct {
	convertors map[manifest.Kind]Convertor
	order      []manifest.Kind
}

// NewOrchestrator returns an orchestrator with the default convertor table
func NewOrchestrator(opts Options) *Orchestrator {
	if opts.Linker == nil {
		opts.Linker = noopLinker{}
	}
	return NewOrchestratorWith(DefaultOrder,
		&gatewayConfigConvertor{endpoints: opts.ControllerEndpoints, basePath: opts.BasePathTemplate},
		&stageConvertor{domain: opts.DomainTemplate, pathPrefix: opts.PathPrefixTemplate, linker: opts.Linker},
		&tlsConvertor{},
		&endpointsConvertor{},
		&serviceConvertor{},
		&resourceConvertor{},
	)
}

// NewOrchestratorWith returns an orchestrator running convertors in the given
// kind order. Kinds without a convertor are skipped.
func NewOrchestratorWith(order []manifest.Kind, convertors ...Convertor) *Orchestrator {
	table := make(map[manifest.Kind]Convertor, len(convertors))
	for _, c := range convertors {
		table[c.Kind()] = c
	}
	return &Orchestrator{convertors: table, order: order}
}

// Convert runs every convertor and returns the concatenated, validated manifests.
// Invalid or duplicate manifests are reported as *releasedata.InputError.
func (o *Orchestrator) Convert(
	ctx context.Context,
	data *releasedata.ReleaseData,
	target *models.MicroGateway,
) ([]*manifest.Object, error) {
	logger := logr.FromContextOrDiscard(ctx)

	var out []*manifest.Object
	seen := make(map[string]struct{})
	for _, kind := range o.order {
		c, ok := o.convertors[kind]
		if !ok {
			continue
		}

		objs, err := c.Convert(ctx, data, target)
		if err != nil {
			return nil, fmt.Errorf("failed to convert %s: %w", kind, err)
		}
		for _, obj := range objs {
			if err := obj.Validate(); err != nil {
				return nil, &releasedata.InputError{Field: "manifests", Reason: "invalid manifest", Err: err}
			}
			if _, dup := seen[obj.Key()]; dup {
				return nil, &releasedata.InputError{Field: "manifests", Reason: "duplicate manifest " + obj.Key()}
			}
			seen[obj.Key()] = struct{}{}
		}

		logger.V(1).Info("Converted manifests", "kind", kind, "count", len(objs))
		out = append(out, objs...)
	}
	return out, nil
}
