// Package manifest contains the typed representation of the configuration
// objects distributed to gateway instances.
package manifest

import (
	"cmp"
	"encoding/json"
	"fmt"
	"slices"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
	utiljson "k8s.io/apimachinery/pkg/util/json"

	"github.com/stacklok/gateway-release-server/internal/naming"
)

// APIVersion is the api group and version of every manifest kind
const APIVersion = "gateway.stacklok.dev/v1beta1"

// Kind identifies the type of a manifest
type Kind string

const (
	// KindGatewayConfig binds a gateway instance to its control plane
	KindGatewayConfig Kind = "GatewayConfig"
	// KindStage describes a stage of a gateway
	KindStage Kind = "GatewayStage"
	// KindService describes an upstream backend
	KindService Kind = "GatewayService"
	// KindResource describes a single route
	KindResource Kind = "GatewayResource"
	// KindTLS carries certificate material
	KindTLS Kind = "GatewayTLS"
	// KindEndpoints describes a service discovery source
	KindEndpoints Kind = "GatewayEndpoints"
)

// Kinds returns every known manifest kind
func Kinds() []Kind {
	return []Kind{KindGatewayConfig, KindStage, KindService, KindResource, KindTLS, KindEndpoints}
}

// Object is a single manifest
type Object struct {
	metav1.TypeMeta   `json:",inline"`
	metav1.ObjectMeta `json:"metadata"`

	Spec map[string]any `json:"spec,omitempty"`
}

// New builds an object of the given kind from a typed spec struct.
// spec must be a pointer to a struct with json tags.
func New(kind Kind, name string, labels map[string]string, spec any) (*Object, error) {
	obj := &Object{
		TypeMeta: metav1.TypeMeta{
			APIVersion: APIVersion,
			Kind:       string(kind),
		},
		ObjectMeta: metav1.ObjectMeta{
			Name:   name,
			Labels: labels,
		},
	}

	if spec != nil {
		u, err := runtime.DefaultUnstructuredConverter.ToUnstructured(spec)
		if err != nil {
			return nil, fmt.Errorf("failed to convert %s spec: %w", kind, err)
		}
		spec, err := normalizeSpec(u)
		if err != nil {
			return nil, fmt.Errorf("failed to normalize %s spec: %w", kind, err)
		}
		obj.Spec = spec
	}

	return obj, nil
}

// normalizeSpec re-decodes u through JSON so number types match what
// UnmarshalJSON produces: integral values become int64, others float64.
func normalizeSpec(u map[string]any) (map[string]any, error) {
	data, err := json.Marshal(u)
	if err != nil {
		return nil, err
	}
	var out map[string]any
	if err := utiljson.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetKind returns the manifest kind
func (o *Object) GetKind() Kind {
	return Kind(o.Kind)
}

// Key returns the identity of the object within a registry prefix
func (o *Object) Key() string {
	return o.Kind + "/" + o.Name
}

// DeepCopy returns an independent copy of the object
func (o *Object) DeepCopy() *Object {
	if o == nil {
		return nil
	}
	out := &Object{TypeMeta: o.TypeMeta}
	o.ObjectMeta.DeepCopyInto(&out.ObjectMeta)
	if o.Spec != nil {
		out.Spec = runtime.DeepCopyJSON(o.Spec)
	}
	return out
}

// Validate checks the invariants shared by every manifest
func (o *Object) Validate() error {
	if o == nil {
		return fmt.Errorf("manifest cannot be nil")
	}
	if !slices.Contains(Kinds(), o.GetKind()) {
		return fmt.Errorf("unknown manifest kind %q", o.Kind)
	}
	if o.Name == "" {
		return fmt.Errorf("%s: name is required", o.Kind)
	}
	if len(o.Name) > naming.MaxNameLength {
		return fmt.Errorf("%s %s: name exceeds %d characters", o.Kind, o.Name, naming.MaxNameLength)
	}
	if o.Labels[naming.LabelGateway] == "" || o.Labels[naming.LabelStage] == "" {
		return fmt.Errorf("%s %s: gateway and stage labels are required", o.Kind, o.Name)
	}
	return nil
}

// UnmarshalJSON decodes an object keeping integral spec numbers as int64,
// so a decoded object compares equal to the one that was encoded.
func (o *Object) UnmarshalJSON(data []byte) error {
	var raw struct {
		metav1.TypeMeta   `json:",inline"`
		metav1.ObjectMeta `json:"metadata"`

		Spec json.RawMessage `json:"spec,omitempty"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	var spec map[string]any
	if len(raw.Spec) > 0 {
		if err := utiljson.Unmarshal(raw.Spec, &spec); err != nil {
			return fmt.Errorf("failed to decode spec: %w", err)
		}
	}

	o.TypeMeta = raw.TypeMeta
	o.ObjectMeta = raw.ObjectMeta
	o.Spec = spec
	return nil
}

// SortByKey orders objects by kind and name
func SortByKey(objs []*Object) {
	slices.SortFunc(objs, func(a, b *Object) int {
		return cmp.Or(cmp.Compare(a.Kind, b.Kind), cmp.Compare(a.Name, b.Name))
	})
}
