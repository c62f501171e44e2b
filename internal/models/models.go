// Package models contains the plain data structures describing gateway
// configuration as handed over by the persistence layer.
package models

import "time"

// Gateway is a tenant owned API surface
type Gateway struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// Stage is a named deployment environment of a gateway
type Stage struct {
	ID          int64             `json:"id"`
	GatewayID   int64             `json:"gatewayID"`
	Name        string            `json:"name"`
	Description string            `json:"description,omitempty"`
	Vars        map[string]string `json:"vars,omitempty"`
	// RewriteHeaders are set on every request proxied through the stage
	RewriteHeaders map[string]string `json:"rewriteHeaders,omitempty"`
}

// Resource is a single route definition
type Resource struct {
	ID              int64               `json:"id"`
	Name            string              `json:"name"`
	Method          string              `json:"method"`
	Path            string              `json:"path"`
	MatchSubpath    bool                `json:"matchSubpath,omitempty"`
	EnableWebsocket bool                `json:"enableWebsocket,omitempty"`
	Proxy           ResourceProxy       `json:"proxy"`
	Auth            *ResourceAuthConfig `json:"auth,omitempty"`
}

// ResourceProxy describes how a resource forwards to its backend
type ResourceProxy struct {
	BackendID int64  `json:"backendID"`
	Method    string `json:"method,omitempty"`
	Path      string `json:"path,omitempty"`
	// Timeout overrides the backend timeout, in seconds
	Timeout int64 `json:"timeout,omitempty"`
}

// ResourceVersion is an immutable snapshot of the resource set of a gateway
type ResourceVersion struct {
	ID        int64      `json:"id"`
	GatewayID int64      `json:"gatewayID"`
	Version   string     `json:"version"`
	Resources []Resource `json:"resources"`
	CreatedAt time.Time  `json:"createdAt,omitempty"`
}

// Release binds a gateway stage to the resource version currently live on it
type Release struct {
	GatewayID         int64 `json:"gatewayID"`
	StageID           int64 `json:"stageID"`
	ResourceVersionID int64 `json:"resourceVersionID"`
}

// MicroGateway is a running gateway instance receiving distributed manifests
type MicroGateway struct {
	ID        string `json:"id"`
	GatewayID int64  `json:"gatewayID"`
	Name      string `json:"name"`
	// Secret authenticates the instance against the control plane
	Secret string `json:"secret"`
}

// Backend is a named upstream of a gateway
type Backend struct {
	ID          int64  `json:"id"`
	GatewayID   int64  `json:"gatewayID"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

const (
	// BackendTypeNode routes to a static list of hosts
	BackendTypeNode = "node"
	// BackendTypeDiscovery resolves hosts from a service discovery registry
	BackendTypeDiscovery = "service-discovery"
)

// BackendConfig is the stage specific configuration of a backend
type BackendConfig struct {
	BackendID   int64            `json:"backendID"`
	StageID     int64            `json:"stageID"`
	Type        string           `json:"type"`
	LoadBalance string           `json:"loadBalance,omitempty"`
	Timeout     int64            `json:"timeout,omitempty"`
	Hosts       []Host           `json:"hosts,omitempty"`
	Discovery   *DiscoveryConfig `json:"discovery,omitempty"`
	// ClientCertificate is presented to the upstream for mutual TLS
	ClientCertificate *Certificate `json:"clientCertificate,omitempty"`
}

// Host is a single upstream address such as "http://10.0.0.1:8080"
type Host struct {
	Address string `json:"address"`
	Weight  int64  `json:"weight,omitempty"`
}

// DiscoveryConfig locates a backend inside a service discovery registry
type DiscoveryConfig struct {
	Type        string `json:"type"`
	Address     string `json:"address,omitempty"`
	ServiceName string `json:"serviceName"`
	Namespace   string `json:"namespace,omitempty"`
	Scheme      string `json:"scheme,omitempty"`
}

const (
	// PluginScopeStage binds a plugin to a stage
	PluginScopeStage = "stage"
	// PluginScopeResource binds a plugin to a resource
	PluginScopeResource = "resource"
)

// PluginType describes a kind of plugin and the schema of its configuration
type PluginType struct {
	Code string `json:"code"`
	// Schema is a JSON schema document; empty disables validation
	Schema string `json:"schema,omitempty"`
}

// PluginBinding attaches a configured plugin to a stage or resource
type PluginBinding struct {
	ID        int64          `json:"id"`
	GatewayID int64          `json:"gatewayID"`
	Type      string         `json:"type"`
	ScopeType string         `json:"scopeType"`
	ScopeID   int64          `json:"scopeID"`
	Config    map[string]any `json:"config,omitempty"`
}

// Certificate is TLS material bound to a stage or backend
type Certificate struct {
	Name string `json:"name"`
	// StageID is set for certificates served by a stage domain
	StageID int64    `json:"stageID,omitempty"`
	SNIs    []string `json:"snis,omitempty"`
	CACert  string   `json:"caCert,omitempty"`
	Cert    string   `json:"cert"`
	Key     string   `json:"key"`
}

// JWTKey is the key pair a gateway signs its tokens with
type JWTKey struct {
	GatewayID  int64  `json:"gatewayID"`
	PublicKey  string `json:"publicKey"`
	PrivateKey string `json:"privateKey"`
}

// AuthConfig is the default auth policy of a gateway
type AuthConfig struct {
	GatewayID               int64 `json:"gatewayID"`
	VerifiedAppRequired     bool  `json:"verifiedAppRequired"`
	VerifiedUserRequired    bool  `json:"verifiedUserRequired"`
	ResourcePermRequired    bool  `json:"resourcePermRequired"`
	SkipUserVerifiedForApps bool  `json:"skipUserVerifiedForApps,omitempty"`
}

// ResourceAuthConfig overrides parts of the gateway auth policy for one resource
type ResourceAuthConfig struct {
	VerifiedAppRequired  *bool `json:"verifiedAppRequired,omitempty"`
	VerifiedUserRequired *bool `json:"verifiedUserRequired,omitempty"`
	ResourcePermRequired *bool `json:"resourcePermRequired,omitempty"`
}
