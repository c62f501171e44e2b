package manifest

// GatewayConfigSpec is the spec of a KindGatewayConfig manifest
type GatewayConfigSpec struct {
	InstanceID string         `json:"instanceID"`
	Controller ControllerSpec `json:"controller"`
}

// ControllerSpec describes how an instance reaches its control plane
type ControllerSpec struct {
	Endpoints []string    `json:"endpoints"`
	BasePath  string      `json:"basePath"`
	JWTAuth   JWTAuthSpec `json:"jwtAuth"`
}

// JWTAuthSpec holds the secret an instance uses to authenticate
type JWTAuthSpec struct {
	Secret string `json:"secret"`
}

// StageSpec is the spec of a KindStage manifest
type StageSpec struct {
	Domain      string            `json:"domain"`
	PathPrefix  string            `json:"pathPrefix"`
	Description string            `json:"description,omitempty"`
	Vars        map[string]string `json:"vars,omitempty"`
	Rewrite     *StageRewrite     `json:"rewrite,omitempty"`
	Plugins     []PluginSpec      `json:"plugins,omitempty"`
	JWT         *StageJWT         `json:"jwt,omitempty"`
}

// StageRewrite holds the header rewrite rules applied to every request of a stage
type StageRewrite struct {
	Enabled bool              `json:"enabled"`
	Headers map[string]string `json:"headers,omitempty"`
}

// StageJWT holds the key material used to sign gateway issued tokens
type StageJWT struct {
	Issuer     string `json:"issuer"`
	PublicKey  string `json:"publicKey"`
	PrivateKey string `json:"privateKey"`
}

// PluginSpec is a plugin attached to a stage, service or resource
type PluginSpec struct {
	Name   string         `json:"name"`
	Config map[string]any `json:"config,omitempty"`
}

// ServiceSpec is the spec of a KindService manifest
type ServiceSpec struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Upstream    UpstreamSpec    `json:"upstream"`
	Rewrite     *ServiceRewrite `json:"rewrite,omitempty"`
	Plugins     []PluginSpec    `json:"plugins,omitempty"`
}

// ServiceRewrite holds the rewrite rules applied before forwarding to the upstream
type ServiceRewrite struct {
	Enabled bool              `json:"enabled"`
	Headers map[string]string `json:"headers,omitempty"`
}

// UpstreamSpec describes how to reach a backend
type UpstreamSpec struct {
	Type          string       `json:"type"`
	Scheme        string       `json:"scheme"`
	Nodes         []NodeSpec   `json:"nodes,omitempty"`
	Timeout       *TimeoutSpec `json:"timeout,omitempty"`
	DiscoveryType string       `json:"discoveryType,omitempty"`
	ServiceName   string       `json:"serviceName,omitempty"`
	TLSName       string       `json:"tlsName,omitempty"`
}

// NodeSpec is a single upstream node
type NodeSpec struct {
	Host   string `json:"host"`
	Port   int64  `json:"port"`
	Weight int64  `json:"weight"`
}

// TimeoutSpec holds upstream timeouts in seconds
type TimeoutSpec struct {
	Connect int64 `json:"connect"`
	Send    int64 `json:"send"`
	Read    int64 `json:"read"`
}

// ResourceSpec is the spec of a KindResource manifest
type ResourceSpec struct {
	ID              int64            `json:"id"`
	Name            string           `json:"name"`
	URI             string           `json:"uri"`
	Methods         []string         `json:"methods,omitempty"`
	MatchSubpath    bool             `json:"matchSubpath"`
	EnableWebsocket bool             `json:"enableWebsocket"`
	Service         string           `json:"service"`
	Rewrite         *ResourceRewrite `json:"rewrite,omitempty"`
	Timeout         *TimeoutSpec     `json:"timeout,omitempty"`
	Auth            ResourceAuth     `json:"auth"`
	Plugins         []PluginSpec     `json:"plugins,omitempty"`
}

// ResourceRewrite rewrites the request path and method before proxying
type ResourceRewrite struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path,omitempty"`
	Method  string `json:"method,omitempty"`
}

// ResourceAuth is the effective auth policy of a resource
type ResourceAuth struct {
	VerifiedAppRequired     bool `json:"verifiedAppRequired"`
	VerifiedUserRequired    bool `json:"verifiedUserRequired"`
	ResourcePermRequired    bool `json:"resourcePermRequired"`
	SkipUserVerifiedForApps bool `json:"skipUserVerifiedForApps,omitempty"`
}

// TLSSpec is the spec of a KindTLS manifest.
// It always carries the certificate values, never references to them.
type TLSSpec struct {
	SNIs   []string `json:"snis,omitempty"`
	CACert string   `json:"ca.crt,omitempty"`
	Cert   string   `json:"tls.crt"`
	Key    string   `json:"tls.key"`
}

// EndpointsSpec is the spec of a KindEndpoints manifest
type EndpointsSpec struct {
	DiscoveryType string     `json:"discoveryType"`
	Address       string     `json:"address,omitempty"`
	ServiceName   string     `json:"serviceName"`
	Namespace     string     `json:"namespace,omitempty"`
	Nodes         []NodeSpec `json:"nodes,omitempty"`
}
