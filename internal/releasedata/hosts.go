package releasedata

import (
	"fmt"
	"net/url"
	"strconv"
)

// Host is a parsed upstream address
type Host struct {
	Scheme string
	Host   string
	Port   int64
}

// ParseHost parses an upstream address of the form "scheme://host:port"
func ParseHost(address string) (Host, error) {
	u, err := url.Parse(address)
	if err != nil {
		return Host{}, err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return Host{}, fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	if u.Hostname() == "" {
		return Host{}, fmt.Errorf("host is empty")
	}
	if u.Path != "" && u.Path != "/" {
		return Host{}, fmt.Errorf("unexpected path %q", u.Path)
	}

	port, err := strconv.ParseInt(u.Port(), 10, 32)
	if err != nil || port <= 0 || port > 65535 {
		return Host{}, fmt.Errorf("port %q is not valid", u.Port())
	}
	return Host{Scheme: u.Scheme, Host: u.Hostname(), Port: port}, nil
}
