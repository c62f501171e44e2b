// Package naming generates deterministic, length-bounded identifiers and labels
// for the manifests produced during a release.
package naming

import (
	"crypto/md5" //nolint:gosec // used for stable short suffixes, not for security
	"encoding/hex"
	"maps"
	"net/url"
	"strings"
)

const (
	// MaxNameLength is the identifier limit of the manifest store
	MaxNameLength = 64

	// LabelGateway is the label key carrying the gateway name
	LabelGateway = "gateway"

	// LabelStage is the label key carrying the stage name
	LabelStage = "stage"

	truncateOffset = 55
	hashLength     = 8
)

// Name returns the manifest name for a leaf object of a gateway stage.
// Names longer than MaxNameLength are cut at a fixed offset and suffixed with
// a hash of the dropped tail, so the result is always exactly MaxNameLength
// characters long in that case.
func Name(gateway, stage, leaf string) string {
	candidate := lowerDashCase(gateway + "-" + stage + "-" + leaf)
	if len(candidate) <= MaxNameLength {
		return candidate
	}

	//nolint:gosec // see import
	sum := md5.Sum([]byte(candidate[truncateOffset:]))
	return candidate[:truncateOffset] + "." + hex.EncodeToString(sum[:])[:hashLength]
}

// Labels returns the labels attached to every manifest of a gateway stage.
// The gateway and stage labels always win over caller supplied extras.
func Labels(gateway, stage string, extra map[string]string) map[string]string {
	labels := make(map[string]string, len(extra)+2)
	maps.Copy(labels, extra)
	labels[LabelGateway] = gateway
	labels[LabelStage] = stage
	return labels
}

// KeyPrefix returns the registry key prefix owning all manifests of a gateway stage.
// Both names are path-escaped, so a "/" inside a name never shifts the segments.
func KeyPrefix(gateway, stage string) string {
	return "/" + url.PathEscape(gateway) + "/" + url.PathEscape(stage) + "/"
}

func lowerDashCase(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '.':
			b.WriteRune(r)
		default:
			b.WriteByte('-')
		}
	}
	return b.String()
}
