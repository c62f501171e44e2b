package versions

import "github.com/Masterminds/semver/v3"

// IsNewerVersion reports whether candidate is strictly greater than current.
// Both are compared as semver when they parse, otherwise as plain strings.
func IsNewerVersion(candidate, current string) bool {
	c, errCandidate := semver.NewVersion(candidate)
	cur, errCurrent := semver.NewVersion(current)
	if errCandidate != nil || errCurrent != nil {
		return candidate > current
	}
	return c.GreaterThan(cur)
}
