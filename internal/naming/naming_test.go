package naming

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestName(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name     string
		gateway  string
		stage    string
		leaf     string
		expected string
	}{
		{
			name:     "short name is kept",
			gateway:  "demo",
			stage:    "prod",
			leaf:     "stage",
			expected: "demo-prod-stage",
		},
		{
			name:     "upper case is lowered",
			gateway:  "Demo",
			stage:    "PROD",
			leaf:     "Backend-1",
			expected: "demo-prod-backend-1",
		},
		{
			name:     "underscores and spaces become dashes",
			gateway:  "my_gateway",
			stage:    "pre release",
			leaf:     "get_user-42",
			expected: "my-gateway-pre-release-get-user-42",
		},
		{
			name:     "dots are kept",
			gateway:  "demo",
			stage:    "v1.2",
			leaf:     "tls",
			expected: "demo-v1.2-tls",
		},
		{
			name:     "exactly the limit is not truncated",
			gateway:  strings.Repeat("a", 54),
			stage:    "prod",
			leaf:     "xxxx",
			expected: strings.Repeat("a", 54) + "-prod-xxxx",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.expected, Name(tt.gateway, tt.stage, tt.leaf))
		})
	}
}

func TestName_Truncation(t *testing.T) {
	t.Parallel()

	gateway := "bk-demo-" + strings.Repeat("a", 50)

	x := Name(gateway, "prod", "x")
	y := Name(gateway, "prod", "y")

	require.Len(t, x, MaxNameLength)
	require.Len(t, y, MaxNameLength)
	assert.Equal(t, x[:truncateOffset], y[:truncateOffset])
	assert.Equal(t, ".", x[truncateOffset:truncateOffset+1])
	assert.NotEqual(t, x, y)
}

func TestName_Deterministic(t *testing.T) {
	t.Parallel()

	inputs := [][3]string{
		{"demo", "prod", "stage"},
		{strings.Repeat("g", 80), "test", "resource-1"},
		{"gw", strings.Repeat("s", 70), strings.Repeat("l", 70)},
	}
	for _, in := range inputs {
		first := Name(in[0], in[1], in[2])
		second := Name(in[0], in[1], in[2])
		assert.Equal(t, first, second)
	}
}

func TestName_LengthBound(t *testing.T) {
	t.Parallel()

	for n := 0; n < 200; n += 7 {
		name := Name(strings.Repeat("g", n), "stage", strings.Repeat("l", n/2))
		assert.LessOrEqual(t, len(name), MaxNameLength, "length %d", n)
	}
}

func TestLabels(t *testing.T) {
	t.Parallel()

	extra := map[string]string{
		"component":  "resource",
		LabelGateway: "spoofed",
	}

	labels := Labels("demo", "prod", extra)

	assert.Equal(t, map[string]string{
		LabelGateway: "demo",
		LabelStage:   "prod",
		"component":  "resource",
	}, labels)
	assert.Equal(t, "spoofed", extra[LabelGateway], "extras must not be mutated")
}

func TestLabels_NilExtra(t *testing.T) {
	t.Parallel()

	assert.Equal(t, map[string]string{LabelGateway: "demo", LabelStage: "prod"}, Labels("demo", "prod", nil))
}

func TestKeyPrefix(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "/demo/prod/", KeyPrefix("demo", "prod"))
	assert.False(t, strings.HasPrefix(KeyPrefix("demo", "prod2"), KeyPrefix("demo", "prod")))

	assert.Equal(t, "/a%2Fb/c/", KeyPrefix("a/b", "c"))
	assert.NotEqual(t, KeyPrefix("a/b", "c"), KeyPrefix("a", "b/c"))
	assert.NotEqual(t, KeyPrefix("a%2Fb", "c"), KeyPrefix("a/b", "c"))
}
