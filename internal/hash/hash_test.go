package hash

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() Config {
	return Config{Version: "test/v1", Fields: []string{"buyer", "seller", "generatedAt"}}
}

func TestCanonicalDeterministic(t *testing.T) {
	values := map[string]any{
		"buyer":       "pb1buyer",
		"seller":      "pb1seller",
		"generatedAt": int64(1567612345000),
	}

	first, err := Canonical(values, testConfig())
	require.NoError(t, err)
	second, err := Canonical(values, testConfig())
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Len(t, first, 64) // sha256 hex
}

func TestCanonicalIgnoresUnselectedFields(t *testing.T) {
	cfg := testConfig()
	values := map[string]any{
		"buyer":       "pb1buyer",
		"seller":      "pb1seller",
		"generatedAt": int64(1567612345000),
	}
	base, err := Canonical(values, cfg)
	require.NoError(t, err)

	values["unstable"] = "anything"
	withExtra, err := Canonical(values, cfg)
	require.NoError(t, err)

	assert.Equal(t, base, withExtra)
}

func TestCanonicalSensitiveToSelectedFields(t *testing.T) {
	cfg := testConfig()
	values := map[string]any{
		"buyer":       "pb1buyer",
		"seller":      "pb1seller",
		"generatedAt": int64(1567612345000),
	}
	base, err := Canonical(values, cfg)
	require.NoError(t, err)

	values["generatedAt"] = int64(1567612345001)
	changed, err := Canonical(values, cfg)
	require.NoError(t, err)

	assert.NotEqual(t, base, changed)
}

func TestCanonicalVersionChangesDigest(t *testing.T) {
	values := map[string]any{
		"buyer":       "pb1buyer",
		"seller":      "pb1seller",
		"generatedAt": int64(1567612345000),
	}
	v1, err := Canonical(values, testConfig())
	require.NoError(t, err)

	cfg := testConfig()
	cfg.Version = "test/v2"
	v2, err := Canonical(values, cfg)
	require.NoError(t, err)

	assert.NotEqual(t, v1, v2)
}

func TestCanonicalMissingField(t *testing.T) {
	values := map[string]any{"buyer": "pb1buyer"}

	_, err := Canonical(values, testConfig())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "seller")
}

func TestOrderV1Selection(t *testing.T) {
	cfg := OrderV1()
	assert.Equal(t, "order/v1", cfg.Version)
	assert.Equal(t, []string{"address", "buyer", "seller", "orderItems", "status", "generatedAt"}, cfg.Fields)
}
