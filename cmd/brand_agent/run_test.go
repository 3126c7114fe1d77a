package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMarketFlags(t *testing.T) {
	markets, err := parseMarketFlags(
		[]string{"us=United States", "DE=Germany"},
		[]string{"banking"},
	)
	require.NoError(t, err)
	require.Len(t, markets, 2)

	assert.Equal(t, "us", markets[0].Code)
	assert.Equal(t, "United States", markets[0].Name)
	assert.Equal(t, []string{"banking"}, markets[0].Categories)

	assert.Equal(t, "de", markets[1].Code, "codes are lowercased")
	assert.Equal(t, "Germany", markets[1].Name)
}

func TestParseMarketFlags_Invalid(t *testing.T) {
	for _, entry := range []string{"us", "=Germany", "de="} {
		_, err := parseMarketFlags([]string{entry}, nil)
		assert.Error(t, err, "entry %q", entry)
	}
}

func TestEnvOr(t *testing.T) {
	t.Setenv("BRAND_AGENT_TEST_KEY", "set")
	assert.Equal(t, "set", envOr("BRAND_AGENT_TEST_KEY", "fallback"))
	assert.Equal(t, "fallback", envOr("BRAND_AGENT_TEST_KEY_MISSING", "fallback"))
}
