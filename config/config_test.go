package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestExecutorConfigDefaults(t *testing.T) {
	c := ExecutorConfig{}.WithDefaults()
	require.Equal(t, DEFAULT_MAX_NODE_VISITS, c.MaxNodeVisits)
	require.Equal(t, DEFAULT_MAX_REDIRECT_REPEATS, c.MaxRedirectRepeats)

	c = ExecutorConfig{MaxNodeVisits: 10, MaxRedirectRepeats: 5}.WithDefaults()
	require.Equal(t, 10, c.MaxNodeVisits)
	require.Equal(t, 5, c.MaxRedirectRepeats)
}
