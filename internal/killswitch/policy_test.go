package killswitch

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadPolicyMissingFile(t *testing.T) {
	p, hash, err := LoadPolicy(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Empty(t, p.Rules)
	assert.True(t, strings.HasPrefix(hash, "sha256:"))
}

func TestLoadPolicy(t *testing.T) {
	path := filepath.Join(t.TempDir(), "killswitch.yaml")
	data := `rules:
  - contract: counter
    severity: mid
  - contract: "0x00000000000000000000000000000000000000aa"
    action: deny
  - contract: vault.apm.eth
    lowest_allowed_severity: high
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	p, hash, err := LoadPolicy(path)
	require.NoError(t, err)
	require.Len(t, p.Rules, 3)
	assert.Equal(t, SeverityMid, *p.Rules[0].Severity)
	assert.Nil(t, p.Rules[0].Action)
	assert.Equal(t, ActionDeny, *p.Rules[1].Action)
	assert.Equal(t, SeverityHigh, *p.Rules[2].LowestAllowed)

	_, again, err := LoadPolicy(path)
	require.NoError(t, err)
	assert.Equal(t, hash, again)
}

func TestLoadPolicyRejectsBadRules(t *testing.T) {
	dir := t.TempDir()
	for name, data := range map[string]string{
		"empty-rule.yaml":  "rules:\n  - contract: counter\n",
		"no-contract.yaml": "rules:\n  - action: deny\n",
		"bad-name.yaml":    "rules:\n  - contract: counter\n    severity: severe\n",
	} {
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, []byte(data), 0o644))
		_, _, err := LoadPolicy(path)
		assert.Error(t, err, name)
	}
}
