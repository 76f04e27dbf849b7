package cli

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/chainkernel/internal/config"
	"github.com/ppiankov/chainkernel/internal/ident"
	"github.com/ppiankov/chainkernel/internal/ledger"
	"github.com/ppiankov/chainkernel/internal/logging"
	"github.com/ppiankov/chainkernel/internal/ratelimit"
)

// run executes the root command with args and returns its stdout.
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Cleanup(func() {
		idKind = "role"
		eventsTx, eventsFrom, eventsMethod = "", "", ""
		eventsCommitted = false
		eventsFormat = "text"
		rootCmd.SetArgs(nil)
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
	})
	var out, errOut bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	rootCmd.SetArgs(append([]string{"--env-file", filepath.Join(t.TempDir(), ".env")}, args...))
	err := rootCmd.Execute()
	return out.String(), err
}

func TestVersion(t *testing.T) {
	out, err := run(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, version)
}

func TestID(t *testing.T) {
	out, err := run(t, "id", "APP_MANAGER_ROLE")
	require.NoError(t, err)
	assert.Equal(t, ident.RoleID("APP_MANAGER_ROLE").Hex()+"\tAPP_MANAGER_ROLE\n", out)

	out, err = run(t, "id", "--kind", "namespace", "base")
	require.NoError(t, err)
	assert.Contains(t, out, ident.AppBasesNamespace.Hex())

	out, err = run(t, "id", "-k", "entity", "alice")
	require.NoError(t, err)
	assert.Contains(t, out, ident.EntityFromName("alice").Hex())

	_, err = run(t, "id", "-k", "planet", "mars")
	assert.Error(t, err)
}

func TestSemver(t *testing.T) {
	out, err := run(t, "semver", "1.0.0", "1.1.0")
	require.NoError(t, err)
	assert.Equal(t, "OK: 1.0.0 -> 1.1.0\n", out)

	_, err = run(t, "semver", "1.0.0", "1.2.0")
	assert.Error(t, err)

	_, err = run(t, "semver", "1.0", "1.1.0")
	assert.Error(t, err)
}

func TestDemo(t *testing.T) {
	out, err := run(t, "demo")
	require.NoError(t, err)
	assert.Contains(t, out, "reverted APP_AUTH_FAILED")
	assert.Contains(t, out, "reverted KERNEL_AUTH_FAILED")
	assert.Contains(t, out, "reverted APP_KILL_SWITCH_DENIED")
	assert.Contains(t, out, "alice balance: 100")
	assert.Contains(t, out, "counter value: 2 ")
	assert.Contains(t, out, "counter value: 1\n")
	assert.Contains(t, out, "demo complete")
}

func TestParseArgs(t *testing.T) {
	got := parseArgs([]string{"42", "true", `"quoted"`, "@vault", `[1,2]`})
	assert.Equal(t, []any{float64(42), true, "quoted", "@vault", []any{float64(1), float64(2)}}, got)
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.EventLog = filepath.Join(dir, "events.jsonl")
	cfg.KillSwitchPolicy = ""
	cfg.Indexer.DSN = filepath.Join(dir, "data", "index.db")
	return cfg
}

func increment(t *testing.T, rt *runtime, who string) {
	t.Helper()
	_, err := rt.node.Submit(context.Background(), ledger.Msg{
		From:   ident.EntityFromName(who),
		To:     rt.node.Addresses().Counter,
		Method: "increment",
	})
	require.NoError(t, err)
}

func counterValue(t *testing.T, rt *runtime) uint64 {
	t.Helper()
	v, err := ledger.First[uint64](rt.node.Query(context.Background(), ident.ZeroAddress, rt.node.Addresses().Counter, "value"))
	require.NoError(t, err)
	return v
}

func TestRuntimeRecordsAndReplays(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)

	rt, err := openRuntime(ctx, cfg, logging.Discard(), true)
	require.NoError(t, err)
	require.NotNil(t, rt.store)
	increment(t, rt, "alice")
	increment(t, rt, "bob")
	require.NoError(t, rt.Close())

	rt, err = openRuntime(ctx, cfg, logging.Discard(), true)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), counterValue(t, rt))
	increment(t, rt, "alice")
	require.NoError(t, rt.Close())

	// read-only runtimes replay without appending
	rt, err = openRuntime(ctx, cfg, logging.Discard(), false)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), counterValue(t, rt))
	assert.Nil(t, rt.eventLog)
	increment(t, rt, "carol")
	require.NoError(t, rt.Close())

	out, err := run(t, "events", "verify", cfg.EventLog)
	require.NoError(t, err)
	assert.Equal(t, "OK: 3 entries verified\n", out)

	out, err = run(t, "events", "show", cfg.EventLog, "--from", "alice", "-f", "json")
	require.NoError(t, err)
	assert.Contains(t, out, "increment")
	assert.Contains(t, out, ident.EntityFromName("alice").Hex())
	assert.NotContains(t, out, ident.EntityFromName("bob").Hex())
}

func TestRuntimeRateLimits(t *testing.T) {
	cfg := testConfig(t)
	cfg.Indexer.DSN = ""
	limit := func(n int) *ratelimit.SenderRateLimit {
		return &ratelimit.SenderRateLimit{MaxRequests: n, Window: time.Minute}
	}
	cfg.RateLimits = ratelimit.RateLimitConfig{"*": limit(10), "alice": limit(2), "@vault": limit(5)}

	rt, err := openRuntime(context.Background(), cfg, logging.Discard(), false)
	require.NoError(t, err)
	defer rt.Close()
	assert.Nil(t, rt.store)

	limits, err := rt.rateLimits()
	require.NoError(t, err)
	assert.Equal(t, 10, limits["*"].MaxRequests)
	assert.Equal(t, 2, limits[ident.EntityFromName("alice").Hex()].MaxRequests)
	assert.Equal(t, 5, limits[rt.node.Addresses().Vault.Hex()].MaxRequests)

	rt.cfg.RateLimits = ratelimit.RateLimitConfig{"@missing": limit(1)}
	_, err = rt.rateLimits()
	assert.Error(t, err)
}

func TestEventsVerifyMissingPath(t *testing.T) {
	_, err := run(t, "events", "verify", filepath.Join(t.TempDir(), "none.jsonl"))
	assert.Error(t, err)
}
