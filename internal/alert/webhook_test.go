package alert

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/chainkernel/internal/ident"
	"github.com/ppiankov/chainkernel/internal/ledger"
)

func countingServer(t *testing.T, called *atomic.Int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestDispatchMatchesEventName(t *testing.T) {
	var called atomic.Int32
	srv := countingServer(t, &called)

	d := NewDispatcher([]AlertConfig{
		{URL: srv.URL, Format: "generic", Events: []string{"ChangeSeverity"}},
	}, nil)

	d.Dispatch(AlertEvent{Type: "event", Name: "ChangeSeverity"})
	d.Dispatch(AlertEvent{Type: "event", Name: "SetPermission"})
	assert.Eventually(t, func() bool { return called.Load() == 1 }, time.Second, 10*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(1), called.Load())
}

func TestDispatchMatchesReverts(t *testing.T) {
	var all, denied atomic.Int32
	srvAny := countingServer(t, &all)
	srvDenied := countingServer(t, &denied)

	d := NewDispatcher([]AlertConfig{
		{URL: srvAny.URL, Events: []string{"revert"}},
		{URL: srvDenied.URL, Events: []string{"revert:APP_KILL_SWITCH_DENIED"}},
	}, nil)

	d.Dispatch(AlertEvent{Type: TypeRevert, Reason: "ACL_NO_PERMISSION"})
	d.Dispatch(AlertEvent{Type: TypeRevert, Reason: "APP_KILL_SWITCH_DENIED"})
	assert.Eventually(t, func() bool { return all.Load() == 2 && denied.Load() == 1 }, time.Second, 10*time.Millisecond)
}

func TestPublishReceipt(t *testing.T) {
	var called atomic.Int32
	srv := countingServer(t, &called)
	d := NewDispatcher([]AlertConfig{{URL: srv.URL, Events: []string{"SetApp", "NewAppProxy"}}}, nil)

	r := &ledger.Receipt{
		TxID:   "tx-1",
		Status: ledger.StatusCommitted,
		Events: []ledger.Event{
			{Name: "SetApp", Fields: []ledger.Field{ledger.F("app", ident.EntityFromName("x"))}},
			{Name: "NewAppProxy"},
			{Name: "Other"},
		},
	}
	require.NoError(t, d.Publish(r))
	assert.Eventually(t, func() bool { return called.Load() == 2 }, time.Second, 10*time.Millisecond)
}

func TestFromReceipt(t *testing.T) {
	reverted := &ledger.Receipt{TxID: "tx-2", Status: ledger.StatusReverted, Reason: "KERNEL_AUTH_FAILED", Method: "setApp"}
	evs := FromReceipt(reverted)
	require.Len(t, evs, 1)
	assert.Equal(t, TypeRevert, evs[0].Type)
	assert.Equal(t, "KERNEL_AUTH_FAILED", evs[0].Reason)

	committed := &ledger.Receipt{
		TxID:   "tx-3",
		Status: ledger.StatusCommitted,
		Events: []ledger.Event{{Name: "Increment", Fields: []ledger.Field{ledger.F("value", uint64(3))}}},
	}
	evs = FromReceipt(committed)
	require.Len(t, evs, 1)
	assert.Equal(t, "Increment", evs[0].Name)
	assert.Equal(t, []AlertField{{Name: "value", Value: "3"}}, evs[0].Fields)
}

func fastRetries(t *testing.T) {
	t.Helper()
	prev := retryDelay
	retryDelay = func(int) time.Duration { return time.Millisecond }
	t.Cleanup(func() { retryDelay = prev })
}

func TestRetryOnServerError(t *testing.T) {
	fastRetries(t)
	var attempts atomic.Int32
	var txHeader atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		txHeader.Store(r.Header.Get("X-Chainkernel-Tx"))
		if attempts.Add(1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	require.NoError(t, Send(context.Background(), AlertConfig{URL: srv.URL, Format: "generic"}, AlertEvent{Type: TypeRevert, TxID: "tx-9"}))
	assert.Equal(t, int32(3), attempts.Load())
	assert.Equal(t, "tx-9", txHeader.Load())
}

func TestSendGivesUp(t *testing.T) {
	fastRetries(t)
	var attempts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	err := Send(context.Background(), AlertConfig{URL: srv.URL}, AlertEvent{Type: TypeRevert})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "after 3 attempts")
	assert.Equal(t, int32(3), attempts.Load())
}

func TestSendStopsOnCancel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := Send(ctx, AlertConfig{URL: srv.URL}, AlertEvent{Type: TypeRevert})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestNoRetryOnClientError(t *testing.T) {
	var attempts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	assert.Error(t, Send(context.Background(), AlertConfig{URL: srv.URL, Format: "generic"}, AlertEvent{Type: TypeRevert}))
	assert.Equal(t, int32(1), attempts.Load())
}

func TestFormatGenericJSON(t *testing.T) {
	event := AlertEvent{TxID: "t-123", Type: "event", Name: "ChangeSeverity"}
	data, err := FormatPayload("generic", event)
	require.NoError(t, err)

	var parsed AlertEvent
	require.NoError(t, json.Unmarshal(data, &parsed))
	assert.Equal(t, event, parsed)
}

func TestFormatSlackBlockKit(t *testing.T) {
	data, err := FormatPayload("slack", AlertEvent{
		Type:   "event",
		Name:   "ChangeSeverity",
		Fields: []AlertField{{Name: "severity", Value: "high"}},
	})
	require.NoError(t, err)

	var parsed map[string]any
	require.NoError(t, json.Unmarshal(data, &parsed))
	blocks, ok := parsed["blocks"].([]any)
	require.True(t, ok)
	require.Len(t, blocks, 2)

	header := blocks[0].(map[string]any)
	assert.Equal(t, "header", header["type"])
	section := blocks[1].(map[string]any)
	fields, ok := section["fields"].([]any)
	require.True(t, ok)
	assert.Len(t, fields, 5)
}

func TestFormatPagerDuty(t *testing.T) {
	cases := []struct {
		event AlertEvent
		want  string
	}{
		{AlertEvent{Type: TypeRevert, Reason: "X"}, "error"},
		{AlertEvent{Type: "event", Fields: []AlertField{{Name: "severity", Value: "critical"}}}, "critical"},
		{AlertEvent{Type: "event", Fields: []AlertField{{Name: "severity", Value: "mid"}}}, "warning"},
		{AlertEvent{Type: "event", Name: "SetApp"}, "info"},
	}
	for _, tc := range cases {
		data, err := FormatPayload("pagerduty", tc.event)
		require.NoError(t, err)
		var parsed map[string]any
		require.NoError(t, json.Unmarshal(data, &parsed))
		assert.Equal(t, "trigger", parsed["event_action"])
		payload := parsed["payload"].(map[string]any)
		assert.Equal(t, tc.want, payload["severity"])
		assert.Equal(t, "chainkernel", payload["source"])
	}
}

func TestNewDispatcherNilOnEmpty(t *testing.T) {
	assert.Nil(t, NewDispatcher(nil, nil))
	assert.Nil(t, NewDispatcher([]AlertConfig{}, nil))
}
