package cloudflare

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/haukened/blocksync/internal/sync/common/log"
	"github.com/haukened/blocksync/internal/sync/domain"
)

func newTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c, err := NewClient(Options{
		AccountID:    "acct-1",
		Token:        "secret-token",
		BaseURL:      srv.URL,
		Timeout:      5 * time.Second,
		Retries:      2,
		RetryBackoff: time.Millisecond,
		RateLimitRPS: 1000,
		Logger:       log.NewNoopLogger(),
	})
	require.NoError(t, err)
	return c, srv
}

func writeEnvelope(w http.ResponseWriter, status int, success bool, result any, errs ...apiError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"success": success,
		"errors":  errs,
		"result":  result,
	})
}

func TestNewClient_RequiredOptions(t *testing.T) {
	_, err := NewClient(Options{AccountID: "a"})
	assert.EqualError(t, err, errTokenRequired)

	_, err = NewClient(Options{Token: "t"})
	assert.EqualError(t, err, errAccountRequired)
}

func TestClient_BearerAuthAndAccountPath(t *testing.T) {
	var gotAuth, gotPath string
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path
		writeEnvelope(w, http.StatusOK, true, []listJSON{})
	}))

	_, err := c.ListLists(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Bearer secret-token", gotAuth)
	assert.Equal(t, "/accounts/acct-1/gateway/lists", gotPath)
}

func TestClient_RetriesTransientThenSucceeds(t *testing.T) {
	var calls atomic.Int32
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch calls.Add(1) {
		case 1:
			w.WriteHeader(http.StatusBadGateway)
		case 2:
			w.WriteHeader(http.StatusTooManyRequests)
		default:
			writeEnvelope(w, http.StatusOK, true, []listJSON{
				{ID: "11111111-2222-3333-4444-555555555555", Name: "pfx-000", Type: "DOMAIN", Count: 3},
			})
		}
	}))

	lists, err := c.ListLists(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(3), calls.Load())
	require.Len(t, lists, 1)
	assert.Equal(t, "pfx-000", lists[0].Name)
	assert.Equal(t, 3, lists[0].Count)
}

func TestClient_GivesUpAfterRetryBudget(t *testing.T) {
	var calls atomic.Int32
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))

	_, err := c.ListLists(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrExternalRequestFailed)
	// initial attempt plus two retries
	assert.Equal(t, int32(3), calls.Load())
}

func TestClient_RejectionIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		writeEnvelope(w, http.StatusBadRequest, false, nil, apiError{Code: 2019, Message: "list name already exists"})
	}))

	_, err := c.CreateList(context.Background(), "pfx-000", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrExternalRejected)
	assert.Contains(t, err.Error(), "2019: list name already exists")
	assert.Equal(t, int32(1), calls.Load())
}

func TestClient_SuccessFalseWith200IsRejected(t *testing.T) {
	var calls atomic.Int32
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		writeEnvelope(w, http.StatusOK, false, nil)
	}))

	err := c.DeleteList(context.Background(), "dead-beef")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrExternalRejected)
	assert.Equal(t, int32(1), calls.Load())
}

func TestClient_CreateListBodyAndDecode(t *testing.T) {
	var got struct {
		Name  string     `json:"name"`
		Type  string     `json:"type"`
		Items []itemJSON `json:"items"`
	}
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		writeEnvelope(w, http.StatusOK, true, listJSON{
			ID: "aaaa", Name: got.Name, Type: got.Type, Count: len(got.Items),
		})
	}))

	created, err := c.CreateList(context.Background(), "pfx-002",
		[]domain.Hostname{"a.example.com", "b.example.com"})
	require.NoError(t, err)
	assert.Equal(t, "aaaa", created.ID)
	assert.Equal(t, 2, created.Count)
	assert.Equal(t, domain.ListTypeDomain, got.Type)
	require.Len(t, got.Items, 2)
	assert.Equal(t, "a.example.com", got.Items[0].Value)
}

func TestClient_UpdateListItemsPatchesDeltas(t *testing.T) {
	var method, path string
	var got struct {
		Append []itemJSON `json:"append"`
		Remove []string   `json:"remove"`
	}
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method, path = r.Method, r.URL.Path
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		writeEnvelope(w, http.StatusOK, true, nil)
	}))

	err := c.UpdateListItems(context.Background(), "list-9",
		[]domain.Hostname{"new.example.com"},
		[]domain.Hostname{"old.example.com"})
	require.NoError(t, err)
	assert.Equal(t, http.MethodPatch, method)
	assert.Equal(t, "/accounts/acct-1/gateway/lists/list-9", path)
	require.Len(t, got.Append, 1)
	assert.Equal(t, "new.example.com", got.Append[0].Value)
	assert.Equal(t, []string{"old.example.com"}, got.Remove)
}

func TestClient_RuleRoundTrip(t *testing.T) {
	spec := domain.RuleSpec{
		Name:       "Blocklist",
		Enabled:    true,
		Precedence: 1000,
		Traffic:    `any(dns.domains[*] in $abc123)`,
	}
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body ruleJSON
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "block", body.Action)
		assert.Equal(t, []string{"dns"}, body.Filters)
		body.ID = "rule-1"
		writeEnvelope(w, http.StatusOK, true, body)
	}))

	rule, err := c.CreateRule(context.Background(), spec)
	require.NoError(t, err)
	assert.Equal(t, "rule-1", rule.ID)
	assert.Equal(t, spec.Traffic, rule.Traffic)
	assert.True(t, spec.Matches(rule))
}

func TestClient_ContextCancellationStopsRetries(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.ListLists(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrExternalRequestFailed)
}

func TestClient_MalformedEnvelope(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "<html>not json</html>")
	}))

	_, err := c.ListLists(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrExternalRejected)
}
