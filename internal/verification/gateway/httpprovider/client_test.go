package httpprovider

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kycflow/internal/verification/gateway"
	"kycflow/internal/verification/gateway/contract"
	"kycflow/internal/verification/gateway/statetoken"
	"kycflow/internal/verification/models"
	id "kycflow/pkg/domain"
)

// fakeVendor is a minimal in-memory vendor API.
type fakeVendor struct {
	mu        sync.Mutex
	verdict   string
	conf      int
	pending   int
	polls     map[string]int
	cancelled map[string]bool
	seq       int
	apiKey    string
}

func newFakeVendor(verdict string, conf, pending int) *fakeVendor {
	return &fakeVendor{
		verdict:   verdict,
		conf:      conf,
		pending:   pending,
		polls:     map[string]int{},
		cancelled: map[string]bool{},
		apiKey:    "secret",
	}
}

func (f *fakeVendor) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if r.Header.Get("Authorization") != "Bearer "+f.apiKey {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	switch {
	case r.Method == http.MethodPost && r.URL.Path == "/v1/checks":
		var body createCheckRequest
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Reference == "" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		f.seq++
		checkID := "chk_" + strings.Repeat("x", f.seq)
		f.polls[checkID] = 0
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(createCheckResponse{ID: checkID, HostedURL: "https://vendor.test/flow/" + checkID})

	case strings.HasPrefix(r.URL.Path, "/v1/checks/"):
		checkID := strings.TrimPrefix(r.URL.Path, "/v1/checks/")
		if _, ok := f.polls[checkID]; !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		if r.Method == http.MethodDelete {
			f.cancelled[checkID] = true
			w.WriteHeader(http.StatusNoContent)
			return
		}
		resp := checkStatusResponse{ID: checkID, Status: "pending"}
		if f.polls[checkID] >= f.pending {
			resp.Status = f.verdict
			if f.verdict == "approved" {
				conf := f.conf
				resp.Confidence = &conf
			} else {
				resp.Reason = "document_expired"
			}
		}
		f.polls[checkID]++
		_ = json.NewEncoder(w).Encode(resp)

	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func newClient(t *testing.T, h http.Handler, opts ...Option) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return New("vendor-docs", models.VerifierDocument, srv.URL, "secret", 2*time.Second, opts...)
}

func TestClientContract(t *testing.T) {
	contract.Suite{
		Kind: models.VerifierDocument,
		NewApproving: func(t *testing.T) gateway.Gateway {
			return newClient(t, newFakeVendor("approved", 91, 1))
		},
		NewRejecting: func(t *testing.T) gateway.Gateway {
			return newClient(t, newFakeVendor("declined", 0, 1))
		},
		MaxPendingPolls: 1,
	}.Run(t)
}

func TestClientErrorTaxonomy(t *testing.T) {
	status := func(code int) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(code) })
	}

	cases := []struct {
		name     string
		handler  http.Handler
		category gateway.ErrorCategory
		retry    bool
	}{
		{"unauthorized", status(http.StatusUnauthorized), gateway.ErrorAuthentication, false},
		{"rate limited", status(http.StatusTooManyRequests), gateway.ErrorRateLimited, true},
		{"server error", status(http.StatusBadGateway), gateway.ErrorProviderOutage, true},
		{"gateway timeout", status(http.StatusGatewayTimeout), gateway.ErrorTimeout, true},
		{"unprocessable", status(http.StatusUnprocessableEntity), gateway.ErrorRejected, false},
		{"bad request", status(http.StatusBadRequest), gateway.ErrorBadData, false},
		{"garbage body", http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte("<html>"))
		}), gateway.ErrorContractMismatch, false},
	}
	for _, tc := range cases {
		contract.ErrorCase{
			Name:          tc.name,
			Gateway:       newClient(t, tc.handler),
			Kind:          models.VerifierDocument,
			ExpectedError: tc.category,
			ExpectedRetry: tc.retry,
		}.Run(t)
	}
}

func TestClient_TimeoutIsRetryable(t *testing.T) {
	slow := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(500 * time.Millisecond):
		}
	})
	srv := httptest.NewServer(slow)
	t.Cleanup(srv.Close)
	c := New("vendor-docs", models.VerifierDocument, srv.URL, "secret", 50*time.Millisecond)

	_, err := c.Initiate(context.Background(), gateway.InitiateRequest{SessionID: id.NewSessionID(), StepID: "s"})
	require.Error(t, err)
	assert.Equal(t, gateway.ErrorTimeout, gateway.GetCategory(err))
	assert.True(t, gateway.IsRetryable(err))
}

func TestClient_UnreachableIsOutage(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	addr := srv.URL
	srv.Close()

	c := New("vendor-docs", models.VerifierDocument, addr, "secret", time.Second)
	_, err := c.Initiate(context.Background(), gateway.InitiateRequest{SessionID: id.NewSessionID(), StepID: "s"})
	require.Error(t, err)
	assert.Equal(t, gateway.ErrorProviderOutage, gateway.GetCategory(err))
}

func TestClient_RedirectCarriesReturnState(t *testing.T) {
	signer := statetoken.New("k", time.Minute)
	c := newClient(t, newFakeVendor("approved", 90, 0), WithReturn(signer, "https://app.test/v1/verification/return"))
	sid := id.NewSessionID()

	h, err := c.Initiate(context.Background(), gateway.InitiateRequest{SessionID: sid, StepID: "identity_document"})
	require.NoError(t, err)

	u, err := url.Parse(h.RedirectURL)
	require.NoError(t, err)
	assert.Equal(t, "vendor.test", u.Host)
	assert.Equal(t, "https://app.test/v1/verification/return", u.Query().Get("return_url"))

	claims, err := signer.Verify(u.Query().Get("state"))
	require.NoError(t, err)
	assert.Equal(t, sid, claims.ParsedSessionID())
	assert.Equal(t, h.ID, claims.Handle)
}

func TestClient_CancelUnknownHandleIsNoop(t *testing.T) {
	c := newClient(t, newFakeVendor("approved", 90, 0))
	err := c.Cancel(context.Background(), gateway.Handle{ID: "missing", Kind: models.VerifierDocument})
	assert.NoError(t, err)
}

func TestClient_CompletedWithoutConfidenceIsContractMismatch(t *testing.T) {
	c := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{"id": "x", "status": "completed"})
	}))
	_, err := c.PollStatus(context.Background(), gateway.Handle{ID: "x"})
	require.Error(t, err)
	assert.Equal(t, gateway.ErrorContractMismatch, gateway.GetCategory(err))
}
