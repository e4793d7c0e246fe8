// Package httpprovider talks to a hosted verification vendor over REST:
//
//	POST   {base}/v1/checks       start a check, returns id and hosted URL
//	GET    {base}/v1/checks/{id}  current status
//	DELETE {base}/v1/checks/{id}  cancel
//
// Transport and HTTP failures are normalized into gateway.ProviderError.
package httpprovider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"kycflow/internal/verification/gateway"
	"kycflow/internal/verification/gateway/statetoken"
	"kycflow/internal/verification/models"
)

const maxResponseBytes = 1 << 20

// Client is safe for concurrent use.
type Client struct {
	name      string
	kind      models.VerifierKind
	baseURL   string
	apiKey    string
	http      *http.Client
	signer    *statetoken.Signer
	returnURL string
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = hc
	}
}

// WithReturn makes the hosted URL send the subject back to returnURL with a
// signed state parameter.
func WithReturn(signer *statetoken.Signer, returnURL string) Option {
	return func(c *Client) {
		c.signer = signer
		c.returnURL = returnURL
	}
}

func New(name string, kind models.VerifierKind, baseURL, apiKey string, timeout time.Duration, opts ...Option) *Client {
	c := &Client{
		name:    name,
		kind:    kind,
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		http:    &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type createCheckRequest struct {
	Reference  string            `json:"reference"`
	SubjectRef string            `json:"subject_ref"`
	Kind       string            `json:"kind"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

type createCheckResponse struct {
	ID        string `json:"id"`
	HostedURL string `json:"hosted_url"`
}

type checkStatusResponse struct {
	ID         string `json:"id"`
	Status     string `json:"status"`
	Confidence *int   `json:"confidence"`
	Reason     string `json:"reason"`
}

func (c *Client) Initiate(ctx context.Context, req gateway.InitiateRequest) (*gateway.Handle, error) {
	body := createCheckRequest{
		Reference:  req.SessionID.String() + ":" + req.StepID,
		SubjectRef: string(req.SubjectRef),
		Kind:       string(c.kind),
		Attributes: req.Attributes,
	}

	var out createCheckResponse
	if err := c.do(ctx, http.MethodPost, "/v1/checks", body, &out); err != nil {
		return nil, err
	}
	if out.ID == "" {
		return nil, gateway.NewProviderError(gateway.ErrorContractMismatch, c.name, "create check response has no id", nil)
	}

	h := &gateway.Handle{
		ID:       out.ID,
		Kind:     c.kind,
		Provider: c.name,
		IssuedAt: time.Now(),
	}
	redirect, err := c.redirectURL(req, out)
	if err != nil {
		return nil, err
	}
	h.RedirectURL = redirect
	return h, nil
}

func (c *Client) PollStatus(ctx context.Context, handle gateway.Handle) (*gateway.Status, error) {
	var out checkStatusResponse
	if err := c.do(ctx, http.MethodGet, "/v1/checks/"+url.PathEscape(handle.ID), nil, &out); err != nil {
		return nil, err
	}

	st := &gateway.Status{CheckedAt: time.Now(), Reason: out.Reason}
	switch strings.ToLower(out.Status) {
	case "pending", "processing", "awaiting_input":
		st.State = gateway.StatePending
	case "completed", "approved":
		if out.Confidence == nil {
			return nil, gateway.NewProviderError(gateway.ErrorContractMismatch, c.name, "completed check without confidence", nil)
		}
		st.State = gateway.StateCompleted
		st.Confidence = gateway.ClampConfidence(*out.Confidence)
	case "failed", "declined", "rejected":
		st.State = gateway.StateFailed
		if st.Reason == "" {
			st.Reason = "rejected"
		}
	default:
		return nil, gateway.NewProviderError(gateway.ErrorContractMismatch, c.name, "unknown check status "+out.Status, nil)
	}
	return st, nil
}

func (c *Client) Cancel(ctx context.Context, handle gateway.Handle) error {
	err := c.do(ctx, http.MethodDelete, "/v1/checks/"+url.PathEscape(handle.ID), nil, nil)
	if gateway.GetCategory(err) == gateway.ErrorNotFound {
		return nil
	}
	return err
}

func (c *Client) redirectURL(req gateway.InitiateRequest, out createCheckResponse) (string, error) {
	if out.HostedURL == "" || c.signer == nil {
		return out.HostedURL, nil
	}
	state, err := c.signer.Sign(req.SessionID, req.StepID, out.ID)
	if err != nil {
		return "", gateway.NewProviderError(gateway.ErrorInternal, c.name, "sign state", err)
	}
	u, err := url.Parse(out.HostedURL)
	if err != nil {
		return "", gateway.NewProviderError(gateway.ErrorContractMismatch, c.name, "invalid hosted url", err)
	}
	q := u.Query()
	q.Set("return_url", c.returnURL)
	q.Set("state", state)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return gateway.NewProviderError(gateway.ErrorBadData, c.name, "encode request", err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return gateway.NewProviderError(gateway.ErrorInternal, c.name, "build request", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return c.transportError(err)
	}
	defer resp.Body.Close()

	if err := c.statusError(resp); err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(out); err != nil {
		return gateway.NewProviderError(gateway.ErrorContractMismatch, c.name, "decode response", err)
	}
	return nil
}

func (c *Client) transportError(err error) error {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return gateway.NewProviderError(gateway.ErrorTimeout, c.name, "request timed out", err)
	}
	if errors.Is(err, context.Canceled) {
		return gateway.NewProviderError(gateway.ErrorTimeout, c.name, "request cancelled", err)
	}
	return gateway.NewProviderError(gateway.ErrorProviderOutage, c.name, "request failed", err)
}

func (c *Client) statusError(resp *http.Response) error {
	code := resp.StatusCode
	if code >= 200 && code < 300 {
		return nil
	}
	msg := fmt.Sprintf("unexpected status %d", code)
	switch {
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return gateway.NewProviderError(gateway.ErrorAuthentication, c.name, msg, nil)
	case code == http.StatusNotFound:
		return gateway.NewProviderError(gateway.ErrorNotFound, c.name, msg, nil)
	case code == http.StatusTooManyRequests:
		return gateway.NewProviderError(gateway.ErrorRateLimited, c.name, msg, nil)
	case code == http.StatusRequestTimeout || code == http.StatusGatewayTimeout:
		return gateway.NewProviderError(gateway.ErrorTimeout, c.name, msg, nil)
	case code == http.StatusUnprocessableEntity:
		return gateway.NewProviderError(gateway.ErrorRejected, c.name, msg, nil)
	case code >= 500:
		return gateway.NewProviderError(gateway.ErrorProviderOutage, c.name, msg, nil)
	default:
		return gateway.NewProviderError(gateway.ErrorBadData, c.name, msg, nil)
	}
}
