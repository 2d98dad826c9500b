package notificationhubs

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/url"

	"github.com/Azure/azure-notification-hubs-go/auth"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// apiVersion is the service API version attached to every request
const apiVersion = "2015-01"

type (
	// request describes one logical call against the service. The same request
	// is re-sent unchanged on every retry attempt.
	request struct {
		method string
		path   string // relative to the namespace root
		query  url.Values
		header http.Header
		body   []byte
		action string // SAS action used for the authorization token
	}

	// response captures everything an operation needs from a successful call
	response struct {
		status int
		header http.Header
		body   []byte
	}

	// actionTokenProvider is implemented by token providers that scope tokens
	// to an action and support cache bypass, such as sas.TokenProvider
	actionTokenProvider interface {
		GetTokenWithAction(audience, action string, bypassCache bool) (*auth.Token, error)
	}
)

func newRequest(method, path, action string) *request {
	return &request{
		method: method,
		path:   path,
		query:  url.Values{},
		header: http.Header{},
		action: action,
	}
}

// execute drives a request through the full pipeline: token, send, classify,
// retry. The typed error from the losing attempt is what callers see;
// successful responses are never cached, only tokens are.
func (h *Hub) execute(ctx context.Context, req *request) (*response, error) {
	item, err := runWithRetry(ctx, h.retryOptions, func(ctx context.Context) (interface{}, error) {
		return h.attempt(ctx, req)
	})
	if err != nil {
		return nil, err
	}
	return item.(*response), nil
}

func (h *Hub) attempt(ctx context.Context, r *request) (interface{}, error) {
	target := h.namespace.getEntityAudience(r.path)

	token, err := h.getToken(target, r.action)
	if err != nil {
		return nil, err
	}

	u, err := url.Parse(target)
	if err != nil {
		return nil, err
	}
	query := url.Values{}
	for name, values := range r.query {
		query[name] = values
	}
	query.Set("api-version", apiVersion)
	u.RawQuery = query.Encode()

	var body io.Reader
	if len(r.body) > 0 {
		body = bytes.NewReader(r.body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, r.method, u.String(), body)
	if err != nil {
		return nil, err
	}
	for name, values := range r.header {
		httpReq.Header[name] = values
	}
	httpReq.Header.Set("Authorization", token.Token)
	httpReq.Header.Set("User-Agent", h.userAgent)
	if httpReq.Header.Get(trackingIDHeader) == "" {
		httpReq.Header.Set(trackingIDHeader, uuid.New().String())
	}

	res, err := h.namespace.client.Do(httpReq)
	if err != nil {
		// the caller's context ending aborts the operation outright; only
		// failures of the round trip itself feed the retry loop
		if ctx.Err() != nil {
			return nil, err
		}
		transportErr := classifyTransportError(err)
		h.logAttemptFailure(r, transportErr)
		return nil, transportErr
	}
	defer res.Body.Close()

	resBody, err := io.ReadAll(res.Body)
	if err != nil {
		if ctx.Err() != nil {
			return nil, err
		}
		transportErr := classifyTransportError(err)
		h.logAttemptFailure(r, transportErr)
		return nil, transportErr
	}

	if res.StatusCode >= 200 && res.StatusCode < 300 {
		return &response{
			status: res.StatusCode,
			header: res.Header,
			body:   resBody,
		}, nil
	}

	typedErr := classifyResponse(res, resBody)
	h.logAttemptFailure(r, typedErr)
	return nil, typedErr
}

// getToken fetches the authorization token for one attempt. The same token is
// deliberately reused across retries of a call; a retry never forces a cache
// bypass, even after an authorization failure.
func (h *Hub) getToken(audience, action string) (*auth.Token, error) {
	if provider, ok := h.namespace.tokenProvider.(actionTokenProvider); ok {
		return provider.GetTokenWithAction(audience, action, false)
	}
	return h.namespace.tokenProvider.GetToken(audience)
}

func (h *Hub) logAttemptFailure(r *request, err *Error) {
	h.namespace.Logger.WithFields(log.Fields{
		"method":     r.method,
		"path":       r.path,
		"kind":       err.Kind.String(),
		"status":     err.StatusCode,
		"transient":  err.IsTransient(),
		"trackingId": err.TrackingID,
	}).Debug("request attempt failed")
}
