// Package notificationhubs provides functionality for interacting with Azure Notification Hubs.
package notificationhubs

//	MIT License
//
//	Copyright (c) Microsoft Corporation. All rights reserved.
//
//	Permission is hereby granted, free of charge, to any person obtaining a copy
//	of this software and associated documentation files (the "Software"), to deal
//	in the Software without restriction, including without limitation the rights
//	to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
//	copies of the Software, and to permit persons to whom the Software is
//	furnished to do so, subject to the following conditions:
//
//	The above copyright notice and this permission notice shall be included in all
//	copies or substantial portions of the Software.
//
//	THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
//	IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
//	FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
//	AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
//	LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
//	OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
//	SOFTWARE

import (
	"net/http"
	"os"
	"path"
	"strings"

	"github.com/Azure/azure-notification-hubs-go/auth"
	"github.com/Azure/azure-notification-hubs-go/internal/common"
	"github.com/Azure/azure-notification-hubs-go/sas"
	"github.com/Azure/go-autorest/autorest/azure"
	"github.com/pkg/errors"
)

const (
	maxUserAgentLen = 128
	rootUserAgent   = "/golang-notification-hubs"

	// Version is the semantic version number
	Version = "0.1.0"
)

type (
	// Hub provides the ability to manage device registrations and send
	// notifications through an Azure Notification Hub
	Hub struct {
		name         string
		namespace    *namespace
		retryOptions RetryOptions
		userAgent    string
	}

	// HubOption provides structure for configuring new Hub instances
	HubOption func(h *Hub) error
)

// NewHub creates a new Notification Hub client for managing registrations and
// sending notifications
func NewHub(namespace, name string, tokenProvider auth.TokenProvider, opts ...HubOption) (*Hub, error) {
	if namespace == "" {
		return nil, errors.New("namespace must not be empty")
	}
	if name == "" {
		return nil, errors.New("hub name must not be empty")
	}

	ns := newNamespace(namespace, tokenProvider, azure.PublicCloud)
	h := &Hub{
		name:         name,
		namespace:    ns,
		retryOptions: defaultRetryOptions(),
		userAgent:    rootUserAgent,
	}

	for _, opt := range opts {
		if err := opt(h); err != nil {
			return nil, err
		}
	}

	return h, nil
}

// NewHubFromConnectionString creates a new Notification Hub client from a
// connection string copied from the Azure portal. When the connection string
// carries an EntityPath field the name argument may be left empty.
//
// looks like: Endpoint=sb://namespace.servicebus.windows.net/;SharedAccessKeyName=DefaultFullSharedAccessSignature;SharedAccessKey=superSecret1234=
func NewHubFromConnectionString(connStr, name string, opts ...HubOption) (*Hub, error) {
	parsed, err := common.ParsedConnectionFromStr(connStr)
	if err != nil {
		return nil, err
	}
	if name == "" {
		name = parsed.HubName
	}
	if name == "" {
		return nil, errors.New("hub name was empty and the connection string carries no EntityPath")
	}

	provider, err := sas.NewTokenProvider(sas.TokenProviderWithKey(parsed.KeyName, parsed.Key))
	if err != nil {
		return nil, err
	}
	return NewHub(parsed.Namespace, name, provider, opts...)
}

// NewHubFromEnvironment creates a new Notification Hub client from environment variables
//
// Expected Environment Variables:
//   - "NOTIFICATIONHUB_NAMESPACE" the namespace of the Notification Hub
//   - "NOTIFICATIONHUB_NAME" the name of the Notification Hub
//
// along with the variables read by sas.TokenProviderWithEnvironmentVars.
func NewHubFromEnvironment(opts ...HubOption) (*Hub, error) {
	const envErrMsg = "environment var %s must not be empty"
	var namespace, name string

	if namespace = os.Getenv("NOTIFICATIONHUB_NAMESPACE"); namespace == "" {
		return nil, errors.Errorf(envErrMsg, "NOTIFICATIONHUB_NAMESPACE")
	}

	if name = os.Getenv("NOTIFICATIONHUB_NAME"); name == "" {
		return nil, errors.Errorf(envErrMsg, "NOTIFICATIONHUB_NAME")
	}

	provider, err := sas.NewTokenProvider(sas.TokenProviderWithEnvironmentVars())
	if err != nil {
		return nil, err
	}
	return NewHub(namespace, name, provider, opts...)
}

// HubWithEnvironment configures the Hub to use the specified Azure environment.
//
// By default, the Hub instance will use the Azure US Public cloud environment
func HubWithEnvironment(env azure.Environment) HubOption {
	return func(h *Hub) error {
		h.namespace.environment = env
		return nil
	}
}

// HubWithEndpoint configures the Hub to target the given base URL instead of
// the one derived from the namespace and environment, for sovereign clouds and
// local emulators
func HubWithEndpoint(endpoint string) HubOption {
	return func(h *Hub) error {
		if endpoint == "" {
			return errors.New("endpoint must not be empty")
		}
		if !strings.HasSuffix(endpoint, "/") {
			endpoint += "/"
		}
		h.namespace.endpoint = endpoint
		return nil
	}
}

// HubWithRetryOptions configures how the Hub re-attempts operations that fail
// with a transient error
func HubWithRetryOptions(opts RetryOptions) HubOption {
	return func(h *Hub) error {
		if opts.MaxRetries < 0 {
			return errors.New("MaxRetries must not be negative")
		}
		if opts.Delay <= 0 {
			opts.Delay = defaultRetryDelay
		}
		h.retryOptions = opts
		return nil
	}
}

// HubWithHTTPClient configures the Hub to send requests through the given
// client. The client may be shared across Hub instances; connection pooling is
// its responsibility.
func HubWithHTTPClient(client *http.Client) HubOption {
	return func(h *Hub) error {
		if client == nil {
			return errors.New("http client must not be nil")
		}
		h.namespace.client = client
		return nil
	}
}

// HubWithUserAgent configures the Hub to append the given string to the user agent sent to the server
//
// This option can be specified multiple times to add additional segments.
//
// Max user agent length is specified by the const maxUserAgentLen.
func HubWithUserAgent(userAgent string) HubOption {
	return func(h *Hub) error {
		return h.appendAgent(userAgent)
	}
}

func (h *Hub) appendAgent(userAgent string) error {
	ua := path.Join(h.userAgent, userAgent)
	if len(ua) > maxUserAgentLen {
		return errors.Errorf("user agent string has surpassed the max length of %d", maxUserAgentLen)
	}
	h.userAgent = ua
	return nil
}

func (h *Hub) entityPath(sub string) string {
	if sub == "" {
		return h.name
	}
	return h.name + "/" + sub
}
