// Package sas provides Shared Access Signature token generation for
// Notification Hubs namespaces.
package sas

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/Azure/azure-notification-hubs-go/auth"
	"github.com/Azure/azure-notification-hubs-go/internal/common"
	"github.com/pkg/errors"
)

const (
	// ActionManage authorizes management operations on an entity
	ActionManage = "Manage"
	// ActionSend authorizes sending notifications
	ActionSend = "Send"
	// ActionListen authorizes listen operations
	ActionListen = "Listen"

	defaultTokenTTL   = 20 * time.Minute
	defaultCacheSlack = 2 * time.Minute

	maxKeyNameLength = 256
	maxKeyLength     = 256
)

type (
	// Signer produces SAS signatures for a given shared access key
	Signer struct {
		keyName string
		key     []byte
	}

	// TokenProvider is a SAS claims-based security token provider. Generated
	// tokens are cached per (audience, action) pair until they near expiry, so
	// repeated calls against the same resource do not pay for signing.
	TokenProvider struct {
		signer *Signer
		ttl    time.Duration
		slack  time.Duration

		cacheMu sync.Mutex
		cache   map[string]cachedToken
	}

	// TokenProviderOption provides configuration options for a TokenProvider
	TokenProviderOption func(*TokenProvider) error

	cachedToken struct {
		token   *auth.Token
		staleAt time.Time
	}
)

// TokenProviderWithKey configures the provider to sign with the given key name and key
func TokenProviderWithKey(keyName, key string) TokenProviderOption {
	return func(provider *TokenProvider) error {
		signer, err := NewSigner(keyName, key)
		if err != nil {
			return err
		}
		provider.signer = signer
		return nil
	}
}

// TokenProviderWithConnectionString configures the provider from a connection
// string copied from the Azure portal
func TokenProviderWithConnectionString(connStr string) TokenProviderOption {
	return func(provider *TokenProvider) error {
		parsed, err := common.ParsedConnectionFromStr(connStr)
		if err != nil {
			return err
		}
		return TokenProviderWithKey(parsed.KeyName, parsed.Key)(provider)
	}
}

// TokenProviderWithEnvironmentVars configures the provider from environment variables.
//
// There are two sets of environment variables which can produce a SAS TokenProvider
//
// 1) Expected Environment Variables:
//   - "NOTIFICATIONHUB_KEY_NAME" the name of the shared access key
//   - "NOTIFICATIONHUB_KEY_VALUE" the secret for the key named in "NOTIFICATIONHUB_KEY_NAME"
//
// 2) Expected Environment Variable:
//   - "NOTIFICATIONHUB_CONNECTION_STRING" connection string from the Azure portal
//
// looks like: Endpoint=sb://namespace.servicebus.windows.net/;SharedAccessKeyName=DefaultFullSharedAccessSignature;SharedAccessKey=superSecret1234=
func TokenProviderWithEnvironmentVars() TokenProviderOption {
	return func(provider *TokenProvider) error {
		if connStr := os.Getenv("NOTIFICATIONHUB_CONNECTION_STRING"); connStr != "" {
			return TokenProviderWithConnectionString(connStr)(provider)
		}

		var (
			keyName  = os.Getenv("NOTIFICATIONHUB_KEY_NAME")
			keyValue = os.Getenv("NOTIFICATIONHUB_KEY_VALUE")
		)
		if keyName == "" || keyValue == "" {
			return errors.New("unable to build SAS token provider because (NOTIFICATIONHUB_KEY_NAME and NOTIFICATIONHUB_KEY_VALUE) were empty, and NOTIFICATIONHUB_CONNECTION_STRING was empty")
		}
		return TokenProviderWithKey(keyName, keyValue)(provider)
	}
}

// TokenProviderWithTTL configures how long generated tokens live and how much
// of that lifetime is held back as slack before a cached token is considered
// stale. The usable cached lifetime is ttl - slack.
func TokenProviderWithTTL(ttl, slack time.Duration) TokenProviderOption {
	return func(provider *TokenProvider) error {
		if ttl <= slack {
			return errors.New("token ttl must be larger than the cache slack")
		}
		provider.ttl = ttl
		provider.slack = slack
		return nil
	}
}

// NewTokenProvider builds a SAS claims-based security token provider
func NewTokenProvider(opts ...TokenProviderOption) (*TokenProvider, error) {
	provider := &TokenProvider{
		ttl:   defaultTokenTTL,
		slack: defaultCacheSlack,
		cache: make(map[string]cachedToken),
	}
	for _, opt := range opts {
		if err := opt(provider); err != nil {
			return nil, err
		}
	}
	if provider.signer == nil {
		return nil, errors.New("no signing key was provided; use TokenProviderWithKey, TokenProviderWithConnectionString or TokenProviderWithEnvironmentVars")
	}
	return provider, nil
}

// GetToken gets a SAS token for the given audience with the Manage action
func (t *TokenProvider) GetToken(audience string) (*auth.Token, error) {
	return t.GetTokenWithAction(audience, ActionManage, false)
}

// GetTokenWithAction gets a SAS token for the given audience and action. When
// bypassCache is set a fresh token is generated even if a usable one is cached.
func (t *TokenProvider) GetTokenWithAction(audience, action string, bypassCache bool) (*auth.Token, error) {
	normalized, err := NormalizeAudience(audience)
	if err != nil {
		return nil, err
	}

	cacheKey := normalized + "_" + action
	now := time.Now()

	t.cacheMu.Lock()
	defer t.cacheMu.Unlock()

	if !bypassCache {
		if entry, ok := t.cache[cacheKey]; ok && now.Before(entry.staleAt) {
			return entry.token, nil
		}
	}

	signed, expiry := t.signer.SignWithDuration(normalized, t.ttl)
	token := auth.NewToken(auth.TokenTypeSAS, signed, expiry)
	t.cache[cacheKey] = cachedToken{
		token:   token,
		staleAt: now.Add(t.ttl - t.slack),
	}
	return token, nil
}

// NormalizeAudience maps a resource URI onto the canonical form used for
// signing and cache keys. The scheme is forced to http regardless of the
// transport scheme actually in use (a wire-compatibility requirement of the
// service, not a security property), port, fragment, userinfo and query are
// stripped, and the path always ends with a slash. The transform is
// idempotent.
func NormalizeAudience(audience string) (string, error) {
	u, err := url.Parse(audience)
	if err != nil {
		return "", errors.Wrapf(err, "audience %q is not a valid URI", audience)
	}
	if u.Host == "" {
		return "", errors.Errorf("audience %q has no host", audience)
	}
	u.Scheme = "http"
	u.Host = u.Hostname()
	u.User = nil
	u.RawQuery = ""
	u.Fragment = ""
	if !strings.HasSuffix(u.Path, "/") {
		u.Path += "/"
	}
	return u.String(), nil
}

// NewSigner builds a new SAS signer for use in generating Notification Hubs SAS tokens
func NewSigner(keyName, key string) (*Signer, error) {
	if keyName == "" {
		return nil, errors.New("key name must not be empty")
	}
	if len(keyName) > maxKeyNameLength {
		return nil, errors.Errorf("key name must not be longer than %d characters", maxKeyNameLength)
	}
	if key == "" {
		return nil, errors.New("key must not be empty")
	}
	if len(key) > maxKeyLength {
		return nil, errors.Errorf("key must not be longer than %d characters", maxKeyLength)
	}
	decoded, err := base64.StdEncoding.DecodeString(key)
	if err != nil {
		return nil, errors.Wrap(err, "key must be valid base64")
	}
	return &Signer{
		keyName: keyName,
		key:     decoded,
	}, nil
}

// SignWithDuration signs a given audience for a period of time from now
func (s *Signer) SignWithDuration(uri string, interval time.Duration) (signed string, expiry time.Time) {
	expiry = time.Now().Add(interval).Round(time.Second)
	return s.SignWithExpiry(uri, strconv.FormatInt(expiry.Unix(), 10)), expiry
}

// SignWithExpiry signs a given audience with a given expiry string of Unix seconds
func (s *Signer) SignWithExpiry(uri, expiry string) string {
	audience := strings.ToLower(url.QueryEscape(uri))
	sts := stringToSign(audience, expiry)
	sig := s.signString(sts)
	return fmt.Sprintf("SharedAccessSignature sr=%s&sig=%s&se=%s&skn=%s", audience, sig, expiry, url.QueryEscape(s.keyName))
}

func stringToSign(uri, expiry string) string {
	return uri + "\n" + expiry
}

func (s *Signer) signString(str string) string {
	h := hmac.New(sha256.New, s.key)
	h.Write([]byte(str))
	encodedSig := base64.StdEncoding.EncodeToString(h.Sum(nil))
	return url.QueryEscape(encodedSig)
}
