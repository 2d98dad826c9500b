package notificationhubs

import (
	"fmt"
	"net/http"
	"time"

	"github.com/Azure/azure-notification-hubs-go/auth"
	"github.com/Azure/go-autorest/autorest/azure"
	log "github.com/sirupsen/logrus"
)

const defaultAttemptTimeout = 60 * time.Second

type (
	namespace struct {
		name          string
		tokenProvider auth.TokenProvider
		environment   azure.Environment
		endpoint      string
		client        *http.Client
		Logger        *log.Logger
	}
)

func newNamespace(name string, tokenProvider auth.TokenProvider, env azure.Environment) *namespace {
	ns := &namespace{
		name:          name,
		tokenProvider: tokenProvider,
		environment:   env,
		client: &http.Client{
			Timeout: defaultAttemptTimeout,
		},
		Logger: log.New(),
	}
	ns.Logger.SetLevel(log.WarnLevel)

	return ns
}

func (ns *namespace) getHTTPSHostURI() string {
	if ns.endpoint != "" {
		return ns.endpoint
	}
	return fmt.Sprintf("https://%s.%s/", ns.name, ns.environment.ServiceBusEndpointSuffix)
}

func (ns *namespace) getEntityAudience(entityPath string) string {
	return ns.getHTTPSHostURI() + entityPath
}
