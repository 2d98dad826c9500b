package common

import (
	"net/url"
	"strings"

	"github.com/pkg/errors"
)

const (
	endpointKey = "Endpoint"
	keyNameKey  = "SharedAccessKeyName"
	keyValueKey = "SharedAccessKey"
	entityKey   = "EntityPath"
)

type (
	// ParsedConn is the structure of a parsed Service Bus style connection string.
	ParsedConn struct {
		Endpoint  string
		Namespace string
		Suffix    string
		HubName   string
		KeyName   string
		Key       string
	}
)

// newParsedConnection is a constructor for a ParsedConn and verifies each of the inputs is non-null.
func newParsedConnection(endpoint, namespace, suffix, hubName, keyName, key string) (*ParsedConn, error) {
	if endpoint == "" || keyName == "" || key == "" {
		return nil, errors.New("connection string contains an empty entry")
	}
	return &ParsedConn{
		Endpoint:  endpoint,
		Namespace: namespace,
		Suffix:    suffix,
		HubName:   hubName,
		KeyName:   keyName,
		Key:       key,
	}, nil
}

// ParsedConnectionFromStr takes a connection string from the Azure portal and returns the parsed representation.
//
// The fields are order independent. Each field is split once on its first "=",
// so key values containing "=" padding survive intact. Expected form:
//
//	Endpoint=sb://<namespace>.servicebus.windows.net/;SharedAccessKeyName=<name>;SharedAccessKey=<key>
func ParsedConnectionFromStr(connStr string) (*ParsedConn, error) {
	var endpoint, hubName, keyName, key string
	for _, field := range strings.Split(connStr, ";") {
		field = strings.TrimSpace(field)
		if field == "" {
			continue
		}
		name, value, found := strings.Cut(field, "=")
		if !found {
			return nil, errors.Errorf("connection string field %q is missing a value", field)
		}
		switch name {
		case endpointKey:
			endpoint = value
		case keyNameKey:
			keyName = value
		case keyValueKey:
			key = value
		case entityKey:
			hubName = value
		}
	}

	namespace, suffix, err := splitEndpoint(endpoint)
	if err != nil {
		return nil, err
	}
	return newParsedConnection(endpoint, namespace, suffix, hubName, keyName, key)
}

func splitEndpoint(endpoint string) (namespace, suffix string, err error) {
	if endpoint == "" {
		return "", "", errors.New("connection string is missing an Endpoint field")
	}
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", "", errors.Wrapf(err, "connection string endpoint %q is not a valid URI", endpoint)
	}
	host := u.Hostname()
	if host == "" {
		return "", "", errors.Errorf("connection string endpoint %q has no host", endpoint)
	}
	namespace, suffix, found := strings.Cut(host, ".")
	if !found {
		return host, "", nil
	}
	return namespace, suffix, nil
}
