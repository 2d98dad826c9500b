package common

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

const (
	namespace = "mynamespace"
	keyName   = "keyName"
	secret    = "superSecret="
	connStr   = "Endpoint=sb://" + namespace + ".servicebus.windows.net/;SharedAccessKeyName=" + keyName + ";SharedAccessKey=" + secret
)

func TestParsedConnectionFromStr(t *testing.T) {
	parsed, err := ParsedConnectionFromStr(connStr)
	assert.Nil(t, err, err)
	assert.Equal(t, "sb://"+namespace+".servicebus.windows.net/", parsed.Endpoint)
	assert.Equal(t, namespace, parsed.Namespace)
	assert.Equal(t, "servicebus.windows.net", parsed.Suffix)
	assert.Equal(t, keyName, parsed.KeyName)
	assert.Equal(t, secret, parsed.Key)
}

func TestParsedConnectionFromStrFieldOrderIndependent(t *testing.T) {
	reordered := "SharedAccessKey=" + secret + ";Endpoint=sb://" + namespace + ".servicebus.windows.net/;SharedAccessKeyName=" + keyName
	parsed, err := ParsedConnectionFromStr(reordered)
	assert.Nil(t, err, err)
	assert.Equal(t, namespace, parsed.Namespace)
	assert.Equal(t, keyName, parsed.KeyName)
	assert.Equal(t, secret, parsed.Key)
}

func TestParsedConnectionFromStrWithEntityPath(t *testing.T) {
	parsed, err := ParsedConnectionFromStr(connStr + ";EntityPath=myhub")
	assert.Nil(t, err, err)
	assert.Equal(t, "myhub", parsed.HubName)
}

func TestParsedConnectionFromStrScenario(t *testing.T) {
	parsed, err := ParsedConnectionFromStr("Endpoint=sb://ns.servicebus.windows.net/;SharedAccessKeyName=k;SharedAccessKey=abc123==")
	assert.Nil(t, err, err)
	assert.Equal(t, "sb://ns.servicebus.windows.net/", parsed.Endpoint)
	assert.Equal(t, "k", parsed.KeyName)
	assert.Equal(t, "abc123==", parsed.Key)
}

func TestParsedConnectionFromStrMissingKey(t *testing.T) {
	_, err := ParsedConnectionFromStr("Endpoint=sb://ns.servicebus.windows.net/;SharedAccessKeyName=k")
	assert.NotNil(t, err)
}

func TestParsedConnectionFromStrMissingEndpoint(t *testing.T) {
	_, err := ParsedConnectionFromStr("SharedAccessKeyName=k;SharedAccessKey=abc123==")
	assert.NotNil(t, err)
}
