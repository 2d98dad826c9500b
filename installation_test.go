package notificationhubs

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInstallationMarshalPlatformValue(t *testing.T) {
	cases := map[Platform]string{
		PlatformApple:        `"platform":"apns"`,
		PlatformFCM:          `"platform":"gcm"`,
		PlatformGCM:          `"platform":"gcm"`,
		PlatformWindows:      `"platform":"wns"`,
		PlatformWindowsPhone: `"platform":"mpns"`,
		PlatformADM:          `"platform":"adm"`,
	}

	for platform, want := range cases {
		installation := Installation{
			InstallationID: "install-1",
			Platform:       platform,
			PushChannel:    "channel",
		}
		body, err := json.Marshal(installation)
		require.NoError(t, err)
		assert.Contains(t, string(body), want, "platform %s", platform)
	}
}

func TestInstallationMarshalRejectsUnknownPlatform(t *testing.T) {
	installation := Installation{
		InstallationID: "install-1",
		Platform:       Platform("blackberry"),
		PushChannel:    "channel",
	}
	_, err := json.Marshal(installation)
	assert.Error(t, err)
}

func TestInstallationUnmarshal(t *testing.T) {
	const doc = `{
		"installationId": "install-1",
		"userId": "user-7",
		"platform": "apns",
		"pushChannel": "abcdef",
		"tags": ["news"],
		"templates": {
			"greeting": {"body": "{\"aps\":{\"alert\":\"$(message)\"}}"}
		},
		"expirationTime": "2024-07-01T00:00:00Z"
	}`

	var installation Installation
	require.NoError(t, json.Unmarshal([]byte(doc), &installation))

	assert.Equal(t, "install-1", installation.InstallationID)
	assert.Equal(t, "user-7", installation.UserID)
	assert.Equal(t, PlatformApple, installation.Platform)
	assert.Equal(t, "abcdef", installation.PushChannel)
	assert.Equal(t, []string{"news"}, installation.Tags)
	require.Contains(t, installation.Templates, "greeting")
	require.NotNil(t, installation.ExpirationTime)
	assert.Equal(t, 2024, installation.ExpirationTime.Year())
}

func TestInstallationUnmarshalUnknownPlatform(t *testing.T) {
	var installation Installation
	err := json.Unmarshal([]byte(`{"installationId":"i","platform":"blackberry","pushChannel":"c"}`), &installation)
	assert.Error(t, err)
}

func TestInstallationRoundTrip(t *testing.T) {
	original := Installation{
		InstallationID: "install-1",
		Platform:       PlatformWindows,
		PushChannel:    "https://channel.example/uri",
		Tags:           []string{"a", "b"},
	}
	body, err := json.Marshal(original)
	require.NoError(t, err)

	var parsed Installation
	require.NoError(t, json.Unmarshal(body, &parsed))
	assert.Equal(t, original, parsed)
}

func TestInstallationPatchMarshal(t *testing.T) {
	patches := []InstallationPatch{
		{Op: PatchOperationAdd, Path: "/tags", Value: "vip"},
		{Op: PatchOperationRemove, Path: "/userId"},
	}
	body, err := json.Marshal(patches)
	require.NoError(t, err)

	assert.JSONEq(t, `[
		{"op":"add","path":"/tags","value":"vip"},
		{"op":"remove","path":"/userId"}
	]`, string(body))
}
