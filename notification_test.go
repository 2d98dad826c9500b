package notificationhubs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewNotification(t *testing.T) {
	n, err := NewNotification(PlatformApple, []byte(`{"aps":{}}`))
	require.NoError(t, err)
	assert.Equal(t, PlatformApple, n.Platform)

	_, err = NewNotification(Platform("blackberry"), []byte("{}"))
	assert.Error(t, err)

	_, err = NewNotification(PlatformApple, nil)
	assert.Error(t, err)
}

func TestCodecFormats(t *testing.T) {
	cases := map[Platform]string{
		PlatformApple:        "apple",
		PlatformFCM:          "gcm",
		PlatformGCM:          "gcm",
		PlatformWindows:      "windows",
		PlatformWindowsPhone: "windowsphone",
		PlatformADM:          "adm",
	}

	for platform, want := range cases {
		codec, err := codecFor(platform)
		require.NoError(t, err)
		assert.Equal(t, want, codec.format, "platform %s", platform)
	}
}

func TestSendWithTagExpressionValidation(t *testing.T) {
	cfg := &sendConfig{}
	assert.Error(t, SendWithTagExpression("")(cfg))
	assert.NoError(t, SendWithTagExpression("news || sports")(cfg))
	assert.Equal(t, "news || sports", cfg.tagExpression)
}

func TestNotificationIDFromLocation(t *testing.T) {
	id := notificationIDFromLocation("https://ns.servicebus.windows.net/hub/messages/abc-123?api-version=2015-01")
	assert.Equal(t, "abc-123", id)

	assert.Empty(t, notificationIDFromLocation(""))
}
