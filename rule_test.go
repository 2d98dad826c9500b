package notificationhubs

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validRule(t *testing.T, rights []AccessRight) *SharedAccessAuthorizationRule {
	rule, err := NewSharedAccessAuthorizationRule("DefaultListenSharedAccessSignature", []AccessRight{RightListen})
	require.NoError(t, err)
	rule.Rights = rights
	return rule
}

func TestRuleRightsValidation(t *testing.T) {
	cases := map[string]struct {
		rights []AccessRight
		valid  bool
	}{
		"manage alone":  {rights: []AccessRight{RightManage}, valid: false},
		"manage send":   {rights: []AccessRight{RightManage, RightSend}, valid: false},
		"all three":     {rights: []AccessRight{RightManage, RightSend, RightListen}, valid: true},
		"send listen":   {rights: []AccessRight{RightSend, RightListen}, valid: true},
		"listen alone":  {rights: []AccessRight{RightListen}, valid: true},
		"empty":         {rights: nil, valid: false},
		"duplicates":    {rights: []AccessRight{RightSend, RightSend}, valid: false},
		"unknown right": {rights: []AccessRight{AccessRight("Admin")}, valid: false},
		"four rights":   {rights: []AccessRight{RightManage, RightSend, RightListen, RightListen}, valid: false},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			err := validRule(t, tc.rights).Validate()
			if tc.valid {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestNewSharedAccessAuthorizationRule(t *testing.T) {
	rule, err := NewSharedAccessAuthorizationRule("RootManageSharedAccessKey", []AccessRight{RightManage, RightSend, RightListen})
	require.NoError(t, err)

	assert.Equal(t, "SharedAccessKey", rule.ClaimType)
	assert.Equal(t, "None", rule.ClaimValue)
	assert.NotEqual(t, rule.PrimaryKey, rule.SecondaryKey)

	for _, key := range []string{rule.PrimaryKey, rule.SecondaryKey} {
		assert.Len(t, key, 44)
		decoded, err := base64.StdEncoding.DecodeString(key)
		require.NoError(t, err)
		assert.Len(t, decoded, 32)
	}
}

func TestRuleKeyValidation(t *testing.T) {
	rule := validRule(t, []AccessRight{RightListen})

	rule.PrimaryKey = "tooShort"
	assert.Error(t, rule.Validate())

	rule.PrimaryKey = "!!!!!!!!!!!!!!!!!!!!!!!!!!!!!!!!!!!!!!!!!!!!"
	assert.Error(t, rule.Validate())

	key, err := GenerateRuleKey()
	require.NoError(t, err)
	rule.PrimaryKey = key
	assert.NoError(t, rule.Validate())
}

func TestRuleKeyNameValidation(t *testing.T) {
	rule := validRule(t, []AccessRight{RightListen})

	rule.KeyName = ""
	assert.Error(t, rule.Validate())
}
