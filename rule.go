package notificationhubs

import (
	"crypto/rand"
	"encoding/base64"

	"github.com/pkg/errors"
)

type (
	// AccessRight is one permission granted by an authorization rule
	AccessRight string

	// SharedAccessAuthorizationRule is a shared access key rule attached to a
	// hub. Validation is purely local; provisioning rules on the service is a
	// resource manager concern outside this library.
	SharedAccessAuthorizationRule struct {
		KeyName      string
		PrimaryKey   string
		SecondaryKey string
		ClaimType    string
		ClaimValue   string
		Rights       []AccessRight
	}
)

const (
	// RightManage grants management operations. A rule granting Manage must
	// also grant Send and Listen.
	RightManage AccessRight = "Manage"
	// RightSend grants sending notifications
	RightSend AccessRight = "Send"
	// RightListen grants listen operations
	RightListen AccessRight = "Listen"

	sharedAccessClaimType  = "SharedAccessKey"
	sharedAccessClaimValue = "None"

	ruleKeyBytes   = 32
	ruleKeyChars   = 44 // base64 length of ruleKeyBytes
	maxRuleNameLen = 256
)

// NewSharedAccessAuthorizationRule builds a rule with freshly generated
// primary and secondary keys
func NewSharedAccessAuthorizationRule(keyName string, rights []AccessRight) (*SharedAccessAuthorizationRule, error) {
	primary, err := GenerateRuleKey()
	if err != nil {
		return nil, err
	}
	secondary, err := GenerateRuleKey()
	if err != nil {
		return nil, err
	}

	rule := &SharedAccessAuthorizationRule{
		KeyName:      keyName,
		PrimaryKey:   primary,
		SecondaryKey: secondary,
		ClaimType:    sharedAccessClaimType,
		ClaimValue:   sharedAccessClaimValue,
		Rights:       rights,
	}
	if err := rule.Validate(); err != nil {
		return nil, err
	}
	return rule, nil
}

// GenerateRuleKey produces a new random 32 byte key, base64 encoded
func GenerateRuleKey() (string, error) {
	key := make([]byte, ruleKeyBytes)
	if _, err := rand.Read(key); err != nil {
		return "", errors.Wrap(err, "unable to generate rule key")
	}
	return base64.StdEncoding.EncodeToString(key), nil
}

// Validate checks the rule invariants: a non-empty rights set of at most
// three distinct rights, Manage only in combination with Send and Listen, and
// well formed keys
func (r *SharedAccessAuthorizationRule) Validate() error {
	if r.KeyName == "" {
		return errors.New("rule key name must not be empty")
	}
	if len(r.KeyName) > maxRuleNameLen {
		return errors.Errorf("rule key name must not be longer than %d characters", maxRuleNameLen)
	}

	if err := validateRights(r.Rights); err != nil {
		return err
	}

	if err := validateRuleKey("primary", r.PrimaryKey); err != nil {
		return err
	}
	return validateRuleKey("secondary", r.SecondaryKey)
}

func validateRights(rights []AccessRight) error {
	if len(rights) == 0 {
		return errors.New("rule must grant at least one right")
	}
	if len(rights) > 3 {
		return errors.New("rule must not grant more than three rights")
	}

	seen := map[AccessRight]bool{}
	for _, right := range rights {
		switch right {
		case RightManage, RightSend, RightListen:
		default:
			return errors.Errorf("unknown access right %q", right)
		}
		if seen[right] {
			return errors.Errorf("duplicate access right %q", right)
		}
		seen[right] = true
	}

	if seen[RightManage] && (!seen[RightSend] || !seen[RightListen]) {
		return errors.New("a rule granting Manage must also grant Send and Listen")
	}
	return nil
}

func validateRuleKey(which, key string) error {
	if len(key) != ruleKeyChars {
		return errors.Errorf("%s key must be %d base64 characters", which, ruleKeyChars)
	}
	decoded, err := base64.StdEncoding.DecodeString(key)
	if err != nil {
		return errors.Wrapf(err, "%s key must be valid base64", which)
	}
	if len(decoded) != ruleKeyBytes {
		return errors.Errorf("%s key must decode to %d bytes", which, ruleKeyBytes)
	}
	return nil
}
