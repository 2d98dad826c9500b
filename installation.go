package notificationhubs

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/Azure/azure-notification-hubs-go/sas"
	"github.com/Azure/go-autorest/autorest/date"
	"github.com/pkg/errors"
)

type (
	// Installation is a device registration keyed by an app chosen stable id.
	// Unlike registrations, installations support partial updates via
	// PatchInstallation.
	Installation struct {
		InstallationID string                          `json:"installationId"`
		UserID         string                          `json:"userId,omitempty"`
		Platform       Platform                        `json:"-"`
		PushChannel    string                          `json:"pushChannel"`
		Tags           []string                        `json:"tags,omitempty"`
		Templates      map[string]InstallationTemplate `json:"templates,omitempty"`
		ExpirationTime *date.Time                      `json:"expirationTime,omitempty"`
	}

	// InstallationTemplate is a templated payload stored with an installation
	InstallationTemplate struct {
		Body    string            `json:"body"`
		Headers map[string]string `json:"headers,omitempty"`
		Tags    []string          `json:"tags,omitempty"`
	}

	// PatchOperation is the verb of one installation patch step
	PatchOperation string

	// InstallationPatch is one step of a partial installation update
	InstallationPatch struct {
		Op    PatchOperation `json:"op"`
		Path  string         `json:"path"`
		Value string         `json:"value,omitempty"`
	}
)

const (
	// PatchOperationAdd adds a value at the given path
	PatchOperationAdd PatchOperation = "add"
	// PatchOperationRemove removes the value at the given path
	PatchOperationRemove PatchOperation = "remove"
	// PatchOperationReplace replaces the value at the given path
	PatchOperationReplace PatchOperation = "replace"
)

// installationPlatforms maps the wire platform values used by installation
// documents back onto Platform constants. FCM installations are stored by the
// service under the legacy gcm value, so the reverse mapping yields
// PlatformGCM.
var installationPlatforms = map[string]Platform{
	"apns": PlatformApple,
	"gcm":  PlatformGCM,
	"wns":  PlatformWindows,
	"mpns": PlatformWindowsPhone,
	"adm":  PlatformADM,
}

// installationAlias strips the marshaling methods off Installation so the
// wire struct can embed it without recursing
type installationAlias Installation

type wireInstallation struct {
	installationAlias
	WirePlatform string `json:"platform"`
}

// MarshalJSON writes the installation with its platform downgraded to the
// wire value from the codec table
func (i Installation) MarshalJSON() ([]byte, error) {
	codec, err := codecFor(i.Platform)
	if err != nil {
		return nil, err
	}
	return json.Marshal(wireInstallation{
		installationAlias: installationAlias(i),
		WirePlatform:      codec.installationValue,
	})
}

// UnmarshalJSON reads an installation, mapping the wire platform value back
// onto a Platform constant
func (i *Installation) UnmarshalJSON(data []byte) error {
	var wire wireInstallation
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	platform, ok := installationPlatforms[wire.WirePlatform]
	if !ok {
		return errors.Errorf("unknown installation platform %q", wire.WirePlatform)
	}
	wire.installationAlias.Platform = platform
	*i = Installation(wire.installationAlias)
	return nil
}

// CreateOrUpdateInstallation upserts the installation under its installation
// id. The operation is idempotent and safe to retry.
func (h *Hub) CreateOrUpdateInstallation(ctx context.Context, installation *Installation) error {
	span, ctx := h.startSpanFromContext(ctx, "notificationhubs.Hub.CreateOrUpdateInstallation")
	defer span.Finish()

	if installation == nil {
		return errors.New("installation must not be nil")
	}
	if installation.InstallationID == "" {
		return errors.New("installation id must not be empty")
	}
	if installation.PushChannel == "" {
		return errors.New("push channel must not be empty")
	}

	body, err := json.Marshal(installation)
	if err != nil {
		return err
	}

	req := newRequest(http.MethodPut, h.entityPath("installations/"+installation.InstallationID), sas.ActionManage)
	req.header.Set("Content-Type", "application/json")
	req.body = body
	_, err = h.execute(ctx, req)
	return err
}

// GetInstallation fetches the installation with the given id
func (h *Hub) GetInstallation(ctx context.Context, installationID string) (*Installation, error) {
	span, ctx := h.startSpanFromContext(ctx, "notificationhubs.Hub.GetInstallation")
	defer span.Finish()

	if installationID == "" {
		return nil, errors.New("installation id must not be empty")
	}

	req := newRequest(http.MethodGet, h.entityPath("installations/"+installationID), sas.ActionManage)
	res, err := h.execute(ctx, req)
	if err != nil {
		return nil, err
	}

	var installation Installation
	if err := json.Unmarshal(res.body, &installation); err != nil {
		return nil, errors.Wrap(err, "malformed installation document")
	}
	return &installation, nil
}

// DeleteInstallation removes the installation with the given id. Deleting an
// installation that does not exist is not an error.
func (h *Hub) DeleteInstallation(ctx context.Context, installationID string) error {
	span, ctx := h.startSpanFromContext(ctx, "notificationhubs.Hub.DeleteInstallation")
	defer span.Finish()

	if installationID == "" {
		return errors.New("installation id must not be empty")
	}

	req := newRequest(http.MethodDelete, h.entityPath("installations/"+installationID), sas.ActionManage)
	_, err := h.execute(ctx, req)
	return err
}

// PatchInstallation applies a partial update to the installation with the
// given id
func (h *Hub) PatchInstallation(ctx context.Context, installationID string, patches []InstallationPatch) error {
	span, ctx := h.startSpanFromContext(ctx, "notificationhubs.Hub.PatchInstallation")
	defer span.Finish()

	if installationID == "" {
		return errors.New("installation id must not be empty")
	}
	if len(patches) == 0 {
		return errors.New("at least one patch step is required")
	}

	body, err := json.Marshal(patches)
	if err != nil {
		return err
	}

	req := newRequest(http.MethodPatch, h.entityPath("installations/"+installationID), sas.ActionManage)
	req.header.Set("Content-Type", "application/json-patch+json")
	req.body = body
	_, err = h.execute(ctx, req)
	return err
}
