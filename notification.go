package notificationhubs

import (
	"context"
	"net/http"
	"net/url"
	"path"
	"time"

	"github.com/Azure/azure-notification-hubs-go/sas"
	"github.com/pkg/errors"
)

type (
	// Platform identifies the push notification system a payload is destined
	// for. The set is closed; the per-platform wire details live in the codec
	// table below.
	Platform string

	// Notification is an opaque payload addressed to one platform. The
	// pipeline does not inspect the payload; Headers carry any extra
	// platform specific headers (apns-expiration, X-WNS-Type, ...).
	Notification struct {
		Platform Platform
		Payload  []byte
		Headers  map[string]string
	}

	// SendOption provides structure for configuring a send
	SendOption func(s *sendConfig) error

	sendConfig struct {
		tagExpression string
		deviceHandle  string
		scheduleTime  *time.Time
	}

	// platformCodec holds the per-platform wire mapping: the value of the
	// ServiceBusNotification-Format header, the payload content type, and the
	// element names used by installation and registration documents.
	platformCodec struct {
		format              string
		contentType         string
		installationValue   string
		registrationElement string
		handleElement       string
	}
)

const (
	// PlatformApple targets APNs
	PlatformApple Platform = "apple"
	// PlatformFCM targets Firebase Cloud Messaging. On the wire FCM payloads
	// are carried in the legacy GCM format; see the codec table.
	PlatformFCM Platform = "fcm"
	// PlatformGCM targets legacy Google Cloud Messaging
	PlatformGCM Platform = "gcm"
	// PlatformWindows targets WNS
	PlatformWindows Platform = "windows"
	// PlatformWindowsPhone targets MPNS
	PlatformWindowsPhone Platform = "windowsphone"
	// PlatformADM targets Amazon Device Messaging
	PlatformADM Platform = "adm"
)

const (
	formatHeader       = "ServiceBusNotification-Format"
	tagsHeader         = "ServiceBusNotification-Tags"
	deviceHandleHeader = "ServiceBusNotification-DeviceHandle"
	scheduleTimeHeader = "ServiceBusNotification-ScheduleTime"

	jsonContentType = "application/json;charset=utf-8"
	xmlContentType  = "application/xml;charset=utf-8"
)

// platformCodecs is the closed table mapping each platform onto its wire
// representation. The FCM entry is the explicit compatibility shim: the
// service only speaks the legacy GCM format, so FCM notifications and
// registrations are downgraded to GCM element and format names.
var platformCodecs = map[Platform]platformCodec{
	PlatformApple: {
		format:              "apple",
		contentType:         jsonContentType,
		installationValue:   "apns",
		registrationElement: "AppleRegistrationDescription",
		handleElement:       "DeviceToken",
	},
	PlatformFCM: {
		format:              "gcm",
		contentType:         jsonContentType,
		installationValue:   "gcm",
		registrationElement: "GcmRegistrationDescription",
		handleElement:       "GcmRegistrationId",
	},
	PlatformGCM: {
		format:              "gcm",
		contentType:         jsonContentType,
		installationValue:   "gcm",
		registrationElement: "GcmRegistrationDescription",
		handleElement:       "GcmRegistrationId",
	},
	PlatformWindows: {
		format:              "windows",
		contentType:         xmlContentType,
		installationValue:   "wns",
		registrationElement: "WindowsRegistrationDescription",
		handleElement:       "ChannelUri",
	},
	PlatformWindowsPhone: {
		format:              "windowsphone",
		contentType:         xmlContentType,
		installationValue:   "mpns",
		registrationElement: "MpnsRegistrationDescription",
		handleElement:       "ChannelUri",
	},
	PlatformADM: {
		format:              "adm",
		contentType:         jsonContentType,
		installationValue:   "adm",
		registrationElement: "AdmRegistrationDescription",
		handleElement:       "AdmRegistrationId",
	},
}

func codecFor(platform Platform) (platformCodec, error) {
	codec, ok := platformCodecs[platform]
	if !ok {
		return platformCodec{}, errors.Errorf("unknown platform %q", platform)
	}
	return codec, nil
}

// NewNotification builds a notification for the given platform
func NewNotification(platform Platform, payload []byte) (*Notification, error) {
	if _, err := codecFor(platform); err != nil {
		return nil, err
	}
	if len(payload) == 0 {
		return nil, errors.New("notification payload must not be empty")
	}
	return &Notification{
		Platform: platform,
		Payload:  payload,
	}, nil
}

// SendWithTagExpression targets the send at the devices whose tags satisfy the
// given boolean tag expression
func SendWithTagExpression(expression string) SendOption {
	return func(s *sendConfig) error {
		if expression == "" {
			return errors.New("tag expression must not be empty")
		}
		s.tagExpression = expression
		return nil
	}
}

// Send delivers the notification to every registered device matching the send
// options; with no options it is a broadcast. It returns the server assigned
// notification message id when the service reports one.
func (h *Hub) Send(ctx context.Context, n *Notification, opts ...SendOption) (string, error) {
	span, ctx := h.startSpanFromContext(ctx, "notificationhubs.Hub.Send")
	defer span.Finish()

	return h.sendNotification(ctx, n, "messages", opts)
}

// SendDirect bypasses registrations and delivers the notification straight to
// the given platform specific device handle
func (h *Hub) SendDirect(ctx context.Context, n *Notification, deviceHandle string) (string, error) {
	span, ctx := h.startSpanFromContext(ctx, "notificationhubs.Hub.SendDirect")
	defer span.Finish()

	if deviceHandle == "" {
		return "", errors.New("device handle must not be empty")
	}
	opt := func(s *sendConfig) error {
		s.deviceHandle = deviceHandle
		return nil
	}
	return h.sendNotification(ctx, n, "messages", []SendOption{opt})
}

// Schedule enqueues the notification for delivery at the given time, which
// must be in the future. The returned id can be passed to CancelScheduled.
func (h *Hub) Schedule(ctx context.Context, n *Notification, at time.Time, opts ...SendOption) (string, error) {
	span, ctx := h.startSpanFromContext(ctx, "notificationhubs.Hub.Schedule")
	defer span.Finish()

	if !at.After(time.Now()) {
		return "", errors.New("schedule time must be in the future")
	}
	opt := func(s *sendConfig) error {
		s.scheduleTime = &at
		return nil
	}
	return h.sendNotification(ctx, n, "schedulednotifications", append(opts, opt))
}

// CancelScheduled cancels a pending scheduled notification by id
func (h *Hub) CancelScheduled(ctx context.Context, notificationID string) error {
	span, ctx := h.startSpanFromContext(ctx, "notificationhubs.Hub.CancelScheduled")
	defer span.Finish()

	if notificationID == "" {
		return errors.New("notification id must not be empty")
	}
	req := newRequest(http.MethodDelete, h.entityPath("schedulednotifications/"+notificationID), sas.ActionManage)
	_, err := h.execute(ctx, req)
	return err
}

func (h *Hub) sendNotification(ctx context.Context, n *Notification, resource string, opts []SendOption) (string, error) {
	if n == nil {
		return "", errors.New("notification must not be nil")
	}
	codec, err := codecFor(n.Platform)
	if err != nil {
		return "", err
	}

	cfg := &sendConfig{}
	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return "", err
		}
	}

	req := newRequest(http.MethodPost, h.entityPath(resource), sas.ActionSend)
	req.body = n.Payload
	req.header.Set("Content-Type", codec.contentType)
	req.header.Set(formatHeader, codec.format)
	if cfg.tagExpression != "" {
		req.header.Set(tagsHeader, cfg.tagExpression)
	}
	if cfg.deviceHandle != "" {
		req.header.Set(deviceHandleHeader, cfg.deviceHandle)
		req.query.Set("direct", "")
	}
	if cfg.scheduleTime != nil {
		req.header.Set(scheduleTimeHeader, cfg.scheduleTime.UTC().Format(time.RFC3339))
	}
	for name, value := range n.Headers {
		req.header.Set(name, value)
	}

	res, err := h.execute(ctx, req)
	if err != nil {
		return "", err
	}
	return notificationIDFromLocation(res.header.Get("Location")), nil
}

// notificationIDFromLocation pulls the server assigned message id out of the
// Location response header, when the tier provides one.
func notificationIDFromLocation(location string) string {
	if location == "" {
		return ""
	}
	u, err := url.Parse(location)
	if err != nil {
		return ""
	}
	return path.Base(u.Path)
}
