package notificationhubs

import (
	"context"
	"encoding/xml"
	"net/http"
	"strconv"
	"strings"

	"github.com/Azure/azure-notification-hubs-go/sas"
	"github.com/Azure/go-autorest/autorest/date"
	"github.com/pkg/errors"
)

type (
	// Registration is a server assigned record binding a push channel to a set
	// of tags. The PnsHandle is the platform specific channel address: an APNs
	// device token, a GCM/FCM registration id, a WNS/MPNS channel URI or an
	// ADM registration id. A non-empty TemplateBody turns the record into a
	// template registration.
	Registration struct {
		RegistrationID string
		ETag           string
		Platform       Platform
		PnsHandle      string
		Tags           []string
		ExpirationTime *date.Time
		TemplateBody   string
	}

	// RegistrationPage is one page of a registration listing. A non-empty
	// ContinuationToken means more pages exist; pass it back verbatim via
	// ListWithContinuationToken to fetch the next one.
	RegistrationPage struct {
		Registrations     []Registration
		ContinuationToken string
	}

	// ListOption provides structure for configuring a registration listing
	ListOption func(l *listConfig) error

	listConfig struct {
		top               int
		filter            string
		tag               string
		continuationToken string
	}

	atomEntry struct {
		XMLName xml.Name    `xml:"entry"`
		Xmlns   string      `xml:"xmlns,attr,omitempty"`
		ID      string      `xml:"id,omitempty"`
		Title   string      `xml:"title,omitempty"`
		Content atomContent `xml:"content"`
	}

	atomContent struct {
		Type        string                  `xml:"type,attr"`
		Description registrationDescription `xml:",any"`
	}

	atomFeed struct {
		XMLName xml.Name    `xml:"feed"`
		Entries []atomEntry `xml:"entry"`
	}

	// registrationDescription is the union of the per-platform registration
	// document shapes; the codec table decides the element name and which
	// handle field is populated.
	registrationDescription struct {
		XMLName           xml.Name
		Xmlns             string     `xml:"xmlns,attr,omitempty"`
		ETag              string     `xml:"ETag,omitempty"`
		ExpirationTime    *date.Time `xml:"ExpirationTime,omitempty"`
		RegistrationID    string     `xml:"RegistrationId,omitempty"`
		Tags              string     `xml:"Tags,omitempty"`
		DeviceToken       string     `xml:"DeviceToken,omitempty"`
		GcmRegistrationID string     `xml:"GcmRegistrationId,omitempty"`
		ChannelURI        string     `xml:"ChannelUri,omitempty"`
		AdmRegistrationID string     `xml:"AdmRegistrationId,omitempty"`
		BodyTemplate      string     `xml:"BodyTemplate,omitempty"`
	}
)

const (
	atomNamespace       = "http://www.w3.org/2005/Atom"
	serviceBusNamespace = "http://schemas.microsoft.com/netservices/2010/10/servicebus/connect"

	continuationTokenHeader = "X-MS-ContinuationToken"
	atomEntryContentType    = "application/atom+xml;type=entry;charset=utf-8"
)

// registrationPlatforms maps registration description element names back onto
// Platform constants. GCM documents cover FCM registrations as well; the
// service never emits an FCM specific element.
var registrationPlatforms = map[string]Platform{
	"AppleRegistrationDescription":   PlatformApple,
	"GcmRegistrationDescription":     PlatformGCM,
	"WindowsRegistrationDescription": PlatformWindows,
	"MpnsRegistrationDescription":    PlatformWindowsPhone,
	"AdmRegistrationDescription":     PlatformADM,
}

func (r *Registration) toEntry() (*atomEntry, error) {
	codec, err := codecFor(r.Platform)
	if err != nil {
		return nil, err
	}
	if r.PnsHandle == "" {
		return nil, errors.New("registration pns handle must not be empty")
	}

	description := registrationDescription{
		Xmlns:          serviceBusNamespace,
		RegistrationID: r.RegistrationID,
		ExpirationTime: r.ExpirationTime,
		Tags:           strings.Join(r.Tags, ","),
	}

	element := codec.registrationElement
	if r.TemplateBody != "" {
		element = strings.Replace(element, "RegistrationDescription", "TemplateRegistrationDescription", 1)
		description.BodyTemplate = r.TemplateBody
	}
	description.XMLName = xml.Name{Local: element}

	switch codec.handleElement {
	case "DeviceToken":
		description.DeviceToken = r.PnsHandle
	case "GcmRegistrationId":
		description.GcmRegistrationID = r.PnsHandle
	case "ChannelUri":
		description.ChannelURI = r.PnsHandle
	case "AdmRegistrationId":
		description.AdmRegistrationID = r.PnsHandle
	default:
		return nil, errors.Errorf("no registration handle element for platform %q", r.Platform)
	}

	return &atomEntry{
		Xmlns: atomNamespace,
		Content: atomContent{
			Type:        "application/xml",
			Description: description,
		},
	}, nil
}

func registrationFromEntry(entry *atomEntry) (*Registration, error) {
	description := entry.Content.Description

	element := description.XMLName.Local
	templated := strings.Contains(element, "TemplateRegistrationDescription")
	if templated {
		element = strings.Replace(element, "TemplateRegistrationDescription", "RegistrationDescription", 1)
	}
	platform, ok := registrationPlatforms[element]
	if !ok {
		return nil, errors.Errorf("unknown registration description %q", description.XMLName.Local)
	}

	registration := &Registration{
		RegistrationID: description.RegistrationID,
		ETag:           strings.Trim(description.ETag, `"`),
		Platform:       platform,
		ExpirationTime: description.ExpirationTime,
		TemplateBody:   description.BodyTemplate,
	}
	if registration.RegistrationID == "" {
		registration.RegistrationID = entry.Title
	}
	if description.Tags != "" {
		registration.Tags = strings.Split(description.Tags, ",")
	}

	switch platform {
	case PlatformApple:
		registration.PnsHandle = description.DeviceToken
	case PlatformGCM:
		registration.PnsHandle = description.GcmRegistrationID
	case PlatformWindows, PlatformWindowsPhone:
		registration.PnsHandle = description.ChannelURI
	case PlatformADM:
		registration.PnsHandle = description.AdmRegistrationID
	}

	return registration, nil
}

// CreateRegistrationID allocates a registration id without creating a
// registration, for use with CreateOrUpdateRegistration
func (h *Hub) CreateRegistrationID(ctx context.Context) (string, error) {
	span, ctx := h.startSpanFromContext(ctx, "notificationhubs.Hub.CreateRegistrationID")
	defer span.Finish()

	req := newRequest(http.MethodPost, h.entityPath("registrationids"), sas.ActionManage)
	res, err := h.execute(ctx, req)
	if err != nil {
		return "", err
	}

	id := notificationIDFromLocation(res.header.Get("Location"))
	if id == "" {
		return "", errors.New("service did not return a registration id location")
	}
	return id, nil
}

// CreateRegistration creates a new registration and returns it with the server
// assigned registration id and ETag filled in.
//
// Plain create is not idempotent: if a transient failure hides a create that
// actually succeeded server side, the retried attempt surfaces
// ErrorKindEntityAlreadyExists. Use CreateOrUpdateRegistration with an id from
// CreateRegistrationID when retried creates must be safe.
func (h *Hub) CreateRegistration(ctx context.Context, registration *Registration) (*Registration, error) {
	span, ctx := h.startSpanFromContext(ctx, "notificationhubs.Hub.CreateRegistration")
	defer span.Finish()

	if registration == nil {
		return nil, errors.New("registration must not be nil")
	}
	return h.upsertRegistration(ctx, registration, http.MethodPost, h.entityPath("registrations"))
}

// CreateOrUpdateRegistration upserts the registration under its registration
// id. Safe to retry.
func (h *Hub) CreateOrUpdateRegistration(ctx context.Context, registration *Registration) (*Registration, error) {
	span, ctx := h.startSpanFromContext(ctx, "notificationhubs.Hub.CreateOrUpdateRegistration")
	defer span.Finish()

	if registration == nil {
		return nil, errors.New("registration must not be nil")
	}
	if registration.RegistrationID == "" {
		return nil, errors.New("registration id must not be empty; allocate one with CreateRegistrationID")
	}
	return h.upsertRegistration(ctx, registration, http.MethodPut, h.entityPath("registrations/"+registration.RegistrationID))
}

func (h *Hub) upsertRegistration(ctx context.Context, registration *Registration, method, path string) (*Registration, error) {
	entry, err := registration.toEntry()
	if err != nil {
		return nil, err
	}
	body, err := xml.Marshal(entry)
	if err != nil {
		return nil, err
	}

	req := newRequest(method, path, sas.ActionManage)
	req.header.Set("Content-Type", atomEntryContentType)
	req.body = body

	res, err := h.execute(ctx, req)
	if err != nil {
		return nil, err
	}
	return parseRegistrationEntry(res.body)
}

// GetRegistration fetches the registration with the given id
func (h *Hub) GetRegistration(ctx context.Context, registrationID string) (*Registration, error) {
	span, ctx := h.startSpanFromContext(ctx, "notificationhubs.Hub.GetRegistration")
	defer span.Finish()

	if registrationID == "" {
		return nil, errors.New("registration id must not be empty")
	}

	req := newRequest(http.MethodGet, h.entityPath("registrations/"+registrationID), sas.ActionManage)
	res, err := h.execute(ctx, req)
	if err != nil {
		return nil, err
	}
	return parseRegistrationEntry(res.body)
}

// DeleteRegistration removes the registration with the given id. An empty
// etag deletes unconditionally.
func (h *Hub) DeleteRegistration(ctx context.Context, registrationID, etag string) error {
	span, ctx := h.startSpanFromContext(ctx, "notificationhubs.Hub.DeleteRegistration")
	defer span.Finish()

	if registrationID == "" {
		return errors.New("registration id must not be empty")
	}
	if etag == "" {
		etag = "*"
	} else {
		etag = `"` + etag + `"`
	}

	req := newRequest(http.MethodDelete, h.entityPath("registrations/"+registrationID), sas.ActionManage)
	req.header.Set("If-Match", etag)
	_, err := h.execute(ctx, req)
	return err
}

// ListWithTop limits the page to at most n registrations
func ListWithTop(n int) ListOption {
	return func(l *listConfig) error {
		if n <= 0 {
			return errors.New("top must be positive")
		}
		l.top = n
		return nil
	}
}

// ListWithFilter restricts the listing with an OData filter expression
func ListWithFilter(filter string) ListOption {
	return func(l *listConfig) error {
		l.filter = filter
		return nil
	}
}

// ListWithTag restricts the listing to registrations carrying the given tag
func ListWithTag(tag string) ListOption {
	return func(l *listConfig) error {
		if tag == "" {
			return errors.New("tag must not be empty")
		}
		l.tag = tag
		return nil
	}
}

// ListWithContinuationToken resumes a listing from the token returned with
// the previous page
func ListWithContinuationToken(token string) ListOption {
	return func(l *listConfig) error {
		l.continuationToken = token
		return nil
	}
}

// ListRegistrations fetches one page of registrations. Page through by
// re-calling with ListWithContinuationToken until the returned token is empty.
func (h *Hub) ListRegistrations(ctx context.Context, opts ...ListOption) (*RegistrationPage, error) {
	span, ctx := h.startSpanFromContext(ctx, "notificationhubs.Hub.ListRegistrations")
	defer span.Finish()

	cfg := &listConfig{}
	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}

	path := h.entityPath("registrations")
	if cfg.tag != "" {
		path = h.entityPath("tags/" + cfg.tag + "/registrations")
	}

	req := newRequest(http.MethodGet, path, sas.ActionManage)
	if cfg.top > 0 {
		req.query.Set("$top", strconv.Itoa(cfg.top))
	}
	if cfg.filter != "" {
		req.query.Set("$filter", cfg.filter)
	}
	if cfg.continuationToken != "" {
		req.header.Set(continuationTokenHeader, cfg.continuationToken)
	}

	res, err := h.execute(ctx, req)
	if err != nil {
		return nil, err
	}

	var feed atomFeed
	if err := xml.Unmarshal(res.body, &feed); err != nil {
		return nil, errors.Wrap(err, "malformed registration feed")
	}

	page := &RegistrationPage{
		ContinuationToken: res.header.Get(continuationTokenHeader),
	}
	for i := range feed.Entries {
		registration, err := registrationFromEntry(&feed.Entries[i])
		if err != nil {
			return nil, err
		}
		page.Registrations = append(page.Registrations, *registration)
	}
	return page, nil
}

func parseRegistrationEntry(body []byte) (*Registration, error) {
	var entry atomEntry
	if err := xml.Unmarshal(body, &entry); err != nil {
		return nil, errors.Wrap(err, "malformed registration document")
	}
	return registrationFromEntry(&entry)
}
