package notificationhubs

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/Azure/azure-notification-hubs-go/sas"
	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"
)

type (
	// NotificationDetails is the delivery outcome document for one sent
	// notification message
	NotificationDetails struct {
		NotificationID  string         `mapstructure:"NotificationId"`
		State           string         `mapstructure:"State"`
		EnqueueTime     time.Time      `mapstructure:"EnqueueTime"`
		StartTime       time.Time      `mapstructure:"StartTime"`
		EndTime         time.Time      `mapstructure:"EndTime"`
		TargetPlatforms string         `mapstructure:"TargetPlatforms"`
		Outcomes        map[string]int `mapstructure:"Outcomes"`
	}
)

// GetNotificationDetails queries the delivery outcome of a previously sent
// notification. The id is the message id returned by Send or Schedule.
func (h *Hub) GetNotificationDetails(ctx context.Context, notificationID string) (*NotificationDetails, error) {
	span, ctx := h.startSpanFromContext(ctx, "notificationhubs.Hub.GetNotificationDetails")
	defer span.Finish()

	if notificationID == "" {
		return nil, errors.New("notification id must not be empty")
	}

	req := newRequest(http.MethodGet, h.entityPath("messages/"+notificationID), sas.ActionManage)
	res, err := h.execute(ctx, req)
	if err != nil {
		return nil, err
	}
	return newNotificationDetails(res.body)
}

// newNotificationDetails constructs NotificationDetails from the loosely
// typed outcome document
func newNotificationDetails(body []byte) (*NotificationDetails, error) {
	var values map[string]interface{}
	if err := json.Unmarshal(body, &values); err != nil {
		return nil, errors.Wrap(err, "malformed notification outcome document")
	}

	var details NotificationDetails
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook: mapstructure.StringToTimeHookFunc(time.RFC3339),
		Result:     &details,
	})
	if err != nil {
		return nil, err
	}
	if err := decoder.Decode(values); err != nil {
		return nil, errors.Wrap(err, "malformed notification outcome document")
	}
	return &details, nil
}
