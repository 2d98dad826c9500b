package notificationhubs

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Azure/azure-notification-hubs-go/sas"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

const (
	testHubKeyName = "testkey"
	testHubKey     = "AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA="
)

type (
	// pipelineSuite exercises the request pipeline end to end against a local
	// HTTP server standing in for the service
	pipelineSuite struct {
		suite.Suite
	}
)

func TestPipelineSuite(t *testing.T) {
	suite.Run(t, new(pipelineSuite))
}

func (s *pipelineSuite) newHub(handler http.HandlerFunc, opts ...HubOption) (*Hub, *httptest.Server) {
	server := httptest.NewServer(handler)
	s.T().Cleanup(server.Close)

	provider, err := sas.NewTokenProvider(sas.TokenProviderWithKey(testHubKeyName, testHubKey))
	require.NoError(s.T(), err)

	opts = append([]HubOption{
		HubWithEndpoint(server.URL),
		HubWithRetryOptions(RetryOptions{MaxRetries: 3, Delay: 10 * time.Millisecond}),
	}, opts...)
	hub, err := NewHub("testns", "testhub", provider, opts...)
	require.NoError(s.T(), err)
	return hub, server
}

func testNotification(t require.TestingT) *Notification {
	n, err := NewNotification(PlatformApple, []byte(`{"aps":{"alert":"hello"}}`))
	require.NoError(t, err)
	return n
}

func (s *pipelineSuite) TestSendAttachesAuthVersionAndTracking() {
	var seen atomic.Value
	hub, _ := s.newHub(func(w http.ResponseWriter, r *http.Request) {
		seen.Store(r.Clone(context.Background()))
		w.WriteHeader(http.StatusCreated)
	})

	_, err := hub.Send(context.Background(), testNotification(s.T()), SendWithTagExpression("(breaking && news)"))
	require.NoError(s.T(), err)

	r := seen.Load().(*http.Request)
	assert.Equal(s.T(), http.MethodPost, r.Method)
	assert.Equal(s.T(), "/testhub/messages", r.URL.Path)
	assert.Equal(s.T(), apiVersion, r.URL.Query().Get("api-version"))
	assert.Contains(s.T(), r.Header.Get("Authorization"), "SharedAccessSignature sr=")
	assert.NotEmpty(s.T(), r.Header.Get(trackingIDHeader))
	assert.Equal(s.T(), "apple", r.Header.Get(formatHeader))
	assert.Equal(s.T(), "(breaking && news)", r.Header.Get(tagsHeader))
	assert.Equal(s.T(), rootUserAgent, r.Header.Get("User-Agent"))
}

func (s *pipelineSuite) TestFCMNotificationsDowngradeToGCMFormat() {
	var format atomic.Value
	hub, _ := s.newHub(func(w http.ResponseWriter, r *http.Request) {
		format.Store(r.Header.Get(formatHeader))
		w.WriteHeader(http.StatusCreated)
	})

	n, err := NewNotification(PlatformFCM, []byte(`{"data":{"message":"hello"}}`))
	require.NoError(s.T(), err)
	_, err = hub.Send(context.Background(), n)
	require.NoError(s.T(), err)

	assert.Equal(s.T(), "gcm", format.Load())
}

func (s *pipelineSuite) TestSendDirect() {
	var seen atomic.Value
	hub, _ := s.newHub(func(w http.ResponseWriter, r *http.Request) {
		seen.Store(r.Clone(context.Background()))
		w.WriteHeader(http.StatusCreated)
	})

	_, err := hub.SendDirect(context.Background(), testNotification(s.T()), "devicetoken123")
	require.NoError(s.T(), err)

	r := seen.Load().(*http.Request)
	assert.Equal(s.T(), "devicetoken123", r.Header.Get(deviceHandleHeader))
	_, direct := r.URL.Query()["direct"]
	assert.True(s.T(), direct)
}

func (s *pipelineSuite) TestTransientFailuresAreRetried() {
	// three 500s then success: four calls total, waits between them
	var calls int32
	hub, _ := s.newHub(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) <= 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusCreated)
	})

	start := time.Now()
	_, err := hub.Send(context.Background(), testNotification(s.T()))
	require.NoError(s.T(), err)

	assert.EqualValues(s.T(), 4, atomic.LoadInt32(&calls))
	assert.GreaterOrEqual(s.T(), time.Since(start), 30*time.Millisecond)
}

func (s *pipelineSuite) TestRetryAfterOverridesDelay() {
	var calls int32
	hub, _ := s.newHub(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.Header().Set(retryAfterHeader, "1")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.WriteHeader(http.StatusCreated)
	})

	start := time.Now()
	_, err := hub.Send(context.Background(), testNotification(s.T()))
	require.NoError(s.T(), err)

	assert.EqualValues(s.T(), 2, atomic.LoadInt32(&calls))
	assert.GreaterOrEqual(s.T(), time.Since(start), time.Second)
}

func (s *pipelineSuite) TestConflictSurfacesImmediately() {
	var calls int32
	hub, _ := s.newHub(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Header().Set(trackingIDHeader, "track-409")
		w.WriteHeader(http.StatusConflict)
	})

	registration := &Registration{Platform: PlatformApple, PnsHandle: "token"}
	_, err := hub.CreateRegistration(context.Background(), registration)

	require.Error(s.T(), err)
	assert.True(s.T(), IsAlreadyExists(err))
	assert.EqualValues(s.T(), 1, atomic.LoadInt32(&calls))

	typed, ok := asError(err)
	require.True(s.T(), ok)
	assert.Equal(s.T(), "track-409", typed.TrackingID)
}

func (s *pipelineSuite) TestNotFoundMakesSingleAttempt() {
	var calls int32
	hub, _ := s.newHub(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusNotFound)
	})

	start := time.Now()
	_, err := hub.GetRegistration(context.Background(), "12345")

	assert.True(s.T(), IsNotFound(err))
	assert.EqualValues(s.T(), 1, atomic.LoadInt32(&calls))
	assert.Less(s.T(), time.Since(start), 500*time.Millisecond)
}

func (s *pipelineSuite) TestAttemptTimeoutClassifiedAsCommunication() {
	// every attempt times out; maxRetries 1 means two attempts and the
	// surfaced error is the timeout classification, not a generic failure
	var calls int32
	hub, _ := s.newHub(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		time.Sleep(300 * time.Millisecond)
		w.WriteHeader(http.StatusCreated)
	},
		HubWithHTTPClient(&http.Client{Timeout: 50 * time.Millisecond}),
		HubWithRetryOptions(RetryOptions{MaxRetries: 1, Delay: 10 * time.Millisecond}),
	)

	_, err := hub.Send(context.Background(), testNotification(s.T()))

	require.Error(s.T(), err)
	typed, ok := asError(err)
	require.True(s.T(), ok)
	assert.Equal(s.T(), ErrorKindCommunication, typed.Kind)
	assert.EqualValues(s.T(), 2, atomic.LoadInt32(&calls))
}

func (s *pipelineSuite) TestCancellationAbortsOperation() {
	var calls int32
	hub, _ := s.newHub(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		time.Sleep(300 * time.Millisecond)
		w.WriteHeader(http.StatusCreated)
	})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err := hub.Send(ctx, testNotification(s.T()))

	assert.ErrorIs(s.T(), err, context.Canceled)
	assert.EqualValues(s.T(), 1, atomic.LoadInt32(&calls))
}

func (s *pipelineSuite) TestScheduleReturnsNotificationID() {
	hub, _ := s.newHub(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(s.T(), "/testhub/schedulednotifications", r.URL.Path)
		assert.NotEmpty(s.T(), r.Header.Get(scheduleTimeHeader))
		w.Header().Set("Location", "https://testns.servicebus.windows.net/testhub/schedulednotifications/notif-abc123?api-version="+apiVersion)
		w.WriteHeader(http.StatusCreated)
	})

	id, err := hub.Schedule(context.Background(), testNotification(s.T()), time.Now().Add(time.Hour))
	require.NoError(s.T(), err)
	assert.Equal(s.T(), "notif-abc123", id)
}

func (s *pipelineSuite) TestCancelScheduled() {
	var seen atomic.Value
	hub, _ := s.newHub(func(w http.ResponseWriter, r *http.Request) {
		seen.Store(r.Clone(context.Background()))
		w.WriteHeader(http.StatusOK)
	})

	require.NoError(s.T(), hub.CancelScheduled(context.Background(), "notif-abc123"))

	r := seen.Load().(*http.Request)
	assert.Equal(s.T(), http.MethodDelete, r.Method)
	assert.Equal(s.T(), "/testhub/schedulednotifications/notif-abc123", r.URL.Path)
}

func (s *pipelineSuite) TestListRegistrationsPaging() {
	const feedPage = `<feed xmlns="http://www.w3.org/2005/Atom">
		<entry>
			<title>reg-1</title>
			<content type="application/xml">
				<AppleRegistrationDescription xmlns="http://schemas.microsoft.com/netservices/2010/10/servicebus/connect">
					<RegistrationId>reg-1</RegistrationId>
					<Tags>news,sports</Tags>
					<DeviceToken>abcdef</DeviceToken>
				</AppleRegistrationDescription>
			</content>
		</entry>
	</feed>`

	var calls int32
	var secondToken atomic.Value
	hub, _ := s.newHub(func(w http.ResponseWriter, r *http.Request) {
		switch atomic.AddInt32(&calls, 1) {
		case 1:
			w.Header().Set(continuationTokenHeader, "page-2-token")
		default:
			secondToken.Store(r.Header.Get(continuationTokenHeader))
		}
		w.Header().Set("Content-Type", "application/atom+xml")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(feedPage))
	})

	first, err := hub.ListRegistrations(context.Background(), ListWithTop(1))
	require.NoError(s.T(), err)
	require.Len(s.T(), first.Registrations, 1)
	assert.Equal(s.T(), "reg-1", first.Registrations[0].RegistrationID)
	assert.Equal(s.T(), []string{"news", "sports"}, first.Registrations[0].Tags)
	assert.Equal(s.T(), "abcdef", first.Registrations[0].PnsHandle)
	assert.Equal(s.T(), "page-2-token", first.ContinuationToken)

	second, err := hub.ListRegistrations(context.Background(), ListWithContinuationToken(first.ContinuationToken))
	require.NoError(s.T(), err)
	// the token went back to the service verbatim and the last page carries none
	assert.Equal(s.T(), "page-2-token", secondToken.Load())
	assert.Empty(s.T(), second.ContinuationToken)
}

func (s *pipelineSuite) TestInstallationRoundTrip() {
	var seen atomic.Value
	hub, _ := s.newHub(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPut:
			seen.Store(r.Clone(context.Background()))
			w.WriteHeader(http.StatusOK)
		case http.MethodGet:
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"installationId":"install-1","platform":"apns","pushChannel":"abcdef","tags":["news"]}`))
		}
	})

	installation := &Installation{
		InstallationID: "install-1",
		Platform:       PlatformApple,
		PushChannel:    "abcdef",
		Tags:           []string{"news"},
	}
	require.NoError(s.T(), hub.CreateOrUpdateInstallation(context.Background(), installation))

	r := seen.Load().(*http.Request)
	assert.Equal(s.T(), "/testhub/installations/install-1", r.URL.Path)

	got, err := hub.GetInstallation(context.Background(), "install-1")
	require.NoError(s.T(), err)
	assert.Equal(s.T(), PlatformApple, got.Platform)
	assert.Equal(s.T(), "abcdef", got.PushChannel)
	assert.Equal(s.T(), []string{"news"}, got.Tags)
}

func (s *pipelineSuite) TestGetNotificationDetails() {
	hub, _ := s.newHub(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(s.T(), "/testhub/messages/notif-1", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"NotificationId": "notif-1",
			"State": "Completed",
			"EnqueueTime": "2023-04-01T12:00:00Z",
			"TargetPlatforms": "apple",
			"Outcomes": {"Success": 41, "AbandonedNotificationMessages": 1}
		}`))
	})

	details, err := hub.GetNotificationDetails(context.Background(), "notif-1")
	require.NoError(s.T(), err)
	assert.Equal(s.T(), "notif-1", details.NotificationID)
	assert.Equal(s.T(), "Completed", details.State)
	assert.Equal(s.T(), 41, details.Outcomes["Success"])
	assert.Equal(s.T(), 2023, details.EnqueueTime.Year())
}

func TestNewHubValidation(t *testing.T) {
	provider, err := sas.NewTokenProvider(sas.TokenProviderWithKey(testHubKeyName, testHubKey))
	require.NoError(t, err)

	_, err = NewHub("", "hub", provider)
	assert.Error(t, err)

	_, err = NewHub("ns", "", provider)
	assert.Error(t, err)
}

func TestNewHubFromConnectionString(t *testing.T) {
	hub, err := NewHubFromConnectionString("Endpoint=sb://ns.servicebus.windows.net/;SharedAccessKeyName=k;SharedAccessKey="+testHubKey+";EntityPath=myhub", "")
	require.NoError(t, err)
	assert.Equal(t, "myhub", hub.name)
	assert.Equal(t, "ns", hub.namespace.name)

	_, err = NewHubFromConnectionString("Endpoint=sb://ns.servicebus.windows.net/;SharedAccessKeyName=k;SharedAccessKey="+testHubKey, "")
	assert.Error(t, err)
}

func TestHubWithUserAgent(t *testing.T) {
	provider, err := sas.NewTokenProvider(sas.TokenProviderWithKey(testHubKeyName, testHubKey))
	require.NoError(t, err)

	hub, err := NewHub("ns", "hub", provider, HubWithUserAgent("myapp/1.0"))
	require.NoError(t, err)
	assert.Equal(t, rootUserAgent+"/myapp/1.0", hub.userAgent)
}
