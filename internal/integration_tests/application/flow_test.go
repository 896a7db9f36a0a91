package application

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"prereg/internal/application/documents"
	"prereg/internal/application/handler"
	"prereg/internal/application/models"
	"prereg/internal/application/service"
	"prereg/internal/application/store"
	"prereg/internal/audit"
	jwttoken "prereg/internal/jwt_token"
	platformmetrics "prereg/internal/platform/metrics"
	"prereg/pkg/platform/middleware/request"
	"prereg/pkg/platform/middleware/requesttime"
	"prereg/pkg/testutil"
)

const (
	signingKey = "flow-test-signing-key"
	issuer     = "prereg-flow-test"
)

type flow struct {
	t      *testing.T
	router http.Handler
	jwt    *jwttoken.JWTService
	audit  *audit.MemoryPublisher
	purger *documents.RecordingPurger
}

func newFlow(t *testing.T) *flow {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	appStore := store.NewInMemory()
	publisher := audit.NewMemoryPublisher()
	purger := &documents.RecordingPurger{}
	svc := service.New(appStore, service.NewShardedTx(appStore),
		service.WithLogger(logger),
		service.WithAuditPublisher(publisher),
		service.WithPurger(purger),
	)
	jwtService := jwttoken.NewJWTService(signingKey, issuer)

	r := chi.NewRouter()
	r.Use(request.RequestID)
	r.Use(requesttime.Middleware)
	handler.New(svc, jwttoken.NewJWTServiceAdapter(jwtService), logger,
		platformmetrics.New(prometheus.NewRegistry()), 5*time.Second).Register(r)

	return &flow{t: t, router: r, jwt: jwtService, audit: publisher, purger: purger}
}

func (f *flow) token(userID string, roles ...string) string {
	token, err := f.jwt.GenerateAccessToken(userID, roles, time.Hour)
	require.NoError(f.t, err)
	return token
}

func (f *flow) do(token, method, path string, body any) *httptest.ResponseRecorder {
	req := testutil.NewJSONRequest(f.t, method, path, body)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return testutil.DoRequest(f.router, req)
}

type envelope[T any] struct {
	Response     T         `json:"response"`
	ResponseTime time.Time `json:"responsetime"`
}

type created struct {
	PreRegistrationID string `json:"preRegistrationId"`
	StatusCode        string `json:"statusCode"`
}

func identity(withGender bool) map[string]any {
	fields := map[string]any{
		"fullName":        "Amina Okafor",
		"dateOfBirth":     "1990/04/12",
		"residenceStatus": "NFR",
		"phone":           "0712345678",
	}
	if withGender {
		fields["gender"] = "FLE"
	}
	return fields
}

func payload(withGender bool) map[string]any {
	return map[string]any{"langCode": "eng", "identity": identity(withGender)}
}

func TestApplicationLifecycleOverHTTP(t *testing.T) {
	f := newFlow(t)
	citizen := f.token("citizen-1", "INDIVIDUAL")
	neighbour := f.token("citizen-2", "INDIVIDUAL")
	officer := f.token("officer-1", "REGISTRATION_OFFICER")

	rr := f.do(citizen, http.MethodPost, "/applications", map[string]any{
		"request": []any{payload(true), payload(false)},
	})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	batch := testutil.DecodeResponse[envelope[[]created]](t, rr).Response
	require.Len(t, batch, 2)
	assert.Equal(t, string(models.StatusPendingAppointment), batch[0].StatusCode)
	assert.Equal(t, string(models.StatusIncomplete), batch[1].StatusCode)
	complete, partial := batch[0].PreRegistrationID, batch[1].PreRegistrationID

	t.Run("requests without a bearer token are rejected", func(t *testing.T) {
		rr := f.do("", http.MethodGet, "/applications/"+complete, nil)
		testutil.AssertStatusAndError(t, rr, http.StatusUnauthorized, "unauthorized")
	})

	t.Run("tokens from another issuer are rejected", func(t *testing.T) {
		foreign, err := jwttoken.NewJWTService(signingKey, "someone-else").
			GenerateAccessToken("citizen-1", []string{"INDIVIDUAL"}, time.Hour)
		require.NoError(t, err)
		rr := f.do(foreign, http.MethodGet, "/applications/"+complete, nil)
		testutil.AssertStatusAndError(t, rr, http.StatusUnauthorized, "unauthorized")
	})

	t.Run("other citizens cannot see the application", func(t *testing.T) {
		rr := f.do(neighbour, http.MethodGet, "/applications/"+complete, nil)
		testutil.AssertStatusAndError(t, rr, http.StatusNotFound, "not_found")
	})

	t.Run("owner books and an officer consumes", func(t *testing.T) {
		rr := f.do(citizen, http.MethodPut, "/applications/status/"+complete+"?statusCode=booked", nil)
		require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
		change := testutil.DecodeResponse[envelope[struct {
			Previous string `json:"previousStatusCode"`
			Current  string `json:"statusCode"`
		}]](t, rr).Response
		assert.Equal(t, string(models.StatusPendingAppointment), change.Previous)
		assert.Equal(t, string(models.StatusBooked), change.Current)

		rr = f.do(citizen, http.MethodPut, "/applications/status/"+complete+"?statusCode=CONSUMED", nil)
		testutil.AssertStatusAndError(t, rr, http.StatusForbidden, "forbidden")

		rr = f.do(officer, http.MethodPut, "/applications/status/"+complete+"?statusCode=CONSUMED", nil)
		require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	})

	t.Run("consumed applications are frozen", func(t *testing.T) {
		rr := f.do(citizen, http.MethodPut, "/applications/"+complete, map[string]any{"request": payload(true)})
		testutil.AssertStatusAndError(t, rr, http.StatusConflict, "conflict")

		rr = f.do(citizen, http.MethodDelete, "/applications/"+complete, nil)
		testutil.AssertStatusAndError(t, rr, http.StatusConflict, "conflict")

		rr = f.do(citizen, http.MethodPut, "/applications/status/"+complete+"?statusCode=BOOKED", nil)
		testutil.AssertStatusAndError(t, rr, http.StatusConflict, "invalid_transition")
	})

	t.Run("incomplete applications cannot be booked", func(t *testing.T) {
		rr := f.do(citizen, http.MethodPut, "/applications/status/"+partial+"?statusCode=BOOKED", nil)
		testutil.AssertStatusAndError(t, rr, http.StatusConflict, "invalid_transition")
	})

	t.Run("completing the payload moves the application to pending", func(t *testing.T) {
		rr := f.do(citizen, http.MethodPut, "/applications/"+partial, map[string]any{
			"id":          "mosip.pre-registration.demographic.update",
			"version":     "1.0",
			"requesttime": time.Now().UTC().Format(time.RFC3339Nano),
			"request":     payload(true),
		})
		require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
		app := testutil.DecodeResponse[envelope[struct {
			StatusCode string `json:"statusCode"`
		}]](t, rr).Response
		assert.Equal(t, string(models.StatusPendingAppointment), app.StatusCode)
	})

	t.Run("documents attach to the owner's application", func(t *testing.T) {
		rr := f.do(citizen, http.MethodPost, "/applications/"+partial+"/documents", map[string]any{
			"request": map[string]any{"documentId": "doc-1", "docCatCode": "POA", "docTypCode": "RNC"},
		})
		require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
		app := testutil.DecodeResponse[envelope[struct {
			Documents []struct {
				DocumentID string `json:"documentId"`
			} `json:"documents"`
		}]](t, rr).Response
		require.Len(t, app.Documents, 1)
		assert.Equal(t, "doc-1", app.Documents[0].DocumentID)
	})

	t.Run("list and sync only report the caller's applications", func(t *testing.T) {
		rr := f.do(citizen, http.MethodGet, "/applications", nil)
		require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
		assert.Len(t, testutil.DecodeResponse[envelope[[]created]](t, rr).Response, 2)

		rr = f.do(neighbour, http.MethodGet, "/applications", nil)
		require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
		assert.Empty(t, testutil.DecodeResponse[envelope[[]created]](t, rr).Response)

		body := map[string]any{"request": map[string]any{
			"preRegistrationIds": []string{complete, partial, "not-an-id"},
		}}
		rr = f.do(citizen, http.MethodPost, "/applications/updatedTime", body)
		require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
		stamps := testutil.DecodeResponse[envelope[map[string]time.Time]](t, rr).Response
		assert.Len(t, stamps, 2)
		assert.Contains(t, stamps, complete)

		rr = f.do(neighbour, http.MethodPost, "/applications/updatedTime", body)
		require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
		assert.Empty(t, testutil.DecodeResponse[envelope[map[string]time.Time]](t, rr).Response)
	})

	t.Run("delete removes the application and purges its documents", func(t *testing.T) {
		rr := f.do(citizen, http.MethodDelete, "/applications/"+partial, nil)
		require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
		result := testutil.DecodeResponse[envelope[map[string]any]](t, rr).Response
		assert.Equal(t, "citizen-1", result["deletedBy"])
		assert.NotContains(t, result, "warning")

		purged := f.purger.Purged()
		require.Len(t, purged, 1)
		assert.Equal(t, partial, purged[0].String())

		rr = f.do(citizen, http.MethodGet, "/applications/status/"+partial, nil)
		testutil.AssertStatusAndError(t, rr, http.StatusNotFound, "not_found")
	})

	assert.Len(t, f.audit.ByAction(audit.EventApplicationCreated), 2)
	changes := f.audit.ByAction(audit.EventStatusChanged)
	require.Len(t, changes, 2)
	for _, event := range changes {
		assert.Equal(t, "citizen-1", event.OwnerID)
		assert.NotEmpty(t, event.GroupID)
		assert.NotEmpty(t, event.Trigger)
	}
	assert.Equal(t, "officer-1", changes[1].ActorID)
	assert.Len(t, f.audit.ByAction(audit.EventApplicationDeleted), 1)
}
