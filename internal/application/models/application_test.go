package models_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"prereg/internal/application/models"
	id "prereg/pkg/domain"
	dErrors "prereg/pkg/domain-errors"
)

var requiredFields = []string{"fullName", "dateOfBirth"}

func completePayload() models.DemographicPayload {
	return models.DemographicPayload{
		LangCode: "eng",
		Identity: map[string]any{
			"fullName":    []any{map[string]any{"language": "eng", "value": "Jane Doe"}},
			"dateOfBirth": "1990/01/31",
		},
	}
}

func newApp(t *testing.T, payload models.DemographicPayload, now time.Time) *models.Application {
	t.Helper()
	app, err := models.NewApplication(
		id.PreRegistrationID(uuid.New()),
		id.GroupID(uuid.New()),
		id.UserID("user-1"),
		payload,
		requiredFields,
		now,
	)
	require.NoError(t, err)
	return app
}

func TestNewApplication(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	t.Run("complete payload starts pending appointment", func(t *testing.T) {
		app := newApp(t, completePayload(), now)
		assert.Equal(t, models.StatusPendingAppointment, app.Status)
		assert.Equal(t, now, app.CreatedAt)
		assert.Equal(t, now, app.UpdatedAt)
	})

	t.Run("missing required field starts incomplete", func(t *testing.T) {
		p := completePayload()
		delete(p.Identity, "dateOfBirth")
		app := newApp(t, p, now)
		assert.Equal(t, models.StatusIncomplete, app.Status)
	})

	t.Run("rejects unassigned identifiers", func(t *testing.T) {
		_, err := models.NewApplication(id.PreRegistrationID{}, id.GroupID(uuid.New()), "user-1", completePayload(), nil, now)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvariantViolation))
	})

	t.Run("stored payload does not alias the input", func(t *testing.T) {
		p := completePayload()
		app := newApp(t, p, now)
		p.Identity["fullName"] = "changed"
		assert.NotEqual(t, "changed", app.Payload.Identity["fullName"])
	})
}

func TestUpdatedAtStrictlyIncreases(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	app := newApp(t, completePayload(), now)

	t.Run("same clock reading still advances", func(t *testing.T) {
		before := app.UpdatedAt
		app.ApplyStatus(models.StatusBooked, now)
		assert.True(t, app.UpdatedAt.After(before))
	})

	t.Run("clock stepping backwards still advances", func(t *testing.T) {
		before := app.UpdatedAt
		app.ApplyStatus(models.StatusPendingAppointment, now.Add(-time.Hour))
		assert.True(t, app.UpdatedAt.After(before))
	})

	t.Run("later clock reading is used as is", func(t *testing.T) {
		later := now.Add(time.Minute)
		app.ApplyPayload(completePayload(), app.Status, later)
		assert.Equal(t, later, app.UpdatedAt)
	})
}

func TestDeleteAndModifyGuards(t *testing.T) {
	now := time.Now()
	cases := []struct {
		status    models.Status
		deletable bool
		mutable   bool
	}{
		{models.StatusPendingAppointment, true, true},
		{models.StatusIncomplete, true, true},
		{models.StatusExpired, true, true},
		{models.StatusBooked, false, true},
		{models.StatusConsumed, false, false},
	}
	for _, tc := range cases {
		t.Run(tc.status.String(), func(t *testing.T) {
			app := newApp(t, completePayload(), now)
			app.Status = tc.status

			if tc.deletable {
				assert.NoError(t, app.CanDelete())
			} else {
				assert.True(t, dErrors.HasCode(app.CanDelete(), dErrors.CodeConflict))
			}
			if tc.mutable {
				assert.NoError(t, app.CanModify())
			} else {
				assert.True(t, dErrors.HasCode(app.CanModify(), dErrors.CodeConflict))
			}
		})
	}
}

func TestApplyDocument(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	app := newApp(t, completePayload(), now)

	app.ApplyDocument(models.DocumentRef{DocumentID: "doc-1", Category: models.DocumentCategoryAddress}, now.Add(time.Second))
	app.ApplyDocument(models.DocumentRef{DocumentID: "doc-1", Category: models.DocumentCategoryIdentity}, now.Add(2*time.Second))

	require.Len(t, app.Documents, 1)
	assert.Equal(t, models.DocumentCategoryIdentity, app.Documents[0].Category)
	assert.Equal(t, app.UpdatedAt, app.Documents[0].AttachedAt)
}

func TestCloneIsDeep(t *testing.T) {
	app := newApp(t, completePayload(), time.Now())
	app.ApplyDocument(models.DocumentRef{DocumentID: "doc-1", Category: models.DocumentCategoryAddress}, time.Now())

	clone := app.Clone()
	clone.Payload.Identity["dateOfBirth"] = "2000/01/01"
	clone.Documents[0].DocumentID = "other"
	nested := clone.Payload.Identity["fullName"].([]any)[0].(map[string]any)
	nested["value"] = "Someone Else"

	assert.Equal(t, "1990/01/31", app.Payload.Identity["dateOfBirth"])
	assert.Equal(t, "doc-1", app.Documents[0].DocumentID)
	original := app.Payload.Identity["fullName"].([]any)[0].(map[string]any)
	assert.Equal(t, "Jane Doe", original["value"])
}
