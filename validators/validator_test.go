package validators_test

import (
	"net/http"
	"testing"

	"github.com/anonto42/campus-hub/backend/internal/models"
	"github.com/anonto42/campus-hub/backend/validators"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateReportsEveryField(t *testing.T) {
	t.Parallel()
	v := validators.NewValidator()

	err := v.Validate(&models.DispatchRequest{Type: "promo", ActionURL: "not a url"})
	require.Error(t, err)

	var he *echo.HTTPError
	require.ErrorAs(t, err, &he)
	assert.Equal(t, http.StatusBadRequest, he.Code)
	msg, _ := he.Message.(string)
	assert.Contains(t, msg, "RecipientID is required")
	assert.Contains(t, msg, "Type must be one of")
	assert.Contains(t, msg, "Title is required")
	assert.Contains(t, msg, "ActionURL must be a valid URL")
}

func TestValidateAcceptsValidRequests(t *testing.T) {
	t.Parallel()
	v := validators.NewValidator()

	assert.NoError(t, v.Validate(&models.VoteRequest{Direction: models.VoteUp}))
	assert.NoError(t, v.Validate(&models.DispatchRequest{
		RecipientID: "u1",
		Type:        models.NotificationJob,
		Title:       "Job",
		ActionURL:   "https://campus.test/jobs/1",
	}))
	assert.Error(t, v.Validate(&models.VoteRequest{Direction: "sideways"}))
}
