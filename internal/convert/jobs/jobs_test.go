package jobs

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/readmd/gateway/internal/convert/guard"
	"github.com/readmd/gateway/internal/errkind"
)

func TestValidateCallbackURL_RejectsNonHTTPS(t *testing.T) {
	err := ValidateCallbackURL(guard.New(), "http://example.com/webhook")
	assert.Error(t, err)
}

func TestValidateCallbackURL_RejectsPrivateHost(t *testing.T) {
	err := ValidateCallbackURL(guard.New(), "https://127.0.0.1/webhook")
	assert.Error(t, err)
	assert.Equal(t, errkind.BlockedUrl, errkind.Of(err))
}

func TestJobKey(t *testing.T) {
	assert.Equal(t, "job:job_123", jobKey("job_123"))
}
