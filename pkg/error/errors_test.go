package error

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatusOf(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{AuthenticationError("bad signature"), http.StatusForbidden},
		{NotFoundError("tenant"), http.StatusNotFound},
		{ConfigurationError("app secret missing"), http.StatusInternalServerError},
		{fmt.Errorf("wrapped: %w", &MediaProcessingError{MediaType: "audio"}), http.StatusUnprocessableEntity},
		{errors.New("plain"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, StatusOf(tc.err), tc.err.Error())
	}
}

func TestWrappedErrorsUnwrap(t *testing.T) {
	cause := errors.New("connection reset by peer")
	err := &TransientInfraError{Op: "history.fetch", Err: cause}

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "history.fetch: connection reset by peer", err.Error())

	var me *MediaProcessingError
	assert.False(t, errors.As(err, &me))
}
