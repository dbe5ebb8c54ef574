package acme

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseStatus(t *testing.T) {
	assert.Equal(t, StatusPending, ParseStatus("pending"))
	assert.Equal(t, StatusValid, ParseStatus("valid"))

	// Matching is case insensitive.
	assert.Equal(t, StatusInvalid, ParseStatus("INVALID"))
	assert.Equal(t, StatusReady, ParseStatus("Ready"))

	// Servers may extend the status set.
	assert.Equal(t, StatusUnknown, ParseStatus("foo"))
	assert.Equal(t, StatusUnknown, ParseStatus(""))
}

func TestStatusTerminal(t *testing.T) {
	for _, s := range []Status{
		StatusValid, StatusInvalid, StatusDeactivated,
		StatusExpired, StatusRevoked, StatusCanceled,
	} {
		assert.True(t, s.Terminal(), "status %q", s)
	}
	for _, s := range []Status{
		StatusPending, StatusReady, StatusProcessing, StatusUnknown,
	} {
		assert.False(t, s.Terminal(), "status %q", s)
	}
}
