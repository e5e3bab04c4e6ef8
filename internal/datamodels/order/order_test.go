package order

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanTransition(t *testing.T) {
	allowed := map[[2]Status]bool{
		{StatusPending, StatusReady}:  true,
		{StatusPending, StatusCancel}: true,
		{StatusReady, StatusShipped}:  true,
		{StatusReady, StatusCancel}:   true,
		{StatusShipped, StatusConfirm}: true,
		{StatusShipped, StatusCancel}:  true,
	}

	all := []Status{StatusPending, StatusReady, StatusShipped, StatusConfirm, StatusCancel}
	for _, from := range all {
		for _, to := range all {
			want := allowed[[2]Status{from, to}]
			assert.Equal(t, want, CanTransition(from, to), "%s -> %s", from, to)
		}
	}
}

func TestTerminal(t *testing.T) {
	assert.True(t, StatusConfirm.Terminal())
	assert.True(t, StatusCancel.Terminal())
	assert.False(t, StatusPending.Terminal())
	assert.False(t, StatusReady.Terminal())
	assert.False(t, StatusShipped.Terminal())
}

func TestValid(t *testing.T) {
	assert.True(t, StatusPending.Valid())
	assert.False(t, Status("refunded").Valid())
	assert.False(t, Status("").Valid())
}
