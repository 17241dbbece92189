package handlers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"selective-purge/purge"
)

func TestOwnerRefusal(t *testing.T) {
	service := purge.NewService(nil, nil)
	h := &Handler{service: service}

	assert.Equal(t, "There is no purge waiting for confirmation.", h.ownerRefusal(1, 5))

	require.NoError(t, service.RequestConfirmation(1, 5, purge.FilterSpec{}, purge.Bounds{Lower: 99}))
	assert.Empty(t, h.ownerRefusal(1, 5))
	assert.Equal(t, "You cannot interact with purge confirmations of other users.", h.ownerRefusal(1, 6))
	assert.Equal(t, "There is no purge waiting for confirmation.", h.ownerRefusal(2, 5))
}

func TestOwnerRefusal_Running(t *testing.T) {
	service := purge.NewService(nil, nil)
	h := &Handler{service: service}
	require.NoError(t, service.RequestConfirmation(1, 5, purge.FilterSpec{}, purge.Bounds{}))

	var refusal string
	ok, err := service.Sessions().Confirm(1, func(purge.Pending) error {
		refusal = h.ownerRefusal(1, 5)
		return nil
	})
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "A purge is already running in this channel.", refusal)
	assert.Equal(t, "There is no purge waiting for confirmation.", h.ownerRefusal(1, 5))
}
