package channel_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dmitrymomot/echobridge/core/channel"
)

func TestKindOf(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		want channel.Kind
	}{
		{"news", channel.Public},
		{"orders.1", channel.Public},
		{"private-orders.1", channel.Private},
		{"presence-chat", channel.Presence},
		{"presence-", channel.Presence},
		{"private-", channel.Private},
		{"privateer", channel.Public},
		{"", channel.Public},
		{"PRESENCE-chat", channel.Public},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.want, channel.KindOf(tt.name))
			// Classification is pure: repeating it never changes the result.
			assert.Equal(t, channel.KindOf(tt.name), channel.KindOf(tt.name))
		})
	}
}

func TestKind_RequiresAuth(t *testing.T) {
	t.Parallel()

	assert.False(t, channel.Public.RequiresAuth())
	assert.True(t, channel.Private.RequiresAuth())
	assert.True(t, channel.Presence.RequiresAuth())
}

func TestIsClientEvent(t *testing.T) {
	t.Parallel()

	assert.True(t, channel.IsClientEvent("client-typing"))
	assert.False(t, channel.IsClientEvent("typing"))
	assert.False(t, channel.IsClientEvent(""))
}
