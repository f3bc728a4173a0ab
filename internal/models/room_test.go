package models

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseChatType(t *testing.T) {
	for _, raw := range []string{"general", "qa", "technical"} {
		ct, err := ParseChatType(raw)
		require.NoError(t, err)
		require.Equal(t, ChatType(raw), ct)
	}

	for _, raw := range []string{"", "General", "announcements", "q&a"} {
		_, err := ParseChatType(raw)
		require.ErrorIs(t, err, ErrInvalidChatType)
	}
}
