package bot

import (
	"errors"
	"fmt"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
)

func TestIsTelegramBadRequest(t *testing.T) {
	userNotFound := &tgbotapi.Error{Code: 400, Message: "Bad Request: user not found"}

	tests := []struct {
		name string
		err  error
		desc string
		want bool
	}{
		{
			name: "matching bad request",
			err:  userNotFound,
			desc: "user not found",
			want: true,
		},
		{
			name: "wrapped matching bad request",
			err:  fmt.Errorf("get chat member: %w", userNotFound),
			desc: "user not found",
			want: true,
		},
		{
			name: "same text but not a bad request",
			err:  &tgbotapi.Error{Code: 403, Message: "Forbidden: user not found"},
			desc: "user not found",
			want: false,
		},
		{
			name: "bad request with a different description",
			err:  &tgbotapi.Error{Code: 400, Message: "Bad Request: chat not found"},
			desc: "user not found",
			want: false,
		},
		{
			name: "unrelated error that happens to mention not found",
			err:  errors.New("replica not found"),
			desc: "user not found",
			want: false,
		},
		{
			name: "nil error",
			err:  nil,
			desc: "user not found",
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isTelegramBadRequest(tt.err, tt.desc))
		})
	}
}

func TestChannelHandleRoundTrip(t *testing.T) {
	handle := channelHandle(123456789, 42)
	chatID, messageID, err := parseChannelHandle(handle)
	assert.NoError(t, err)
	assert.Equal(t, int64(123456789), chatID)
	assert.Equal(t, 42, messageID)

	_, _, err = parseChannelHandle("not-a-handle")
	assert.Error(t, err)
}
