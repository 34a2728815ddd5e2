package telegram

import (
	"context"
	"errors"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSender struct {
	sent []tgbotapi.MessageConfig
	err  error
}

func (f *fakeSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	if f.err != nil {
		return tgbotapi.Message{}, f.err
	}
	f.sent = append(f.sent, c.(tgbotapi.MessageConfig))
	return tgbotapi.Message{}, nil
}

func TestPusherSend(t *testing.T) {
	s := &fakeSender{}
	require.NoError(t, NewPusher(s).Send(context.Background(), 77, "New delivery #5"))
	require.Len(t, s.sent, 1)
	assert.Equal(t, int64(77), s.sent[0].ChatID)
	assert.Equal(t, "New delivery #5", s.sent[0].Text)

	s.err = errors.New("chat not found")
	assert.Error(t, NewPusher(s).Send(context.Background(), 1, "x"))
}
