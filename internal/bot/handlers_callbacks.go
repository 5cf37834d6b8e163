package bot

import (
	"context"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/yourname/gatekeeper-bot/internal/verify"
)

func (h *Handler) HandleCallback(ctx context.Context, q *tgbotapi.CallbackQuery) {
	data := q.Data

	if data == "verifyBtn" {
		h.handleVerifyButton(ctx, q)
		return
	}

	parts := strings.SplitN(data, ":", 2)
	if len(parts) < 2 {
		h.ackCallback(q.ID, "")
		return
	}

	switch parts[0] {
	case "verify":
		h.handleVerifyAnswer(ctx, q, parts[1])
	default:
		h.ackCallback(q.ID, "")
	}
}

func (h *Handler) handleVerifyButton(ctx context.Context, q *tgbotapi.CallbackQuery) {
	m := memberFromUser(*q.From)

	channelID, err := h.engine.Offer(ctx, m)
	if err != nil {
		h.log.Error("offer challenge", zap.String("member", m.ID), zap.Error(err))
		h.ackCallback(q.ID, genericErrorReply)
		return
	}
	if channelID == "" {
		// already verified, suspect, or mid-challenge: stay silent
		h.ackCallback(q.ID, "")
		return
	}
	h.ackCallback(q.ID, "head over to your chat with me to finish the verification process")
}

func (h *Handler) handleVerifyAnswer(ctx context.Context, q *tgbotapi.CallbackQuery, label string) {
	m := memberFromUser(*q.From)

	switch h.engine.Submit(ctx, m.ID, label) {
	case verify.ResultVerified:
		h.ackCallback(q.ID, "")
		if q.Message != nil {
			h.reply(q.Message.Chat.ID, "Verification passed! Welcome aboard!", false)
		}
	case verify.ResultRejected:
		h.ackCallback(q.ID, "")
		if q.Message != nil {
			h.reply(q.Message.Chat.ID, "Incorrect answer! closing the challenge", false)
		}
	case verify.ResultFailed:
		// answer was right but the grant did not go through: a platform
		// error, not a wrong answer
		h.ackCallback(q.ID, genericErrorReply)
	case verify.ResultNone:
		// no active challenge (replay or expired): nothing to do
		h.ackCallback(q.ID, "")
	}
}

func (h *Handler) ackCallback(callbackID, text string) {
	cb := tgbotapi.NewCallback(callbackID, text)
	if text != "" {
		cb = tgbotapi.NewCallbackWithAlert(callbackID, text)
	}
	if _, err := h.api.Request(cb); err != nil {
		h.log.Warn("callback ack failed", zap.Error(err))
	}
}
