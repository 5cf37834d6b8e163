package bot

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/yourname/gatekeeper-bot/internal/domain"
	"github.com/yourname/gatekeeper-bot/internal/referral"
)

func (h *Handler) handleGetCode(ctx context.Context, chatID int64, m domain.Member) {
	code, err := h.ledger.Code(ctx, m)
	if err != nil {
		h.log.Error("get code", zap.String("member", m.ID), zap.Error(err))
		h.reply(chatID, genericErrorReply, false)
		return
	}
	h.reply(chatID, fmt.Sprintf(
		"Invite Code\n\n@%s's Invite Code: `%s`\nShare it with friends — every redemption earns you an invite point!",
		m.Username, code), true)
}

func (h *Handler) handleSubmitCode(ctx context.Context, chatID int64, m domain.Member, code string) {
	err := h.ledger.Redeem(ctx, m, code)
	switch {
	case err == nil:
		h.reply(chatID, "code submitted successfully!", false)
	case referral.IsRejection(err):
		// policy rejections stay silent so outcomes can't be probed
		h.log.Info("redemption rejected",
			zap.String("member", m.ID), zap.Error(err))
	default:
		h.log.Error("redeem code", zap.String("member", m.ID), zap.Error(err))
		h.reply(chatID, genericErrorReply, false)
	}
}

func (h *Handler) handleInvites(ctx context.Context, chatID int64, m domain.Member) {
	points, err := h.ledger.Points(ctx, m)
	if err != nil {
		h.log.Error("get points", zap.String("member", m.ID), zap.Error(err))
		h.reply(chatID, genericErrorReply, false)
		return
	}
	h.reply(chatID, fmt.Sprintf("You currently have %d invites", points), false)
}

// handlePostVerify posts the welcome prompt with the Verify button to the
// verify channel. Gated-group admins only; anyone else gets silence.
func (h *Handler) handlePostVerify(ctx context.Context, chatID int64, m domain.Member) {
	admin, err := h.isAdmin(m)
	if err != nil {
		h.log.Warn("admin check failed", zap.String("member", m.ID), zap.Error(err))
		return
	}
	if !admin {
		return
	}

	msg := tgbotapi.NewMessage(h.cfg.VerifyChannelID, welcomeText(h.guild.ProjectName))
	msg.ReplyMarkup = verifyButtonMarkup()
	if _, err := h.api.Send(msg); err != nil {
		h.log.Error("post verify prompt", zap.Error(err))
		h.reply(chatID, genericErrorReply, false)
		return
	}
	h.reply(chatID, "verify prompt posted", false)
}

func (h *Handler) isAdmin(m domain.Member) (bool, error) {
	userID, err := parseMemberID(m.ID)
	if err != nil {
		return false, err
	}
	member, err := h.api.GetChatMember(tgbotapi.GetChatMemberConfig{
		ChatConfigWithUser: tgbotapi.ChatConfigWithUser{
			ChatID: h.gatedChatID,
			UserID: userID,
		},
	})
	if err != nil {
		return false, err
	}
	return member.Status == "creator" || member.Status == "administrator", nil
}
