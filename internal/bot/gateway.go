package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/yourname/gatekeeper-bot/internal/domain"
	"github.com/yourname/gatekeeper-bot/internal/verify"
)

// Gateway adapts Telegram to the challenge engine's contract. The "scoped
// channel" is the dedicated challenge message in the candidate's private
// chat (its chat:message pair is the channel handle), the verified role is
// membership of the gated group, granted by approving the pending join
// request and revoked by declining it.
type Gateway struct {
	api         *tgbotapi.BotAPI
	gatedChatID int64
	guild       domain.GuildConfig
	log         *zap.Logger
}

func NewGateway(api *tgbotapi.BotAPI, gatedChatID int64, guild domain.GuildConfig, log *zap.Logger) *Gateway {
	return &Gateway{api: api, gatedChatID: gatedChatID, guild: guild, log: log}
}

// GatedChatID resolves the configured verifiedRole into the gated group chat
// id. A malformed value is logged and yields zero, which fails closed later.
func GatedChatID(guild domain.GuildConfig, log *zap.Logger) int64 {
	id, err := strconv.ParseInt(guild.VerifiedRole, 10, 64)
	if err != nil {
		log.Warn("bad verifiedRole in configuration",
			zap.String("value", guild.VerifiedRole))
	}
	return id
}

func (g *Gateway) IsVerified(ctx context.Context, memberID string) (bool, error) {
	userID, err := parseMemberID(memberID)
	if err != nil {
		return false, err
	}
	member, err := g.api.GetChatMember(tgbotapi.GetChatMemberConfig{
		ChatConfigWithUser: tgbotapi.ChatConfigWithUser{
			ChatID: g.gatedChatID,
			UserID: userID,
		},
	})
	if err != nil {
		// Telegram answers 400 "user not found" for strangers; that just
		// means unverified.
		if isTelegramBadRequest(err, "user not found") {
			return false, nil
		}
		return false, err
	}
	switch member.Status {
	case "creator", "administrator", "member":
		return true, nil
	}
	return false, nil
}

func (g *Gateway) CreateChannel(ctx context.Context, m domain.Member) (string, error) {
	chatID, err := parseMemberID(m.ID)
	if err != nil {
		return "", err
	}
	msg := tgbotapi.NewMessage(chatID, fmt.Sprintf(
		"🔐 %s verification\n\nNOTE: this challenge closes in 10 minutes if inactive.\nYou have 1 attempt to get the correct answer.",
		g.guild.ProjectName))
	sent, err := g.api.Send(msg)
	if err != nil {
		return "", fmt.Errorf("open challenge channel: %w", err)
	}
	return channelHandle(chatID, sent.MessageID), nil
}

func (g *Gateway) SendChallenge(ctx context.Context, channelID string, c verify.Challenge) error {
	chatID, messageID, err := parseChannelHandle(channelID)
	if err != nil {
		return err
	}

	text := fmt.Sprintf(
		"🔐 %s verification\n\nNOTE: this challenge closes in 10 minutes if inactive.\nYou have 1 attempt to get the correct answer.\n\nChoose the correct fruit emoji to get verified!\n\nThe fruit of question: *%s*!",
		g.guild.ProjectName, c.CorrectOption().Value)

	var row []tgbotapi.InlineKeyboardButton
	var rows [][]tgbotapi.InlineKeyboardButton
	for _, opt := range c.Options {
		row = append(row, tgbotapi.NewInlineKeyboardButtonData(opt.Label, "verify:"+opt.Label))
		if len(row) == 3 {
			rows = append(rows, row)
			row = nil
		}
	}
	if len(row) > 0 {
		rows = append(rows, row)
	}

	edit := tgbotapi.NewEditMessageTextAndMarkup(chatID, messageID, text,
		tgbotapi.NewInlineKeyboardMarkup(rows...))
	edit.ParseMode = "Markdown"
	if _, err := g.api.Send(edit); err != nil {
		return fmt.Errorf("send challenge: %w", err)
	}
	return nil
}

func (g *Gateway) DeleteChannel(ctx context.Context, channelID string) error {
	chatID, messageID, err := parseChannelHandle(channelID)
	if err != nil {
		return err
	}
	if _, err := g.api.Request(tgbotapi.NewDeleteMessage(chatID, messageID)); err != nil {
		// idempotent: an already-deleted channel is not an error
		if isTelegramBadRequest(err, "message to delete not found") {
			return nil
		}
		return fmt.Errorf("delete challenge channel: %w", err)
	}
	return nil
}

func (g *Gateway) GrantRole(ctx context.Context, memberID string) error {
	userID, err := parseMemberID(memberID)
	if err != nil {
		return err
	}
	_, err = g.api.Request(tgbotapi.ApproveChatJoinRequestConfig{
		ChatConfig: tgbotapi.ChatConfig{ChatID: g.gatedChatID},
		UserID:     userID,
	})
	if err != nil {
		return fmt.Errorf("approve join request: %w", err)
	}
	return nil
}

func (g *Gateway) Evict(ctx context.Context, memberID string) error {
	userID, err := parseMemberID(memberID)
	if err != nil {
		return err
	}
	_, err = g.api.Request(tgbotapi.DeclineChatJoinRequest{
		ChatConfig: tgbotapi.ChatConfig{ChatID: g.gatedChatID},
		UserID:     userID,
	})
	if err != nil {
		return fmt.Errorf("decline join request: %w", err)
	}
	return nil
}

// isTelegramBadRequest reports whether err is a Telegram 400 whose description
// contains desc. Matching the API error type keeps unrelated errors from being
// mistaken for the known benign responses.
func isTelegramBadRequest(err error, desc string) bool {
	var tgErr *tgbotapi.Error
	if !errors.As(err, &tgErr) {
		return false
	}
	return tgErr.Code == 400 && strings.Contains(tgErr.Message, desc)
}

func parseMemberID(id string) (int64, error) {
	userID, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("bad member id %q: %w", id, err)
	}
	return userID, nil
}

func channelHandle(chatID int64, messageID int) string {
	return fmt.Sprintf("%d:%d", chatID, messageID)
}

func parseChannelHandle(handle string) (int64, int, error) {
	chatStr, msgStr, ok := strings.Cut(handle, ":")
	if !ok {
		return 0, 0, fmt.Errorf("bad channel handle %q", handle)
	}
	chatID, err := strconv.ParseInt(chatStr, 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("bad channel handle %q: %w", handle, err)
	}
	messageID, err := strconv.Atoi(msgStr)
	if err != nil {
		return 0, 0, fmt.Errorf("bad channel handle %q: %w", handle, err)
	}
	return chatID, messageID, nil
}
