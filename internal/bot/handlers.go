package bot

import (
	"context"
	"strconv"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/yourname/gatekeeper-bot/internal/config"
	"github.com/yourname/gatekeeper-bot/internal/domain"
	"github.com/yourname/gatekeeper-bot/internal/referral"
	"github.com/yourname/gatekeeper-bot/internal/verify"
)

const genericErrorReply = "There was an error while executing this command!"

type Handler struct {
	api   *tgbotapi.BotAPI
	cfg   *config.Config
	guild domain.GuildConfig
	log   *zap.Logger

	ledger *referral.Ledger
	engine *verify.Engine

	commandsChatID int64
	gatedChatID    int64
}

func NewHandler(api *tgbotapi.BotAPI, cfg *config.Config, guild domain.GuildConfig,
	ledger *referral.Ledger, engine *verify.Engine, log *zap.Logger) *Handler {

	commandsChatID, err := strconv.ParseInt(guild.CommandsChannelID, 10, 64)
	if err != nil {
		log.Warn("bad commandsChannelID in configuration",
			zap.String("value", guild.CommandsChannelID))
	}
	return &Handler{
		api:            api,
		cfg:            cfg,
		guild:          guild,
		log:            log,
		ledger:         ledger,
		engine:         engine,
		commandsChatID: commandsChatID,
		gatedChatID:    GatedChatID(guild, log),
	}
}

// HandleUpdate routes one platform event. Each update is handled on its own
// goroutine; all shared state lives in the store.
func (h *Handler) HandleUpdate(ctx context.Context, upd tgbotapi.Update) {
	if upd.CallbackQuery != nil {
		h.HandleCallback(ctx, upd.CallbackQuery)
		return
	}
	if upd.ChatJoinRequest != nil {
		h.handleJoinRequest(ctx, upd.ChatJoinRequest)
		return
	}
	if upd.Message == nil {
		return
	}

	msg := upd.Message
	if msg.From == nil || msg.From.IsBot {
		return
	}
	// commands are only taken in private chat or the designated channel
	if !msg.Chat.IsPrivate() && msg.Chat.ID != h.commandsChatID {
		return
	}

	cmd := ParseCommand(msg.Text)
	if cmd == nil {
		return
	}
	m := memberFromUser(*msg.From)

	switch c := cmd.(type) {
	case StartRequest:
		h.handleStart(msg.Chat.ID)
	case CodeRequest:
		if c.SuppliedCode == "" {
			h.handleGetCode(ctx, msg.Chat.ID, m)
		} else {
			h.handleSubmitCode(ctx, msg.Chat.ID, m, c.SuppliedCode)
		}
	case InvitesRequest:
		h.handleInvites(ctx, msg.Chat.ID, m)
	case PostVerifyRequest:
		h.handlePostVerify(ctx, msg.Chat.ID, m)
	}
}

// handleJoinRequest is the "member joined" entry path: log the candidate,
// warm their record, and offer the verify button in private chat. Suspect
// accounts still get the button; the engine silently refuses them later.
func (h *Handler) handleJoinRequest(ctx context.Context, req *tgbotapi.ChatJoinRequest) {
	m := memberFromUser(req.From)
	h.log.Info("join request",
		zap.String("member", m.ID),
		zap.String("username", m.Username))

	if _, err := h.ledger.Code(ctx, m); err != nil {
		h.log.Error("warm user record", zap.String("member", m.ID), zap.Error(err))
	}

	userChatID, err := parseMemberID(m.ID)
	if err != nil {
		return
	}
	msg := tgbotapi.NewMessage(userChatID, welcomeText(h.guild.ProjectName))
	msg.ReplyMarkup = verifyButtonMarkup()
	if _, err := h.api.Send(msg); err != nil {
		h.log.Warn("join request DM failed", zap.String("member", m.ID), zap.Error(err))
	}
}

func (h *Handler) handleStart(chatID int64) {
	msg := tgbotapi.NewMessage(chatID, welcomeText(h.guild.ProjectName))
	msg.ReplyMarkup = verifyButtonMarkup()
	h.send(msg)
}

func (h *Handler) reply(chatID int64, text string, markdown bool) {
	msg := tgbotapi.NewMessage(chatID, text)
	if markdown {
		msg.ParseMode = "Markdown"
	}
	h.send(msg)
}

func (h *Handler) send(c tgbotapi.Chattable) {
	if _, err := h.api.Send(c); err != nil {
		h.log.Warn("send failed", zap.Error(err))
	}
}

func welcomeText(projectName string) string {
	return "Welcome to the " + projectName + "'s Server!\n\nClick on the VERIFY button to get started on the verification process!"
}

func verifyButtonMarkup() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Verify", "verifyBtn"),
		),
	)
}

func memberFromUser(u tgbotapi.User) domain.Member {
	return domain.Member{
		ID:        strconv.FormatInt(u.ID, 10),
		Username:  u.UserName,
		CreatedAt: estimateCreatedAt(u.ID),
	}
}
