// Package bot is the Telegram front end: one chat drives the whole flow from
// authorization through draft generation, correction rounds and submission.
// The chat id doubles as the subject everywhere.
package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/spigell/hh-coverbot/internal/aggregate"
	"github.com/spigell/hh-coverbot/internal/entity"
	"github.com/spigell/hh-coverbot/internal/errs"
	"github.com/spigell/hh-coverbot/internal/generation"
	"github.com/spigell/hh-coverbot/internal/headhunter"
)

const (
	actionSubmit = "submit"
	actionRedo   = "redo"
)

// Sender is the slice of the Telegram API the bot uses to reply.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// Authorizer builds the link a user opens to grant access.
type Authorizer interface {
	AuthorizationURL(state string) string
}

// StateSigner protects the OAuth state parameter.
type StateSigner interface {
	Sign(subject string) (string, error)
}

// Generator runs the cover-letter workflow.
type Generator interface {
	Generate(ctx context.Context, gctx *entity.GenerationContext) (*entity.ResponseToVacancy, error)
	Regenerate(ctx context.Context, req generation.RegenerateRequest) (*entity.ResponseToVacancy, error)
}

// PlatformClient is everything the bot does against the platform API on
// behalf of one subject.
type PlatformClient interface {
	aggregate.API
	GetResumes(ctx context.Context) ([]*headhunter.ResumePayload, error)
	ApplyToVacancy(ctx context.Context, resumeID, vacancyID, message string) error
}

// ClientFactory builds a platform client for one subject.
type ClientFactory func(subject string) PlatformClient

type Bot struct {
	api         Sender
	auth        Authorizer
	signer      StateSigner
	workflow    Generator
	checkpoints generation.Checkpoints
	clients     ClientFactory
	rules       map[string]string
	logger      *zap.Logger

	updates tgbotapi.UpdatesChannel

	mu              sync.Mutex
	awaitingComment map[int64]bool
}

// New connects to Telegram and wires the bot.
func New(botToken string, auth Authorizer, signer StateSigner, workflow Generator,
	checkpoints generation.Checkpoints, clients ClientFactory, rules map[string]string, logger *zap.Logger,
) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(botToken)
	if err != nil {
		return nil, fmt.Errorf("connecting to telegram: %w", err)
	}

	cfg := tgbotapi.NewUpdate(0)
	cfg.Timeout = 30

	b := newBot(api, auth, signer, workflow, checkpoints, clients, rules, logger)
	b.updates = api.GetUpdatesChan(cfg)

	return b, nil
}

func newBot(api Sender, auth Authorizer, signer StateSigner, workflow Generator,
	checkpoints generation.Checkpoints, clients ClientFactory, rules map[string]string, logger *zap.Logger,
) *Bot {
	return &Bot{
		api:             api,
		auth:            auth,
		signer:          signer,
		workflow:        workflow,
		checkpoints:     checkpoints,
		clients:         clients,
		rules:           rules,
		logger:          logger,
		awaitingComment: make(map[int64]bool),
	}
}

// Run consumes updates until ctx is canceled.
func (b *Bot) Run(ctx context.Context) error {
	b.logger.Info("telegram bot started")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case update, ok := <-b.updates:
			if !ok {
				return nil
			}
			b.handleUpdate(ctx, update)
		}
	}
}

func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	switch {
	case update.CallbackQuery != nil:
		b.handleCallback(ctx, update.CallbackQuery)
	case update.Message != nil:
		b.handleMessage(ctx, update.Message)
	}
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID

	if msg.IsCommand() {
		b.handleCommand(chatID, msg.Command())
		return
	}

	if b.consumeAwaiting(chatID) {
		b.regenerate(ctx, chatID, msg.Text)
		return
	}

	b.generate(ctx, chatID, msg.Text)
}

func (b *Bot) handleCommand(chatID int64, command string) {
	switch command {
	case "start", "login":
		b.sendAuthLink(chatID)
	default:
		b.reply(chatID, "Send me a vacancy link and I will draft a cover letter for it.")
	}
}

func (b *Bot) sendAuthLink(chatID int64) {
	state, err := b.signer.Sign(subjectOf(chatID))
	if err != nil {
		b.replyError(chatID, err)
		return
	}

	b.reply(chatID, "Open this link to authorize: "+b.auth.AuthorizationURL(state))
}

func (b *Bot) generate(ctx context.Context, chatID int64, text string) {
	subject := subjectOf(chatID)

	vacancyID, err := headhunter.ExtractVacancyID(text)
	if err != nil {
		b.reply(chatID, "That does not look like a vacancy link. Send one like https://hh.ru/vacancy/123456.")
		return
	}

	client := b.clients(subject)

	resumes, err := client.GetResumes(ctx)
	if err != nil {
		b.replyError(chatID, err)
		return
	}
	if len(resumes) == 0 {
		b.reply(chatID, "You have no resumes on the platform. Create one first.")
		return
	}

	gctx, err := aggregate.New(client, b.rules, b.logger).Collect(ctx, aggregate.CollectInput{
		UserID:    subject,
		VacancyID: vacancyID,
		ResumeID:  resumes[0].ID,
	})
	if err != nil {
		b.replyError(chatID, err)
		return
	}

	response, err := b.workflow.Generate(ctx, gctx)
	if err != nil {
		b.replyError(chatID, err)
		return
	}

	b.sendDraft(chatID, response.Message)
}

func (b *Bot) regenerate(ctx context.Context, chatID int64, comments string) {
	response, err := b.workflow.Regenerate(ctx, generation.RegenerateRequest{
		UserID:   subjectOf(chatID),
		Comments: comments,
	})
	if err != nil {
		b.replyError(chatID, err)
		return
	}

	b.sendDraft(chatID, response.Message)
}

func (b *Bot) handleCallback(ctx context.Context, query *tgbotapi.CallbackQuery) {
	// Ack first so the button stops spinning even if the action fails.
	if _, err := b.api.Request(tgbotapi.NewCallback(query.ID, "")); err != nil {
		b.logger.Warn("callback ack failed", zap.Error(err))
	}

	// Message is nil when the keyboard's message is too old or the query came
	// from inline mode; the sender's id still addresses the private chat.
	var chatID int64
	switch {
	case query.Message != nil:
		chatID = query.Message.Chat.ID
	case query.From != nil:
		chatID = query.From.ID
	default:
		b.logger.Warn("callback query without message or sender", zap.String("data", query.Data))
		return
	}

	switch query.Data {
	case actionSubmit:
		b.submit(ctx, chatID)
	case actionRedo:
		b.setAwaiting(chatID)
		b.reply(chatID, "What should I change? Describe it in one message.")
	}
}

func (b *Bot) submit(ctx context.Context, chatID int64) {
	subject := subjectOf(chatID)

	state, err := b.checkpoints.Latest(ctx, subject)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			b.reply(chatID, "There is no draft to submit. Send a vacancy link first.")
			return
		}
		b.replyError(chatID, err)
		return
	}

	client := b.clients(subject)
	err = client.ApplyToVacancy(ctx, state.Context.Resume.HHID, state.Context.Vacancy.HHID, state.Response)
	if err != nil {
		b.replyError(chatID, err)
		return
	}

	b.reply(chatID, "Done, your response is submitted: "+state.Context.Vacancy.URL)
}

func (b *Bot) sendDraft(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Submit", actionSubmit),
			tgbotapi.NewInlineKeyboardButtonData("Redo", actionRedo),
		),
	)

	if _, err := b.api.Send(msg); err != nil {
		b.logger.Error("sending draft", zap.Int64("chat_id", chatID), zap.Error(err))
	}
}

func (b *Bot) reply(chatID int64, text string) {
	if _, err := b.api.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		b.logger.Error("sending reply", zap.Int64("chat_id", chatID), zap.Error(err))
	}
}

func (b *Bot) replyError(chatID int64, err error) {
	switch {
	case errors.Is(err, errs.ErrAuthRequired):
		b.reply(chatID, "I need access to your account first.")
		b.sendAuthLink(chatID)
	case errors.Is(err, errs.ErrMissingState):
		b.reply(chatID, "There is no draft to rework. Send a vacancy link first.")
	default:
		b.logger.Error("bot action failed", zap.Int64("chat_id", chatID), zap.Error(err))
		b.reply(chatID, "Something went wrong, try again later.")
	}
}

func (b *Bot) setAwaiting(chatID int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.awaitingComment[chatID] = true
}

func (b *Bot) consumeAwaiting(chatID int64) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	waiting := b.awaitingComment[chatID]
	delete(b.awaitingComment, chatID)

	return waiting
}

func subjectOf(chatID int64) string {
	return strconv.FormatInt(chatID, 10)
}
