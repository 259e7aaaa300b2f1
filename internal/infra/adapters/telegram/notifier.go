package telegram

import (
	"context"
	"errors"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"editorial-pipeline/internal/domain/model"
	"editorial-pipeline/internal/domain/ports/adapter"
)

var _ adapter.JobNotifier = (*Notifier)(nil)

// sender is the part of *tgbotapi.BotAPI the notifier uses.
type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Notifier posts terminal job events to one editor chat.
type Notifier struct {
	bot    sender
	chatID int64
}

func NewNotifier(token string, chatID int64) (*Notifier, error) {
	if token == "" || chatID == 0 {
		return nil, errors.New("telegram token and chat id are required")
	}
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}
	return &Notifier{bot: bot, chatID: chatID}, nil
}

func newNotifierWithSender(s sender, chatID int64) *Notifier {
	return &Notifier{bot: s, chatID: chatID}
}

func (n *Notifier) JobFinished(ctx context.Context, job *model.GenerationJob) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := tgbotapi.NewMessage(n.chatID, FormatJob(job))
	msg.DisableWebPagePreview = true
	_, err := n.bot.Send(msg)
	return err
}

// FormatJob renders a job summary as plain text.
func FormatJob(job *model.GenerationJob) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Job %s %s\n", job.ID, strings.ToUpper(string(job.Status)))
	fmt.Fprintf(&b, "Strategy: %s, style: %s\n", job.Strategy, job.ImageStyle)
	if job.ArticleID != nil {
		fmt.Fprintf(&b, "Article: %s\n", *job.ArticleID)
	}
	u := job.TotalUsage()
	fmt.Fprintf(&b, "Tokens: %d in / %d out, images: %d\n", u.TokensIn, u.TokensOut, u.Images)
	for _, st := range job.Stages {
		if st.Status == model.StageStatusPending {
			continue
		}
		fmt.Fprintf(&b, "  %d %s: %s\n", st.Ordinal, st.Name, st.Status)
	}
	if job.LastError != "" {
		fmt.Fprintf(&b, "Error: %s\n", job.LastError)
	}
	return strings.TrimRight(b.String(), "\n")
}
