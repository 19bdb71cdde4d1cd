package telegram

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hashicorp/go-multierror"

	"github.com/deusflow/newschannel/internal/news"
	"github.com/deusflow/newschannel/internal/storage"
)

// Notifier sends the "new article" message to every active admin plus any
// statically configured chats.
type Notifier struct {
	client  *Client
	admins  storage.AdminRegistry
	chatIDs []string
	log     *slog.Logger
}

func NewNotifier(client *Client, admins storage.AdminRegistry, chatIDs []string, log *slog.Logger) *Notifier {
	if log == nil {
		log = slog.Default()
	}
	return &Notifier{client: client, admins: admins, chatIDs: chatIDs, log: log}
}

// Notify delivers the announcement to each recipient, as a photo caption when
// the article has an image. A failing chat does not stop the others; all
// failures are returned together.
func (n *Notifier) Notify(ctx context.Context, a news.Article) error {
	recipients, err := n.recipients(ctx)
	if err != nil {
		return err
	}
	if len(recipients) == 0 {
		n.log.Warn("no notification recipients configured", "id", a.ID)
		return nil
	}

	text := news.FormatAnnouncement(a)
	button := Button{Text: "Generate post", CallbackData: GeneratePostPrefix + a.ID}
	photo := a.MainImage()

	var result *multierror.Error
	for _, chatID := range recipients {
		var err error
		if photo != "" {
			err = n.client.SendPhoto(ctx, chatID, photo, text, button)
		} else {
			err = n.client.SendMessage(ctx, chatID, text, button)
		}
		if err != nil {
			result = multierror.Append(result, fmt.Errorf("chat %s: %w", chatID, err))
		}
	}
	return result.ErrorOrNil()
}

func (n *Notifier) recipients(ctx context.Context) ([]string, error) {
	seen := make(map[string]struct{})
	var out []string
	add := func(id string) {
		if id == "" {
			return
		}
		if _, ok := seen[id]; ok {
			return
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}

	for _, id := range n.chatIDs {
		add(id)
	}
	if n.admins != nil {
		admins, err := n.admins.ActiveAdmins(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to load admins: %w", err)
		}
		for _, a := range admins {
			add(a.UserID)
		}
	}
	return out, nil
}
