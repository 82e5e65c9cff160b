package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/pkg/errors"

	"coldcall/internal/config"
)

// Message represents an outbound notification.
type Message struct {
	Text string `json:"text"`
}

// GroupMe posts messages to a GroupMe bot.
type GroupMe struct {
	botID  string
	url    string
	client *http.Client
}

// NewGroupMe returns nil when no bot is configured; a nil *GroupMe is a
// no-op sender.
func NewGroupMe(cfg config.Config, client *http.Client) *GroupMe {
	if cfg.GroupMeBotID == "" {
		return nil
	}
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &GroupMe{botID: cfg.GroupMeBotID, url: cfg.GroupMeURL, client: client}
}

// Send posts msg to the bot if configured.
func (g *GroupMe) Send(ctx context.Context, msg Message) error {
	if g == nil {
		return nil
	}
	payload := map[string]string{"text": msg.Text, "bot_id": g.botID}
	buf, _ := json.Marshal(payload)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.url, bytes.NewBuffer(buf))
	if err != nil {
		return errors.Wrap(err, "build groupme request")
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := g.client.Do(req)
	if err != nil {
		return errors.Wrap(err, "post groupme")
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return errors.Errorf("groupme status %d", resp.StatusCode)
	}
	return nil
}
