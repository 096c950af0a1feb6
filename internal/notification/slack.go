package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"github.com/tower-qa/tower-qa/internal/models"
	srvErrors "github.com/tower-qa/tower-qa/pkg/errors"
)

const SlackAPI = "https://slack.com/api"

// Slack finds messages in the history of the configured channels.
type Slack struct {
	apiURL     string
	token      string
	channels   []string
	httpClient *http.Client
}

// NewSlack creates a confirmer reading channels with a bot token. An empty
// apiURL means SlackAPI.
func NewSlack(apiURL, token string, channels []string) *Slack {
	if apiURL == "" {
		apiURL = SlackAPI
	}
	return &Slack{
		apiURL:     strings.TrimSuffix(apiURL, "/"),
		token:      token,
		channels:   channels,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

type slackChannel struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type slackMessage struct {
	Text       string         `json:"text"`
	Username   string         `json:"username"`
	BotProfile map[string]any `json:"bot_profile"`
}

// Present looks for a message whose text equals msg.Text. A match posted by
// the legacy "bot" user, or without a bot profile, is an error: the
// controller must post as its app.
func (s *Slack) Present(ctx context.Context, _ models.NotificationTemplate, msg Message) (bool, error) {
	var list struct {
		Channels []slackChannel `json:"channels"`
	}
	if err := s.call(ctx, "conversations.list", url.Values{"limit": {"1000"}}, &list); err != nil {
		return false, err
	}
	ids := make(map[string]string, len(list.Channels))
	for _, ch := range list.Channels {
		ids[ch.Name] = ch.ID
	}

	for _, name := range s.channels {
		id, ok := ids[strings.TrimPrefix(name, "#")]
		if !ok {
			return false, srvErrors.NewResourceNotFoundError("slack channel", name)
		}

		var history struct {
			Messages []slackMessage `json:"messages"`
		}
		if err := s.call(ctx, "conversations.history", url.Values{"channel": {id}}, &history); err != nil {
			return false, err
		}
		for _, m := range history.Messages {
			if m.Text != msg.Text {
				continue
			}
			if m.Username == "bot" || m.BotProfile == nil {
				return false, srvErrors.NewInvalidStateError(fmt.Sprintf("message in #%s was not posted by a bot app", name))
			}
			return true, nil
		}
	}
	return false, nil
}

func (s *Slack) call(ctx context.Context, method string, query url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.apiURL+"/"+method+"?"+query.Encode(), nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	(&oauth2.Token{AccessToken: s.token, TokenType: "Bearer"}).SetAuthHeader(req)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("calling slack %s: %w", method, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return srvErrors.NewAPIError(resp.StatusCode, http.MethodGet, method, "")
	}

	var raw json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return fmt.Errorf("decoding slack %s: %w", method, err)
	}
	var status struct {
		OK    bool   `json:"ok"`
		Error string `json:"error"`
	}
	if err := json.Unmarshal(raw, &status); err != nil {
		return fmt.Errorf("decoding slack %s: %w", method, err)
	}
	if !status.OK {
		return fmt.Errorf("slack %s: %s", method, status.Error)
	}
	return json.Unmarshal(raw, out)
}
