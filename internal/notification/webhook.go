package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"path"
	"reflect"
	"strings"
	"time"

	"github.com/tower-qa/tower-qa/internal/models"
	srvErrors "github.com/tower-qa/tower-qa/pkg/errors"
)

// Webhook reads webhook deliveries back from a request bin datastore. The
// template's url ends in the bin id; each poll shifts the oldest request
// out of <datastore>/api/bin/<bin>/req/shift.
type Webhook struct {
	datastore  string
	httpClient *http.Client
}

func NewWebhook(datastore string) *Webhook {
	return &Webhook{
		datastore:  strings.TrimSuffix(datastore, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// Present compares the shifted request body with msg.Body. Both sides are
// normalized through JSON, and a string Body is parsed as a JSON document.
func (w *Webhook) Present(ctx context.Context, template models.NotificationTemplate, msg Message) (bool, error) {
	target, _ := template.Configuration["url"].(string)
	if target == "" {
		return false, srvErrors.NewInvalidArgumentError("url", fmt.Sprintf("webhook template %d has no url", template.ID))
	}
	bin := path.Base(strings.TrimSuffix(target, "/"))

	expected, err := normalize(msg.Body)
	if err != nil {
		return false, srvErrors.NewInvalidArgumentError("body", "expected webhook body must be a JSON document")
	}

	url := fmt.Sprintf("%s/api/bin/%s/req/shift", w.datastore, bin)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return false, fmt.Errorf("creating request: %w", err)
	}
	resp, err := w.httpClient.Do(req)
	if err != nil {
		return false, fmt.Errorf("reading bin %s: %w", bin, err)
	}
	defer resp.Body.Close()

	// an empty bin answers with an error document
	var shifted map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&shifted); err != nil {
		return false, nil
	}
	body, ok := shifted["body"]
	if !ok {
		return false, nil
	}
	if s, isString := body.(string); isString {
		if parsed, err := normalize(s); err == nil {
			body = parsed
		}
	}
	return reflect.DeepEqual(body, expected), nil
}

func normalize(v any) (any, error) {
	var data []byte
	if s, ok := v.(string); ok {
		data = []byte(s)
	} else {
		var err error
		if data, err = json.Marshal(v); err != nil {
			return nil, err
		}
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}
