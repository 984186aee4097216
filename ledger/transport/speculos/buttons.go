package speculos

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/anchorageoss/neo-ledgerclient/ledger"
)

// Button names understood by the Speculos REST API
const (
	ButtonLeft  = "left"
	ButtonRight = "right"
	ButtonBoth  = "both"
)

// HTTPClient interface for dependency injection
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

var _ ledger.Confirmer = (*ButtonConfirmer)(nil)

// ButtonConfirmer approves a request by scrolling through the review
// screens with the right button and pressing both buttons on "Approve".
type ButtonConfirmer struct {
	BaseURL    string
	HTTPClient HTTPClient
	// Screens is the number of right presses needed to reach "Approve"
	Screens int
	// Delay gives the device time to render the first screen
	Delay time.Duration
}

type buttonRequest struct {
	Action string `json:"action"`
}

// Confirm implements ledger.Confirmer
func (b *ButtonConfirmer) Confirm(ctx context.Context) error {
	if b.Delay > 0 {
		select {
		case <-time.After(b.Delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	for i := 0; i < b.Screens; i++ {
		if err := b.Press(ctx, ButtonRight); err != nil {
			return err
		}
	}
	return b.Press(ctx, ButtonBoth)
}

// Press presses and releases a button
func (b *ButtonConfirmer) Press(ctx context.Context, button string) error {
	body, err := json.Marshal(buttonRequest{Action: "press-and-release"})
	if err != nil {
		return fmt.Errorf("failed to marshal button request: %w", err)
	}

	url := fmt.Sprintf("%s/button/%s", strings.TrimSuffix(b.BaseURL, "/"), button)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create HTTP request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	client := b.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to press %s button: %w", button, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("speculos returned non-OK status for %s button: %d, body: %s", button, resp.StatusCode, string(bodyBytes))
	}
	return nil
}
