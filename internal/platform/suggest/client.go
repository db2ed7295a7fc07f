// Package suggest is a thin client for the remote keyword-suggestion
// provider. The provider returns candidate keyword/category pairs for free
// text; the core treats them as ordinary user-entered terms once added, so
// this client does nothing beyond the HTTP round trip.
package suggest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/curation/curator/internal/domain/dictionary"
)

// Client calls the suggestion proxy endpoint.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a suggestion client for the given proxy base URL.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

type suggestRequest struct {
	DictionaryType string `json:"dictionary_type"`
	Text           string `json:"text"`
}

type suggestResponse struct {
	Suggestions []struct {
		Keyword  string `json:"keyword"`
		Category string `json:"category"`
	} `json:"suggestions"`
}

// Suggest posts text to the provider and returns its suggestions as terms in
// provider-response order. Order matters downstream: suggestion batches are
// appended to the active-term sequence exactly as returned.
func (c *Client) Suggest(ctx context.Context, t dictionary.Type, text string) ([]dictionary.Term, error) {
	body, err := json.Marshal(suggestRequest{DictionaryType: string(t), Text: text})
	if err != nil {
		return nil, fmt.Errorf("encode suggestion request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/suggest", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build suggestion request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("suggestion request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("suggestion provider returned status %d", resp.StatusCode)
	}

	var out suggestResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode suggestion response: %w", err)
	}

	terms := make([]dictionary.Term, 0, len(out.Suggestions))
	for _, s := range out.Suggestions {
		terms = append(terms, dictionary.NewTerm(s.Keyword, s.Category))
	}
	return terms, nil
}
