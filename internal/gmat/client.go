package gmat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"gmat-zalo-bot/internal/catalog"
)

const DefaultBaseURL = "https://mister-teddy.github.io/gmat-database"

var (
	ErrQuestionNotFound = errors.New("question not found")
	ErrMalformedContent = errors.New("malformed question content")
)

// StatusError is a non-2xx answer from the content source.
type StatusError struct {
	StatusCode int
	URL        string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("gmat database status %d for %s", e.StatusCode, e.URL)
}

type Client struct {
	httpClient *http.Client
	baseURL    string
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(baseURL, "/"),
	}
}

type Question struct {
	ID           string
	Source       string
	Body         string
	Answers      []string
	Explanations []string
	TypeTag      string
}

// Preview is the first n characters of the question body as plain text.
func (q Question) Preview(n int) string {
	text := htmlToText(q.Body)
	runes := []rune(text)
	if len(runes) <= n {
		return text
	}
	return string(runes[:n]) + "..."
}

type questionRecord struct {
	ID           string   `json:"id"`
	Src          string   `json:"src"`
	Explanations []string `json:"explanations"`
	Type         string   `json:"type"`
	Question     string   `json:"question"`
	Answers      []string `json:"answers"`
}

type indexRecord struct {
	RC []string `json:"RC"`
	SC []string `json:"SC"`
	CR []string `json:"CR"`
	PS []string `json:"PS"`
	DS []string `json:"DS"`
}

func (c *Client) LoadCatalog(ctx context.Context) (catalog.Catalog, error) {
	var idx indexRecord
	if err := c.getJSON(ctx, "/index.json", &idx); err != nil {
		return catalog.Catalog{}, fmt.Errorf("load question index: %w", err)
	}

	return catalog.New(map[catalog.Category][]string{
		catalog.ReadingComprehension: cleanIDs(idx.RC),
		catalog.SentenceCorrection:   cleanIDs(idx.SC),
		catalog.CriticalReasoning:    cleanIDs(idx.CR),
		catalog.ProblemSolving:       cleanIDs(idx.PS),
		catalog.DataSufficiency:      cleanIDs(idx.DS),
	}), nil
}

func (c *Client) FetchQuestion(ctx context.Context, id string) (Question, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Question{}, fmt.Errorf("question id is empty")
	}

	var rec questionRecord
	if err := c.getJSON(ctx, "/"+url.PathEscape(id)+".json", &rec); err != nil {
		var statusErr *StatusError
		if errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusNotFound {
			return Question{}, fmt.Errorf("fetch question %s: %w", id, ErrQuestionNotFound)
		}
		return Question{}, fmt.Errorf("fetch question %s: %w", id, err)
	}
	if strings.TrimSpace(rec.Question) == "" {
		return Question{}, fmt.Errorf("fetch question %s: %w: empty body", id, ErrMalformedContent)
	}
	if rec.ID == "" {
		rec.ID = id
	}

	return Question{
		ID:           rec.ID,
		Source:       rec.Src,
		Body:         rec.Question,
		Answers:      rec.Answers,
		Explanations: rec.Explanations,
		TypeTag:      rec.Type,
	}, nil
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	endpoint := c.baseURL + path
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("gmat database request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return &StatusError{StatusCode: resp.StatusCode, URL: endpoint}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedContent, err)
	}
	return nil
}

func cleanIDs(ids []string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id = strings.TrimSpace(id); id != "" {
			out = append(out, id)
		}
	}
	return out
}
