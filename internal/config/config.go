package config

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"gmat-zalo-bot/internal/catalog"
)

const (
	defaultGMATBaseURL = "https://mister-teddy.github.io/gmat-database"
	defaultZaloBaseURL = "https://bot-api.zapps.vn"
	defaultCaption     = "Here's your GMAT question! 📚"
	defaultReleaseTag  = "question-images"
	defaultRenderTool  = "wkhtmltoimage"
)

// EnvFile is loaded before flags are parsed when it exists.
var EnvFile = ".env"

type Config struct {
	ShowStats      bool
	GenerateImages bool
	Send           bool
	BotService     bool

	BotToken      string
	Category      catalog.Category
	Count         int
	OutputDir     string
	CaptionPrefix string
	Recipients    []string

	GMATBaseURL string
	ZaloBaseURL string
	PollTimeout time.Duration

	GitHubToken      string
	GitHubRepository string
	GitHubReleaseID  int64
	GitHubReleaseTag string
	GitHubAPIURL     string
	GitHubUploadsURL string

	RenderTool    string
	RenderWidth   int
	RenderQuality int

	FetchMaxAttempts  int
	FetchRetryDelay   time.Duration
	RenderMaxAttempts int
	HostMaxAttempts   int
	SendConcurrency   int

	FirestoreProject string
	StatusAddr       string
}

// NeedsChat reports whether the run talks to the chat platform.
func (c Config) NeedsChat() bool {
	return c.Send || c.BotService
}

func Load(args []string) (Config, error) {
	if err := godotenv.Load(EnvFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load %s: %w", EnvFile, err)
	}

	pollSec, err := parseIntEnv("POLL_TIMEOUT_SEC", 30)
	if err != nil {
		return Config{}, err
	}
	renderWidth, err := parseIntEnv("RENDER_WIDTH", 1200)
	if err != nil {
		return Config{}, err
	}
	renderQuality, err := parseIntEnv("RENDER_QUALITY", 100)
	if err != nil {
		return Config{}, err
	}
	fetchAttempts, err := parseIntEnv("FETCH_MAX_ATTEMPTS", 3)
	if err != nil {
		return Config{}, err
	}
	fetchDelayMS, err := parseIntEnv("FETCH_RETRY_DELAY_MS", 1000)
	if err != nil {
		return Config{}, err
	}
	renderAttempts, err := parseIntEnv("RENDER_MAX_ATTEMPTS", 1)
	if err != nil {
		return Config{}, err
	}
	hostAttempts, err := parseIntEnv("HOST_MAX_ATTEMPTS", 1)
	if err != nil {
		return Config{}, err
	}
	sendConcurrency, err := parseIntEnv("SEND_CONCURRENCY", 1)
	if err != nil {
		return Config{}, err
	}
	releaseID, err := parseInt64Env("GITHUB_RELEASE_ID")
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		GMATBaseURL:       getEnv("GMAT_DATABASE_URL", defaultGMATBaseURL),
		ZaloBaseURL:       getEnv("ZALO_API_BASE_URL", defaultZaloBaseURL),
		PollTimeout:       time.Duration(pollSec) * time.Second,
		GitHubToken:       strings.TrimSpace(os.Getenv("GITHUB_TOKEN")),
		GitHubRepository:  getEnv("GITHUB_REPOSITORY", ""),
		GitHubReleaseID:   releaseID,
		GitHubReleaseTag:  getEnv("GITHUB_RELEASE_TAG", defaultReleaseTag),
		GitHubAPIURL:      getEnv("GITHUB_API_URL", ""),
		GitHubUploadsURL:  getEnv("GITHUB_UPLOADS_URL", ""),
		RenderTool:        getEnv("RENDER_TOOL", defaultRenderTool),
		RenderWidth:       renderWidth,
		RenderQuality:     renderQuality,
		FetchMaxAttempts:  fetchAttempts,
		FetchRetryDelay:   time.Duration(fetchDelayMS) * time.Millisecond,
		RenderMaxAttempts: renderAttempts,
		HostMaxAttempts:   hostAttempts,
		SendConcurrency:   sendConcurrency,
		FirestoreProject:  getEnv("FIRESTORE_PROJECT_ID", ""),
		StatusAddr:        getEnv("STATUS_ADDR", ""),
	}

	var categoryRaw, recipientsRaw string
	flags := flag.NewFlagSet("gmat-zalo-bot", flag.ContinueOnError)
	flags.SetOutput(io.Discard)
	flags.StringVar(&cfg.BotToken, "bot-token", getEnv("ZALO_BOT_TOKEN", ""), "Zalo bot token")
	flags.StringVar(&categoryRaw, "category", getEnv("QUESTION_CATEGORY", ""), "question category filter (rc, sc, cr, ps, ds)")
	flags.IntVar(&cfg.Count, "count", 1, "number of questions to pick")
	flags.BoolVar(&cfg.ShowStats, "show-stats", false, "print question counts per category and exit")
	flags.BoolVar(&cfg.GenerateImages, "generate-images", false, "render the selected questions to images")
	flags.BoolVar(&cfg.Send, "send", false, "deliver the selected questions once")
	flags.BoolVar(&cfg.BotService, "bot-service", false, "answer chat messages continuously")
	flags.StringVar(&cfg.OutputDir, "output-dir", getEnv("OUTPUT_DIR", "output"), "directory for rendered images")
	flags.StringVar(&cfg.CaptionPrefix, "caption", getEnv("CAPTION_PREFIX", defaultCaption), "caption prefix for delivered images")
	flags.StringVar(&recipientsRaw, "recipients", getEnv("RECIPIENTS", ""), "comma separated chat ids for one-shot delivery")
	if err := flags.Parse(args); err != nil {
		return Config{}, fmt.Errorf("parse flags: %w", err)
	}

	cfg.Category, err = catalog.ParseCategory(categoryRaw)
	if err != nil {
		return Config{}, fmt.Errorf("invalid category %q: %w", categoryRaw, err)
	}
	cfg.Recipients = parseList(recipientsRaw)
	cfg.BotToken = strings.TrimSpace(cfg.BotToken)

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.Count <= 0 {
		return fmt.Errorf("invalid count %d: must be positive", c.Count)
	}
	if c.OutputDir == "" {
		return fmt.Errorf("output directory is required")
	}
	if !c.NeedsChat() {
		return nil
	}
	if c.BotToken == "" {
		return fmt.Errorf("ZALO_BOT_TOKEN is required (or pass --bot-token)")
	}
	if c.GitHubToken == "" {
		return fmt.Errorf("GITHUB_TOKEN is required to host question images")
	}
	if c.GitHubRepository == "" {
		return fmt.Errorf("GITHUB_REPOSITORY is required to host question images")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok {
		return strings.TrimSpace(v)
	}
	return fallback
}

func parseIntEnv(key string, fallback int) (int, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return fallback, nil
	}
	v, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || v <= 0 {
		return 0, fmt.Errorf("invalid %s: %q", key, raw)
	}
	return v, nil
}

func parseInt64Env(key string) (int64, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || v <= 0 {
		return 0, fmt.Errorf("invalid %s: %q", key, raw)
	}
	return v, nil
}

// parseList splits a comma list, dropping blanks and duplicates.
func parseList(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	seen := make(map[string]struct{})
	out := make([]string, 0)
	for _, token := range strings.Split(raw, ",") {
		item := strings.TrimSpace(token)
		if item == "" {
			continue
		}
		if _, exists := seen[item]; exists {
			continue
		}
		seen[item] = struct{}{}
		out = append(out, item)
	}
	return out
}
