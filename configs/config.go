package configs

import (
	"bytes"
	"os"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"github.com/pkg/errors"
)

const (
	TextBackendHuggingFace = "huggingface"
	TextBackendDeepSeek    = "deepseek"
)

// Config is loaded once at startup and never mutated afterwards.
type Config struct {
	DataDir     string `toml:"data_dir"`
	HTTPAddr    string `toml:"http_addr"`
	LogLevel    string `toml:"log_level"`
	ActivityLog string `toml:"activity_log"`
	TextBackend string `toml:"text_backend"`

	Reddit struct {
		ClientID          string `toml:"client_id"`
		ClientSecret      string `toml:"client_secret"`
		Username          string `toml:"username"`
		Password          string `toml:"password"`
		UserAgent         string `toml:"user_agent"`
		Subreddit         string `toml:"subreddit"`
		Proxy             string `toml:"proxy"`
		RequestsPerMinute int    `toml:"requests_per_minute"`
		Timeout           int    `toml:"timeout"`
	} `toml:"reddit"`

	Bot struct {
		HotLimit           int      `toml:"hot_limit"`
		CommentLimit       int      `toml:"comment_limit"`
		NewPostProbability float64  `toml:"new_post_probability"`
		RelevanceThreshold float64  `toml:"relevance_threshold"`
		Labels             []string `toml:"labels"`
		ScheduleInterval   string   `toml:"schedule_interval"`
		RateLimitCooldown  string   `toml:"rate_limit_cooldown"`
		RunHistory         int      `toml:"run_history"`
	} `toml:"bot"`

	HuggingFace struct {
		APIToken      string `toml:"api_token"`
		BaseURL       string `toml:"base_url"`
		TextModel     string `toml:"text_model"`
		ZeroShotModel string `toml:"zero_shot_model"`
		Timeout       int    `toml:"timeout"`
	} `toml:"huggingface"`

	DeepSeek struct {
		APIKey  string `toml:"api_key"`
		BaseURL string `toml:"base_url"`
		Model   string `toml:"model"`
		Timeout int    `toml:"timeout"`
	} `toml:"deepseek"`

	SDWebUI struct {
		URL     string `toml:"url"`
		Steps   int    `toml:"steps"`
		Width   int    `toml:"width"`
		Height  int    `toml:"height"`
		Timeout int    `toml:"timeout"`
	} `toml:"sd_webui"`

	Image struct {
		FileName string `toml:"file_name"`
		MaxBytes int64  `toml:"max_bytes"`
	} `toml:"image"`
}

// Default returns the configuration used when neither a file nor the
// environment overrides a value.
func Default() *Config {
	c := &Config{
		DataDir:     ".",
		HTTPAddr:    "127.0.0.1:8080",
		LogLevel:    "info",
		ActivityLog: "activity_log.txt",
		TextBackend: TextBackendHuggingFace,
	}
	c.Reddit.Subreddit = "webdev"
	c.Reddit.RequestsPerMinute = 60
	c.Reddit.Timeout = 30000

	c.Bot.HotLimit = 5
	c.Bot.CommentLimit = 5
	c.Bot.NewPostProbability = 0.1
	c.Bot.RelevanceThreshold = 0.5
	c.Bot.Labels = []string{"web development", "javascript", "career advice"}
	c.Bot.ScheduleInterval = "1h"
	c.Bot.RateLimitCooldown = "5m"
	c.Bot.RunHistory = 20

	c.HuggingFace.BaseURL = "https://api-inference.huggingface.co"
	c.HuggingFace.TextModel = "gpt2-large"
	c.HuggingFace.ZeroShotModel = "facebook/bart-large-mnli"
	c.HuggingFace.Timeout = 120000

	c.DeepSeek.Model = "deepseek-chat"
	c.DeepSeek.Timeout = 120000

	c.SDWebUI.URL = "http://127.0.0.1:7860"
	c.SDWebUI.Steps = 30
	c.SDWebUI.Width = 512
	c.SDWebUI.Height = 512
	c.SDWebUI.Timeout = 600000

	c.Image.FileName = "generated_image.png"
	c.Image.MaxBytes = 20 * 1024 * 1024
	return c
}

// Load builds the configuration from defaults, the optional TOML file at
// path and finally the process environment.
func Load(path string) (*Config, error) {
	c := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.Wrap(err, "read config file")
		}
		decoder := toml.NewDecoder(bytes.NewReader(data))
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(c); err != nil {
			return nil, errors.Wrapf(err, "decode config file %s", path)
		}
	}
	c.applyEnv()
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Validate checks that the Reddit credentials are present before any
// network call is attempted.
func (c *Config) Validate() error {
	var missing []string
	for _, kv := range [][2]string{
		{"REDDIT_CLIENT_ID", c.Reddit.ClientID},
		{"REDDIT_CLIENT_SECRET", c.Reddit.ClientSecret},
		{"REDDIT_USERNAME", c.Reddit.Username},
		{"REDDIT_PASSWORD", c.Reddit.Password},
		{"REDDIT_USER_AGENT", c.Reddit.UserAgent},
	} {
		if strings.TrimSpace(kv[1]) == "" {
			missing = append(missing, kv[0])
		}
	}
	if len(missing) > 0 {
		return errors.Errorf("missing reddit credentials: %s", strings.Join(missing, ", "))
	}

	switch c.TextBackend {
	case TextBackendHuggingFace:
	case TextBackendDeepSeek:
		if c.DeepSeek.APIKey == "" {
			return errors.New("deepseek text backend requires DEEPSEEK_API_KEY")
		}
	default:
		return errors.Errorf("unknown text backend %q", c.TextBackend)
	}

	if c.Bot.NewPostProbability < 0 || c.Bot.NewPostProbability > 1 {
		return errors.Errorf("new post probability must be within [0,1], got %v", c.Bot.NewPostProbability)
	}
	if c.Bot.RelevanceThreshold < 0 || c.Bot.RelevanceThreshold > 1 {
		return errors.Errorf("relevance threshold must be within [0,1], got %v", c.Bot.RelevanceThreshold)
	}
	if len(c.Bot.Labels) == 0 {
		return errors.New("at least one relevance label is required")
	}
	if _, err := time.ParseDuration(c.Bot.ScheduleInterval); err != nil {
		return errors.Wrap(err, "invalid schedule interval")
	}
	if _, err := time.ParseDuration(c.Bot.RateLimitCooldown); err != nil {
		return errors.Wrap(err, "invalid rate limit cooldown")
	}
	return nil
}

func (c *Config) ScheduleInterval() time.Duration {
	d, err := time.ParseDuration(c.Bot.ScheduleInterval)
	if err != nil || d <= 0 {
		return time.Hour
	}
	return d
}

func (c *Config) RateLimitCooldown() time.Duration {
	d, err := time.ParseDuration(c.Bot.RateLimitCooldown)
	if err != nil || d <= 0 {
		return 5 * time.Minute
	}
	return d
}
