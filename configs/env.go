package configs

import (
	"os"
	"strconv"
	"strings"
)

func (c *Config) applyEnv() {
	envString("BOT_DATA_DIR", &c.DataDir)
	envString("BOT_HTTP_ADDR", &c.HTTPAddr)
	envString("BOT_LOG_LEVEL", &c.LogLevel)
	envString("BOT_ACTIVITY_LOG", &c.ActivityLog)
	envString("BOT_TEXT_BACKEND", &c.TextBackend)

	envString("REDDIT_CLIENT_ID", &c.Reddit.ClientID)
	envString("REDDIT_CLIENT_SECRET", &c.Reddit.ClientSecret)
	envString("REDDIT_USERNAME", &c.Reddit.Username)
	envString("REDDIT_PASSWORD", &c.Reddit.Password)
	envString("REDDIT_USER_AGENT", &c.Reddit.UserAgent)
	envString("BOT_SUBREDDIT", &c.Reddit.Subreddit)
	envString("BOT_PROXY", &c.Reddit.Proxy)
	envInt("REDDIT_REQUESTS_PER_MINUTE", &c.Reddit.RequestsPerMinute)

	envInt("BOT_HOT_LIMIT", &c.Bot.HotLimit)
	envInt("BOT_COMMENT_LIMIT", &c.Bot.CommentLimit)
	envFloat("BOT_NEW_POST_PROBABILITY", &c.Bot.NewPostProbability)
	envFloat("BOT_RELEVANCE_THRESHOLD", &c.Bot.RelevanceThreshold)
	envList("BOT_LABELS", &c.Bot.Labels)
	envString("BOT_SCHEDULE_INTERVAL", &c.Bot.ScheduleInterval)
	envString("BOT_RATE_LIMIT_COOLDOWN", &c.Bot.RateLimitCooldown)
	envInt("BOT_RUN_HISTORY", &c.Bot.RunHistory)

	envString("HF_API_TOKEN", &c.HuggingFace.APIToken)
	envString("HF_BASE_URL", &c.HuggingFace.BaseURL)
	envString("HF_TEXT_MODEL", &c.HuggingFace.TextModel)
	envString("HF_ZERO_SHOT_MODEL", &c.HuggingFace.ZeroShotModel)

	envString("DEEPSEEK_API_KEY", &c.DeepSeek.APIKey)
	envString("DEEPSEEK_BASE_URL", &c.DeepSeek.BaseURL)
	envString("DEEPSEEK_MODEL", &c.DeepSeek.Model)

	envString("SD_WEBUI_URL", &c.SDWebUI.URL)
	envInt("SD_WEBUI_STEPS", &c.SDWebUI.Steps)

	envString("BOT_IMAGE_FILE", &c.Image.FileName)
	if v := os.Getenv("BOT_IMAGE_MAX_BYTES"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
			c.Image.MaxBytes = n
		}
	}
}

func envString(key string, dst *string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*dst = v
	}
}

func envInt(key string, dst *int) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return
	}
	*dst = n
}

func envFloat(key string, dst *float64) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return
	}
	*dst = f
}

func envList(key string, dst *[]string) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	if len(out) > 0 {
		*dst = out
	}
}
