package configs

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func setRedditEnv(t *testing.T) {
	t.Setenv("REDDIT_CLIENT_ID", "id")
	t.Setenv("REDDIT_CLIENT_SECRET", "secret")
	t.Setenv("REDDIT_USERNAME", "AiLazyNinja")
	t.Setenv("REDDIT_PASSWORD", "hunter2")
	t.Setenv("REDDIT_USER_AGENT", "script:lazyninja:v1 (by /u/AiLazyNinja)")
}

func TestLoad_DefaultsWithEnvCredentials(t *testing.T) {
	setRedditEnv(t)

	c, err := Load("")
	require.NoError(t, err)
	require.Equal(t, "webdev", c.Reddit.Subreddit)
	require.Equal(t, 5, c.Bot.HotLimit)
	require.Equal(t, 0.1, c.Bot.NewPostProbability)
	require.Equal(t, 0.5, c.Bot.RelevanceThreshold)
	require.Equal(t, []string{"web development", "javascript", "career advice"}, c.Bot.Labels)
	require.Equal(t, time.Hour, c.ScheduleInterval())
	require.Equal(t, 5*time.Minute, c.RateLimitCooldown())
}

func TestLoad_MissingCredentials(t *testing.T) {
	t.Setenv("REDDIT_CLIENT_ID", "id")
	t.Setenv("REDDIT_CLIENT_SECRET", "")
	t.Setenv("REDDIT_USERNAME", "")
	t.Setenv("REDDIT_PASSWORD", "")
	t.Setenv("REDDIT_USER_AGENT", "")

	_, err := Load("")
	require.Error(t, err)
	require.Contains(t, err.Error(), "REDDIT_CLIENT_SECRET")
	require.Contains(t, err.Error(), "REDDIT_USER_AGENT")
}

func TestLoad_FileThenEnvOverride(t *testing.T) {
	setRedditEnv(t)
	t.Setenv("BOT_SUBREDDIT", "golang")
	t.Setenv("BOT_LABELS", "go, backend ,")

	path := filepath.Join(t.TempDir(), "config.toml")
	data := []byte(`
data_dir = "/var/lib/bot"

[reddit]
subreddit = "webdev"

[bot]
hot_limit = 3
new_post_probability = 0.25
schedule_interval = "30m"
`)
	require.NoError(t, os.WriteFile(path, data, 0644))

	c, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "golang", c.Reddit.Subreddit)
	require.Equal(t, 3, c.Bot.HotLimit)
	require.Equal(t, 0.25, c.Bot.NewPostProbability)
	require.Equal(t, 30*time.Minute, c.ScheduleInterval())
	require.Equal(t, []string{"go", "backend"}, c.Bot.Labels)
	require.Equal(t, "/var/lib/bot/activity_log.txt", c.ActivityLogPath())
}

func TestLoad_UnknownFieldRejected(t *testing.T) {
	setRedditEnv(t)

	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("nope = 1\n"), 0644))

	_, err := Load(path)
	require.Error(t, err)
}

func TestValidate_ProbabilityRange(t *testing.T) {
	setRedditEnv(t)
	t.Setenv("BOT_NEW_POST_PROBABILITY", "1.5")

	_, err := Load("")
	require.Error(t, err)
}

func TestResolveDataPath(t *testing.T) {
	c := Default()
	c.DataDir = "data"
	require.Equal(t, filepath.Join("data", "generated_image.png"), c.ImagePath())
	require.Equal(t, "/abs/x.txt", c.ResolveDataPath("/abs/x.txt"))
	require.Equal(t, "data", c.ResolveDataPath(""))
}
