package main

import (
	"context"
	"errors"
	"flag"
	"io/fs"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/lazyninja/reddit-influencer/bot"
	"github.com/lazyninja/reddit-influencer/classifier"
	"github.com/lazyninja/reddit-influencer/configs"
	"github.com/lazyninja/reddit-influencer/generator"
	"github.com/lazyninja/reddit-influencer/modules/proxypool"
	"github.com/lazyninja/reddit-influencer/modules/tokenstore"
	"github.com/lazyninja/reddit-influencer/pkg/activitylog"
	"github.com/lazyninja/reddit-influencer/pkg/httpclient"
	"github.com/lazyninja/reddit-influencer/reddit"
)

func main() {
	var (
		cfgPath     string
		addr        string
		noScheduler bool
	)
	flag.StringVar(&cfgPath, "cfg", "", "optional TOML config file")
	flag.StringVar(&addr, "addr", "", "dashboard listen address, overrides BOT_HTTP_ADDR")
	flag.BoolVar(&noScheduler, "no-scheduler", false, "serve the dashboard without the periodic scheduler")
	flag.Parse()

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		logrus.Warnf("failed to load .env: %v", err)
	}

	cfg, err := configs.Load(cfgPath)
	if err != nil {
		logrus.Fatalf("failed to load config: %v", err)
	}
	if addr != "" {
		cfg.HTTPAddr = addr
	}
	if lvl, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		logrus.SetLevel(lvl)
	} else {
		logrus.Warnf("unknown log level %q, using info", cfg.LogLevel)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	redditClient, err := newRedditClient(cfg)
	if err != nil {
		logrus.Fatalf("failed to create reddit client: %v", err)
	}

	text, err := newTextGenerator(cfg)
	if err != nil {
		logrus.Fatalf("failed to create text generator: %v", err)
	}
	images := generator.NewSDWebUI(cfg.ImagePath(), generator.SDWebUIOptions{
		URL:      cfg.SDWebUI.URL,
		Steps:    cfg.SDWebUI.Steps,
		Width:    cfg.SDWebUI.Width,
		Height:   cfg.SDWebUI.Height,
		Timeout:  time.Duration(cfg.SDWebUI.Timeout) * time.Millisecond,
		MaxBytes: cfg.Image.MaxBytes,
	})
	relevance := classifier.NewZeroShot(
		cfg.HuggingFace.BaseURL,
		cfg.HuggingFace.ZeroShotModel,
		cfg.HuggingFace.APIToken,
		time.Duration(cfg.HuggingFace.Timeout)*time.Millisecond,
		classifier.WithLabels(cfg.Bot.Labels),
		classifier.WithThreshold(cfg.Bot.RelevanceThreshold),
	)
	activity := activitylog.New(cfg.ActivityLogPath())

	runner, err := bot.NewRunner(bot.Deps{
		Platform:   redditClient,
		Text:       text,
		Images:     images,
		Classifier: relevance,
		Log:        activity,
	}, bot.Settings{
		Subreddit:          cfg.Reddit.Subreddit,
		HotLimit:           cfg.Bot.HotLimit,
		CommentLimit:       cfg.Bot.CommentLimit,
		NewPostProbability: cfg.Bot.NewPostProbability,
		RateLimitCooldown:  cfg.RateLimitCooldown(),
	})
	if err != nil {
		logrus.Fatalf("failed to create runner: %v", err)
	}

	rt := NewRuntime(runner, activity, cfg.Bot.RunHistory)
	scheduler := NewScheduler(rt, cfg.ScheduleInterval())
	service := NewBotService(rt, activity, relevance, redditClient, cfg.Reddit.Subreddit)
	app := NewAppServer(ctx, service, scheduler)

	logrus.WithFields(logrus.Fields{
		"subreddit":    cfg.Reddit.Subreddit,
		"username":     cfg.Reddit.Username,
		"text_backend": cfg.TextBackend,
		"interval":     cfg.ScheduleInterval().String(),
		"data_dir":     cfg.DataDir,
	}).Info("bot: starting")

	if !noScheduler {
		scheduler.Start(ctx)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- app.Start(cfg.HTTPAddr)
	}()

	select {
	case <-ctx.Done():
		logrus.Info("bot: shutting down")
	case err := <-errCh:
		if err != nil {
			logrus.Errorf("http server failed: %v", err)
		}
		stop()
	}

	rt.CancelInFlight()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := app.Shutdown(shutdownCtx); err != nil {
		logrus.Warnf("http shutdown: %v", err)
	}
	if !noScheduler {
		scheduler.Wait()
	}
	logrus.Info("bot: stopped")
}

func newRedditClient(cfg *configs.Config) (*reddit.Client, error) {
	pool, err := proxypool.NewPool(cfg.ProxyListPath())
	if err != nil {
		return nil, err
	}
	proxy, ok, err := pool.Resolve(cfg.Reddit.Proxy)
	if err != nil {
		return nil, err
	}
	opts := []httpclient.Option{httpclient.WithTimeout(time.Duration(cfg.Reddit.Timeout) * time.Millisecond)}
	if ok {
		logrus.WithFields(logrus.Fields{"proxy": proxy}).Info("reddit: using proxy")
		opts = append(opts, httpclient.WithProxy(proxy))
	}

	return reddit.NewClient(reddit.Credentials{
		ClientID:     cfg.Reddit.ClientID,
		ClientSecret: cfg.Reddit.ClientSecret,
		Username:     cfg.Reddit.Username,
		Password:     cfg.Reddit.Password,
		UserAgent:    cfg.Reddit.UserAgent,
	},
		reddit.WithHTTPClient(httpclient.New("reddit", opts...)),
		reddit.WithTokenCache(tokenstore.NewStore(cfg.TokenPath())),
		reddit.WithRequestsPerMinute(cfg.Reddit.RequestsPerMinute),
	)
}

func newTextGenerator(cfg *configs.Config) (generator.TextGenerator, error) {
	switch cfg.TextBackend {
	case configs.TextBackendDeepSeek:
		return generator.NewDeepSeek(
			cfg.DeepSeek.APIKey,
			cfg.DeepSeek.BaseURL,
			cfg.DeepSeek.Model,
			time.Duration(cfg.DeepSeek.Timeout)*time.Millisecond,
		), nil
	case configs.TextBackendHuggingFace:
		return generator.NewHuggingFace(
			cfg.HuggingFace.BaseURL,
			cfg.HuggingFace.TextModel,
			cfg.HuggingFace.APIToken,
			time.Duration(cfg.HuggingFace.Timeout)*time.Millisecond,
		), nil
	default:
		return nil, errors.New("unknown text backend " + cfg.TextBackend)
	}
}
