package main

import (
	"context"
	"errors"
	"flag"
	"io/fs"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/lazyninja/reddit-influencer/configs"
	"github.com/lazyninja/reddit-influencer/modules/proxypool"
	"github.com/lazyninja/reddit-influencer/modules/tokenstore"
	"github.com/lazyninja/reddit-influencer/pkg/httpclient"
	"github.com/lazyninja/reddit-influencer/reddit"
)

// login performs the password grant once, caches the token in the data dir
// and prints the account it belongs to.
func main() {
	var (
		cfgPath string
		proxy   string
		reset   bool
	)
	flag.StringVar(&cfgPath, "cfg", "", "optional TOML config file")
	flag.StringVar(&proxy, "proxy", "", "proxy index in proxies.txt or proxy URL, overrides BOT_PROXY")
	flag.BoolVar(&reset, "reset", false, "delete the cached token before logging in")
	flag.Parse()

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		logrus.Warnf("failed to load .env: %v", err)
	}
	cfg, err := configs.Load(cfgPath)
	if err != nil {
		logrus.Fatalf("failed to load config: %v", err)
	}
	if proxy != "" {
		cfg.Reddit.Proxy = proxy
	}

	pool, err := proxypool.NewPool(cfg.ProxyListPath())
	if err != nil {
		logrus.Fatalf("failed to load proxies.txt: %v", err)
	}
	opts := []httpclient.Option{httpclient.WithTimeout(time.Duration(cfg.Reddit.Timeout) * time.Millisecond)}
	if p, ok, err := pool.Resolve(cfg.Reddit.Proxy); err != nil {
		logrus.Fatalf("failed to resolve proxy: %v", err)
	} else if ok {
		opts = append(opts, httpclient.WithProxy(p))
	}

	store := tokenstore.NewStore(cfg.TokenPath())
	if reset {
		if err := store.Delete(); err != nil {
			logrus.Fatalf("failed to delete cached token: %v", err)
		}
	}

	client, err := reddit.NewClient(reddit.Credentials{
		ClientID:     cfg.Reddit.ClientID,
		ClientSecret: cfg.Reddit.ClientSecret,
		Username:     cfg.Reddit.Username,
		Password:     cfg.Reddit.Password,
		UserAgent:    cfg.Reddit.UserAgent,
	},
		reddit.WithHTTPClient(httpclient.New("reddit", opts...)),
		reddit.WithTokenCache(store),
	)
	if err != nil {
		logrus.Fatalf("failed to create reddit client: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	tok, err := client.Login(ctx)
	if err != nil {
		logrus.Fatalf("login failed: %v", err)
	}
	me, err := client.Me(ctx)
	if err != nil {
		logrus.Fatalf("failed to fetch account: %v", err)
	}
	logrus.WithFields(logrus.Fields{
		"username":      me.Name,
		"link_karma":    me.LinkKarma,
		"comment_karma": me.CommentKarma,
		"scope":         tok.Scope,
		"expires_at":    tok.ExpiresAt.Format(time.RFC3339),
		"token_file":    store.Path(),
	}).Info("login ok")
}
