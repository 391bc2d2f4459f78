package main

import (
	"context"
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/samber/lo"
	"github.com/sirupsen/logrus"

	"github.com/lazyninja/reddit-influencer/bot"
	"github.com/lazyninja/reddit-influencer/classifier"
	"github.com/lazyninja/reddit-influencer/reddit"
)

const maxLogLines = 500

type LogReader interface {
	Tail(n int) ([]string, error)
}

type RelevanceChecker interface {
	Classify(ctx context.Context, text string, labels []string) (classifier.Result, error)
	Labels() []string
	Threshold() float64
}

type AccountChecker interface {
	Me(ctx context.Context) (*reddit.Account, error)
}

// BotService is what the dashboard and the MCP tools call into.
type BotService struct {
	runtime   *Runtime
	logs      LogReader
	relevance RelevanceChecker
	account   AccountChecker
	subreddit string
}

func NewBotService(runtime *Runtime, logs LogReader, relevance RelevanceChecker, account AccountChecker, subreddit string) *BotService {
	return &BotService{
		runtime:   runtime,
		logs:      logs,
		relevance: relevance,
		account:   account,
		subreddit: subreddit,
	}
}

type ActivityResponse struct {
	Lines  []string `json:"lines"`
	Exists bool     `json:"exists"`
}

type RelevanceResponse struct {
	Label     string  `json:"label"`
	Score     float64 `json:"score"`
	Threshold float64 `json:"threshold"`
	Relevant  bool    `json:"relevant"`
}

type AccountStatusResponse struct {
	Username     string `json:"username"`
	LinkKarma    int64  `json:"link_karma"`
	CommentKarma int64  `json:"comment_karma"`
	Subreddit    string `json:"subreddit"`
	CycleRunning bool   `json:"cycle_running"`
}

func (s *BotService) RunNow(ctx context.Context, trigger string) (RunSnapshot, error) {
	return s.runtime.RunCycle(ctx, trigger)
}

func (s *BotService) CreatePost(ctx context.Context, trigger, kind string) (RunSnapshot, error) {
	k, ok := bot.ParsePostKind(strings.ToLower(strings.TrimSpace(kind)))
	if !ok {
		names := lo.Map(bot.AllPostKinds, func(k bot.PostKind, _ int) string { return k.String() })
		return RunSnapshot{}, errors.Errorf("unknown post kind %q, expected one of %s", kind, strings.Join(names, ", "))
	}
	return s.runtime.CreatePost(ctx, trigger, k)
}

// Activity returns the last n activity log lines, n capped at 500. A missing
// log file is reported through Exists rather than as an error.
func (s *BotService) Activity(n int) (*ActivityResponse, error) {
	if n <= 0 {
		n = 50
	}
	if n > maxLogLines {
		n = maxLogLines
	}
	lines, err := s.logs.Tail(n)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &ActivityResponse{Lines: []string{}, Exists: false}, nil
		}
		return nil, err
	}
	return &ActivityResponse{Lines: lines, Exists: true}, nil
}

func (s *BotService) Runs(limit int) []RunSnapshot {
	return s.runtime.Runs.List(limit)
}

func (s *BotService) Run(id string) (RunSnapshot, bool) {
	return s.runtime.Runs.Snapshot(id)
}

func (s *BotService) CheckRelevance(ctx context.Context, text string, labels []string) (*RelevanceResponse, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, errors.New("text is empty")
	}
	if len(labels) == 0 {
		labels = s.relevance.Labels()
	}
	res, err := s.relevance.Classify(ctx, text, labels)
	if err != nil {
		return nil, err
	}
	out := &RelevanceResponse{
		Label:     res.Label,
		Score:     res.Score,
		Threshold: s.relevance.Threshold(),
	}
	out.Relevant = out.Score > out.Threshold
	logrus.WithFields(logrus.Fields{"label": out.Label, "score": out.Score, "relevant": out.Relevant}).Info("service: relevance checked")
	return out, nil
}

func (s *BotService) AccountStatus(ctx context.Context) (*AccountStatusResponse, error) {
	me, err := s.account.Me(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "fetch account")
	}
	return &AccountStatusResponse{
		Username:     me.Name,
		LinkKarma:    me.LinkKarma,
		CommentKarma: me.CommentKarma,
		Subreddit:    s.subreddit,
		CycleRunning: s.runtime.InFlight(),
	}, nil
}
