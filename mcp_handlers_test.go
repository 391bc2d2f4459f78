package main

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"github.com/lazyninja/reddit-influencer/bot"
)

func TestHandleRunCycle(t *testing.T) {
	a := newTestApp(t)
	a.runner.report = &bot.Report{HotPosts: 5, Upvotes: 2}

	res := a.app.handleRunCycle(context.Background())
	require.False(t, res.IsError)
	var snap RunSnapshot
	require.NoError(t, json.Unmarshal([]byte(res.Content[0].Text), &snap))
	require.Equal(t, "mcp", snap.Trigger)
	require.Equal(t, 2, snap.Report.Upvotes)
}

func TestHandleRunCycle_InFlight(t *testing.T) {
	a := newTestApp(t)
	a.runner.block = make(chan struct{})
	a.runner.started = make(chan struct{}, 1)

	done := make(chan struct{})
	go func() {
		_, _ = a.app.service.RunNow(context.Background(), "schedule")
		close(done)
	}()
	<-a.runner.started

	res := a.app.handleRunCycle(context.Background())
	require.True(t, res.IsError)
	require.Contains(t, res.Content[0].Text, "already in progress")

	close(a.runner.block)
	<-done
}

func TestHandleCreatePost(t *testing.T) {
	a := newTestApp(t)

	res := a.app.handleCreatePost(context.Background(), CreatePostArgs{Kind: "Image"})
	require.False(t, res.IsError, res.Content[0].Text)
	require.Equal(t, []bot.PostKind{bot.PostKindImage}, a.runner.kinds)

	res = a.app.handleCreatePost(context.Background(), CreatePostArgs{Kind: "meme"})
	require.True(t, res.IsError)
	require.Contains(t, res.Content[0].Text, "tip, promo, question, image")

	res = a.app.handleCreatePost(context.Background(), CreatePostArgs{})
	require.True(t, res.IsError)
}

func TestHandleGetActivityLog(t *testing.T) {
	a := newTestApp(t)
	res := a.app.handleGetActivityLog(context.Background(), ActivityLogArgs{})
	require.False(t, res.IsError)
	require.Equal(t, "No log data yet.", res.Content[0].Text)

	a.log.Write("Upvoted post.")
	a.log.Write("Post not relevant, skipping.")
	res = a.app.handleGetActivityLog(context.Background(), ActivityLogArgs{Lines: 1})
	require.True(t, strings.HasSuffix(res.Content[0].Text, "Post not relevant, skipping."))
	require.NotContains(t, res.Content[0].Text, "Upvoted post.")
}

func TestHandleListRuns(t *testing.T) {
	a := newTestApp(t)
	_, err := a.app.service.RunNow(context.Background(), "manual")
	require.NoError(t, err)

	res := a.app.handleListRuns(context.Background(), ListRunsArgs{Limit: 10})
	require.False(t, res.IsError)
	var out struct {
		Runs []RunSnapshot `json:"runs"`
	}
	require.NoError(t, json.Unmarshal([]byte(res.Content[0].Text), &out))
	require.Len(t, out.Runs, 1)
}

func TestHandleCheckRelevance(t *testing.T) {
	a := newTestApp(t)
	res := a.app.handleCheckRelevance(context.Background(), CheckRelevanceArgs{Text: "closures in js"})
	require.False(t, res.IsError)
	var out RelevanceResponse
	require.NoError(t, json.Unmarshal([]byte(res.Content[0].Text), &out))
	require.True(t, out.Relevant)
	require.Equal(t, "javascript", out.Label)
	require.Len(t, a.relevance.labels, 3)

	res = a.app.handleCheckRelevance(context.Background(), CheckRelevanceArgs{Text: "  "})
	require.True(t, res.IsError)

	a.relevance.err = errors.New("model loading")
	res = a.app.handleCheckRelevance(context.Background(), CheckRelevanceArgs{Text: "x"})
	require.True(t, res.IsError)
	require.Contains(t, res.Content[0].Text, "model loading")
}

func TestHandleCheckAccount(t *testing.T) {
	a := newTestApp(t)
	res := a.app.handleCheckAccount(context.Background())
	require.False(t, res.IsError)
	var out AccountStatusResponse
	require.NoError(t, json.Unmarshal([]byte(res.Content[0].Text), &out))
	require.Equal(t, "AiLazyNinja", out.Username)
	require.Equal(t, "webdev", out.Subreddit)
}

func TestWithPanicRecovery(t *testing.T) {
	h := withPanicRecovery("explode", func(ctx context.Context, req *mcp.CallToolRequest, args RunCycleArgs) (*mcp.CallToolResult, any, error) {
		panic("kaboom")
	})
	res, _, err := h(context.Background(), nil, RunCycleArgs{})
	require.NoError(t, err)
	require.True(t, res.IsError)
	text, ok := res.Content[0].(*mcp.TextContent)
	require.True(t, ok)
	require.Contains(t, text.Text, "kaboom")
}
