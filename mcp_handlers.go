package main

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/sirupsen/logrus"
)

func jsonResult(v any, isError bool) *MCPToolResult {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return textResult("failed to encode result: "+err.Error(), true)
	}
	return textResult(string(data), isError)
}

func (s *AppServer) handleRunCycle(ctx context.Context) *MCPToolResult {
	_ = ctx
	logrus.Info("mcp: run_cycle")
	snap, err := s.service.RunNow(s.cycleContext(), "mcp")
	if errors.Is(err, ErrCycleInFlight) {
		return textResult("A cycle is already in progress, try again later.", true)
	}
	return jsonResult(snap, err != nil)
}

func (s *AppServer) handleCreatePost(ctx context.Context, args CreatePostArgs) *MCPToolResult {
	_ = ctx
	if strings.TrimSpace(args.Kind) == "" {
		return textResult("missing kind", true)
	}
	logrus.WithFields(logrus.Fields{"kind": args.Kind}).Info("mcp: create_post")
	snap, err := s.service.CreatePost(s.cycleContext(), "mcp", args.Kind)
	switch {
	case errors.Is(err, ErrCycleInFlight):
		return textResult("A cycle is already in progress, try again later.", true)
	case err != nil && snap.ID == "":
		return textResult("create post failed: "+err.Error(), true)
	}
	isError := err != nil || snap.Report == nil || !snap.Report.PostSubmitted
	return jsonResult(snap, isError)
}

func (s *AppServer) handleGetActivityLog(ctx context.Context, args ActivityLogArgs) *MCPToolResult {
	_ = ctx
	act, err := s.service.Activity(args.Lines)
	if err != nil {
		return textResult("failed to read activity log: "+err.Error(), true)
	}
	if !act.Exists {
		return textResult("No log data yet.", false)
	}
	return textResult(strings.Join(act.Lines, "\n"), false)
}

func (s *AppServer) handleListRuns(ctx context.Context, args ListRunsArgs) *MCPToolResult {
	_ = ctx
	runs := s.service.Runs(args.Limit)
	return jsonResult(map[string]any{"runs": runs, "scheduler": s.scheduler.Status()}, false)
}

func (s *AppServer) handleCheckRelevance(ctx context.Context, args CheckRelevanceArgs) *MCPToolResult {
	res, err := s.service.CheckRelevance(ctx, args.Text, args.Labels)
	if err != nil {
		return textResult("classification failed: "+err.Error(), true)
	}
	return jsonResult(res, false)
}

func (s *AppServer) handleCheckAccount(ctx context.Context) *MCPToolResult {
	res, err := s.service.AccountStatus(ctx)
	if err != nil {
		return textResult("account check failed: "+err.Error(), true)
	}
	return jsonResult(res, false)
}
