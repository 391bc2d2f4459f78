package main

import (
	"context"
	"fmt"
	"runtime/debug"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sirupsen/logrus"
)

func boolPtr(b bool) *bool { return &b }

type RunCycleArgs struct{}

type CreatePostArgs struct {
	Kind string `json:"kind" jsonschema:"post kind: tip, promo, question or image"`
}

type ActivityLogArgs struct {
	Lines int `json:"lines,omitempty" jsonschema:"number of trailing lines to return, default 50, max 500"`
}

type ListRunsArgs struct {
	Limit int `json:"limit,omitempty" jsonschema:"maximum number of runs to return, newest first"`
}

type CheckRelevanceArgs struct {
	Text   string   `json:"text" jsonschema:"post or comment text to classify"`
	Labels []string `json:"labels,omitempty" jsonschema:"candidate labels, defaults to the configured topics"`
}

type CheckAccountArgs struct{}

// MCPToolResult is the transport-independent result every handler returns.
type MCPToolResult struct {
	Content []MCPContent `json:"content"`
	IsError bool         `json:"isError,omitempty"`
}

type MCPContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

func textResult(text string, isError bool) *MCPToolResult {
	return &MCPToolResult{Content: []MCPContent{{Type: "text", Text: text}}, IsError: isError}
}

func InitMCPServer(appServer *AppServer) *mcp.Server {
	server := mcp.NewServer(
		&mcp.Implementation{
			Name:    "reddit-influencer",
			Version: "1.0.0",
		},
		nil,
	)

	registerTools(server, appServer)

	logrus.Info("mcp: server initialized")
	return server
}

func withPanicRecovery[T any](
	toolName string,
	handler func(context.Context, *mcp.CallToolRequest, T) (*mcp.CallToolResult, any, error),
) func(context.Context, *mcp.CallToolRequest, T) (*mcp.CallToolResult, any, error) {

	return func(ctx context.Context, req *mcp.CallToolRequest, args T) (result *mcp.CallToolResult, resp any, err error) {
		defer func() {
			if r := recover(); r != nil {
				logrus.WithFields(logrus.Fields{
					"tool":  toolName,
					"panic": r,
				}).Error("mcp: tool handler panicked")
				logrus.Errorf("Stack trace:\n%s", debug.Stack())

				result = &mcp.CallToolResult{
					Content: []mcp.Content{
						&mcp.TextContent{
							Text: fmt.Sprintf("tool %s failed with an internal error: %v", toolName, r),
						},
					},
					IsError: true,
				}
				resp = nil
				err = nil
			}
		}()

		return handler(ctx, req, args)
	}
}

func registerTools(server *mcp.Server, appServer *AppServer) {
	mcp.AddTool(server,
		&mcp.Tool{
			Name:        "run_cycle",
			Description: "Run one bot cycle now: maybe post, then classify hot posts and comment or upvote. Blocks until the cycle ends.",
			Annotations: &mcp.ToolAnnotations{
				Title:           "Run Cycle",
				DestructiveHint: boolPtr(true),
			},
		},
		withPanicRecovery("run_cycle", func(ctx context.Context, req *mcp.CallToolRequest, args RunCycleArgs) (*mcp.CallToolResult, any, error) {
			result := appServer.handleRunCycle(ctx)
			return convertToMCPResult(result), nil, nil
		}),
	)

	mcp.AddTool(server,
		&mcp.Tool{
			Name:        "create_post",
			Description: "Generate and submit one post of the given kind to the configured subreddit",
			Annotations: &mcp.ToolAnnotations{
				Title:           "Create Post",
				DestructiveHint: boolPtr(true),
			},
		},
		withPanicRecovery("create_post", func(ctx context.Context, req *mcp.CallToolRequest, args CreatePostArgs) (*mcp.CallToolResult, any, error) {
			result := appServer.handleCreatePost(ctx, args)
			return convertToMCPResult(result), nil, nil
		}),
	)

	mcp.AddTool(server,
		&mcp.Tool{
			Name:        "get_activity_log",
			Description: "Return the trailing lines of the activity log",
			Annotations: &mcp.ToolAnnotations{
				Title:        "Get Activity Log",
				ReadOnlyHint: true,
			},
		},
		withPanicRecovery("get_activity_log", func(ctx context.Context, req *mcp.CallToolRequest, args ActivityLogArgs) (*mcp.CallToolResult, any, error) {
			result := appServer.handleGetActivityLog(ctx, args)
			return convertToMCPResult(result), nil, nil
		}),
	)

	mcp.AddTool(server,
		&mcp.Tool{
			Name:        "list_runs",
			Description: "List recent cycles with their status and summary",
			Annotations: &mcp.ToolAnnotations{
				Title:        "List Runs",
				ReadOnlyHint: true,
			},
		},
		withPanicRecovery("list_runs", func(ctx context.Context, req *mcp.CallToolRequest, args ListRunsArgs) (*mcp.CallToolResult, any, error) {
			result := appServer.handleListRuns(ctx, args)
			return convertToMCPResult(result), nil, nil
		}),
	)

	mcp.AddTool(server,
		&mcp.Tool{
			Name:        "check_relevance",
			Description: "Classify text against the topic labels and report whether the bot would engage with it",
			Annotations: &mcp.ToolAnnotations{
				Title:        "Check Relevance",
				ReadOnlyHint: true,
			},
		},
		withPanicRecovery("check_relevance", func(ctx context.Context, req *mcp.CallToolRequest, args CheckRelevanceArgs) (*mcp.CallToolResult, any, error) {
			result := appServer.handleCheckRelevance(ctx, args)
			return convertToMCPResult(result), nil, nil
		}),
	)

	mcp.AddTool(server,
		&mcp.Tool{
			Name:        "check_account",
			Description: "Verify the Reddit credentials and show the account karma",
			Annotations: &mcp.ToolAnnotations{
				Title:        "Check Account",
				ReadOnlyHint: true,
			},
		},
		withPanicRecovery("check_account", func(ctx context.Context, req *mcp.CallToolRequest, args CheckAccountArgs) (*mcp.CallToolResult, any, error) {
			result := appServer.handleCheckAccount(ctx)
			return convertToMCPResult(result), nil, nil
		}),
	)

	logrus.Infof("mcp: registered %d tools", 6)
}

func convertToMCPResult(result *MCPToolResult) *mcp.CallToolResult {
	var contents []mcp.Content
	for _, c := range result.Content {
		if c.Type == "text" {
			contents = append(contents, &mcp.TextContent{Text: c.Text})
		}
	}
	return &mcp.CallToolResult{
		Content: contents,
		IsError: result.IsError,
	}
}
