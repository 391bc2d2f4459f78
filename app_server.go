package main

import (
	"context"
	"errors"
	"html/template"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

const dashboardTail = 50

var dashboardTemplate = template.Must(template.New("dashboard").Parse(`<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>Reddit Bot Dashboard</title></head>
<body>
<h1>🟢 Reddit Bot Dashboard</h1>
{{if .Scheduler.Running}}<p><b>Scheduler is running every {{.Every}}.</b></p>{{else}}<p><b>Scheduler is stopped.</b></p>{{end}}
{{if .CycleRunning}}<p>A cycle is in progress.</p>{{end}}
<h2>Activity Log:</h2>
<div style="background-color:#f4f4f4; padding:10px; border:1px solid #ccc; max-height:300px; overflow:auto;">{{range $i, $line := .Lines}}{{if $i}}<br>{{end}}{{$line}}{{end}}</div>
<form action="/run-now" method="post">
<button type="submit">Run Bot Now</button>
</form>
</body>
</html>
`))

type dashboardData struct {
	Scheduler    SchedulerStatus
	Every        string
	CycleRunning bool
	Lines        []string
}

// AppServer serves the dashboard, the JSON API, metrics and MCP.
type AppServer struct {
	service    *BotService
	scheduler  *Scheduler
	mcpServer  *mcp.Server
	router     *gin.Engine
	httpServer *http.Server

	cycleCtx context.Context
}

func NewAppServer(ctx context.Context, service *BotService, scheduler *Scheduler) *AppServer {
	s := &AppServer{
		service:   service,
		scheduler: scheduler,
		cycleCtx:  ctx,
	}
	s.mcpServer = InitMCPServer(s)
	s.router = s.setupRoutes()
	return s
}

func (s *AppServer) setupRoutes() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger())

	r.GET("/", s.dashboardHandler)
	r.POST("/run-now", s.runNowHandler)
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	mcpHandler := mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server {
		return s.mcpServer
	}, nil)
	r.Any("/mcp", gin.WrapH(mcpHandler))
	r.Any("/mcp/*path", gin.WrapH(mcpHandler))

	api := r.Group("/api/v1")
	api.GET("/logs", s.logsHandler)
	api.GET("/runs", s.runsHandler)
	api.GET("/runs/:id", s.runHandler)
	api.POST("/runs", s.startRunHandler)
	api.GET("/scheduler", func(c *gin.Context) {
		c.JSON(http.StatusOK, s.scheduler.Status())
	})
	return r
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logrus.WithFields(logrus.Fields{
			"method":      c.Request.Method,
			"path":        c.Request.URL.Path,
			"status":      c.Writer.Status(),
			"duration_ms": int(time.Since(start) / time.Millisecond),
		}).Debug("http: request")
	}
}

func (s *AppServer) dashboardHandler(c *gin.Context) {
	act, err := s.service.Activity(dashboardTail)
	if err != nil {
		logrus.Errorf("dashboard: read activity log: %v", err)
		c.String(http.StatusInternalServerError, "failed to read activity log")
		return
	}
	lines := act.Lines
	if !act.Exists {
		lines = []string{"No log data yet."}
	}
	status := s.scheduler.Status()
	data := dashboardData{
		Scheduler:    status,
		Every:        humanInterval(status.Interval),
		CycleRunning: s.service.runtime.InFlight(),
		Lines:        lines,
	}
	c.Status(http.StatusOK)
	c.Header("Content-Type", "text/html; charset=utf-8")
	if err := dashboardTemplate.Execute(c.Writer, data); err != nil {
		logrus.Errorf("dashboard: render: %v", err)
	}
}

// runNowHandler runs a cycle before redirecting, so the page reloads with
// the cycle's log lines.
func (s *AppServer) runNowHandler(c *gin.Context) {
	_, err := s.service.RunNow(s.cycleContext(), "manual")
	if err != nil && !errors.Is(err, ErrCycleInFlight) {
		logrus.Warnf("dashboard: manual cycle failed: %v", err)
	}
	c.Redirect(http.StatusSeeOther, "/")
}

func (s *AppServer) startRunHandler(c *gin.Context) {
	snap, err := s.service.RunNow(s.cycleContext(), "api")
	switch {
	case errors.Is(err, ErrCycleInFlight):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error(), "run": snap})
	default:
		c.JSON(http.StatusOK, snap)
	}
}

// cycleContext outlives the request: a client closing the page does not
// abort the cycle, only server shutdown does.
func (s *AppServer) cycleContext() context.Context {
	if s.cycleCtx == nil {
		return context.Background()
	}
	return s.cycleCtx
}

func (s *AppServer) logsHandler(c *gin.Context) {
	n, err := strconv.Atoi(c.DefaultQuery("lines", strconv.Itoa(dashboardTail)))
	if err != nil || n <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "lines must be a positive integer"})
		return
	}
	act, err := s.service.Activity(n)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, act)
}

func (s *AppServer) runsHandler(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	c.JSON(http.StatusOK, gin.H{"runs": s.service.Runs(limit)})
}

func (s *AppServer) runHandler(c *gin.Context) {
	snap, ok := s.service.Run(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "run not found"})
		return
	}
	c.JSON(http.StatusOK, snap)
}

func (s *AppServer) Start(addr string) error {
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	logrus.Infof("http: listening on %s", addr)
	err := s.httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *AppServer) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

func humanInterval(d time.Duration) string {
	switch {
	case d == time.Hour:
		return "hour"
	case d%time.Hour == 0:
		return strconv.Itoa(int(d/time.Hour)) + " hours"
	case d%time.Minute == 0:
		return strconv.Itoa(int(d/time.Minute)) + " minutes"
	default:
		return d.String()
	}
}
