package classifier

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/samber/lo"
	"github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"

	"github.com/lazyninja/reddit-influencer/generator"
	"github.com/lazyninja/reddit-influencer/pkg/httpclient"
)

const DefaultThreshold = 0.5

var DefaultLabels = []string{"web development", "javascript", "career advice"}

// Result is the best-scoring candidate label.
type Result struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

type Classifier interface {
	IsRelevant(ctx context.Context, text string) (bool, error)
}

// ZeroShot ranks candidate labels with a hosted zero-shot classification
// model. Text is relevant when the top label scores strictly above the
// threshold.
type ZeroShot struct {
	baseURL   string
	model     string
	token     string
	labels    []string
	threshold float64
	client    *http.Client
}

type Option func(*ZeroShot)

func WithLabels(labels []string) Option {
	return func(z *ZeroShot) {
		labels = lo.Uniq(lo.Compact(lo.Map(labels, func(l string, _ int) string {
			return strings.TrimSpace(l)
		})))
		if len(labels) > 0 {
			z.labels = labels
		}
	}
}

func WithThreshold(threshold float64) Option {
	return func(z *ZeroShot) {
		z.threshold = threshold
	}
}

func WithHTTPClient(c *http.Client) Option {
	return func(z *ZeroShot) {
		z.client = c
	}
}

func NewZeroShot(baseURL, model, token string, timeout time.Duration, options ...Option) *ZeroShot {
	if baseURL == "" {
		baseURL = generator.DefaultHuggingFaceURL
	}
	z := &ZeroShot{
		baseURL:   baseURL,
		model:     model,
		token:     token,
		labels:    DefaultLabels,
		threshold: DefaultThreshold,
	}
	for _, opt := range options {
		opt(z)
	}
	if z.client == nil {
		hopts := []httpclient.Option{httpclient.WithRetryPolicy(httpclient.NoRateLimitRetryPolicy)}
		if timeout > 0 {
			hopts = append(hopts, httpclient.WithTimeout(timeout))
		}
		z.client = httpclient.New("classifier", hopts...)
	}
	return z
}

func (z *ZeroShot) Labels() []string {
	return append([]string(nil), z.labels...)
}

func (z *ZeroShot) Threshold() float64 {
	return z.threshold
}

func (z *ZeroShot) IsRelevant(ctx context.Context, text string) (bool, error) {
	res, err := z.Classify(ctx, text, z.labels)
	if err != nil {
		return false, err
	}
	relevant := res.Score > z.threshold
	logrus.WithFields(logrus.Fields{
		"label":    res.Label,
		"score":    res.Score,
		"relevant": relevant,
	}).Debug("classifier: best label")
	return relevant, nil
}

type zeroShotRequest struct {
	Inputs     string             `json:"inputs"`
	Parameters zeroShotParameters `json:"parameters"`
	Options    struct {
		WaitForModel bool `json:"wait_for_model"`
	} `json:"options"`
}

type zeroShotParameters struct {
	CandidateLabels []string `json:"candidate_labels"`
	MultiLabel      bool     `json:"multi_label"`
}

// Classify returns the top label among labels for text. Blank text scores
// zero without a model call.
func (z *ZeroShot) Classify(ctx context.Context, text string, labels []string) (Result, error) {
	if len(labels) == 0 {
		labels = z.labels
	}
	if strings.TrimSpace(text) == "" {
		return Result{}, nil
	}
	req := zeroShotRequest{
		Inputs:     text,
		Parameters: zeroShotParameters{CandidateLabels: labels},
	}
	req.Options.WaitForModel = true

	data, err := generator.PostInference(ctx, z.client, z.baseURL, z.model, z.token, req)
	if err != nil {
		return Result{}, errors.Wrap(err, "zero-shot classification")
	}
	return parseResult(data)
}

// parseResult accepts both the object form {labels, scores} and the list
// form [{label, score}, ...] returned by newer inference routers.
func parseResult(data []byte) (Result, error) {
	root := gjson.ParseBytes(data)
	if root.IsArray() && root.Get("0.label").Exists() {
		items := root.Array()
		best := lo.MaxBy(items, func(a, b gjson.Result) bool {
			return a.Get("score").Float() > b.Get("score").Float()
		})
		return Result{Label: best.Get("label").String(), Score: best.Get("score").Float()}, nil
	}
	if root.IsArray() {
		root = root.Get("0")
	}
	labels := root.Get("labels").Array()
	scores := root.Get("scores").Array()
	if len(labels) == 0 || len(labels) != len(scores) {
		return Result{}, errors.Errorf("unexpected zero-shot response: %.200s", string(data))
	}
	best := 0
	for i := range scores {
		if scores[i].Float() > scores[best].Float() {
			best = i
		}
	}
	return Result{Label: labels[best].String(), Score: scores[best].Float()}, nil
}
