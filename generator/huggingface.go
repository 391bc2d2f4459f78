package generator

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"

	"github.com/lazyninja/reddit-influencer/pkg/httpclient"
)

const DefaultHuggingFaceURL = "https://api-inference.huggingface.co"

// HuggingFace calls the hosted Inference API text-generation task.
type HuggingFace struct {
	baseURL string
	model   string
	token   string
	client  *http.Client
}

func NewHuggingFace(baseURL, model, token string, timeout time.Duration) *HuggingFace {
	if baseURL == "" {
		baseURL = DefaultHuggingFaceURL
	}
	opts := []httpclient.Option{httpclient.WithRetryPolicy(httpclient.NoRateLimitRetryPolicy)}
	if timeout > 0 {
		opts = append(opts, httpclient.WithTimeout(timeout))
	}
	return &HuggingFace{
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   model,
		token:   token,
		client:  httpclient.New("huggingface", opts...),
	}
}

type hfTextRequest struct {
	Inputs     string           `json:"inputs"`
	Parameters hfTextParameters `json:"parameters"`
	Options    hfOptions        `json:"options"`
}

type hfTextParameters struct {
	MaxNewTokens   int     `json:"max_new_tokens,omitempty"`
	Temperature    float64 `json:"temperature,omitempty"`
	TopP           float64 `json:"top_p,omitempty"`
	DoSample       bool    `json:"do_sample"`
	ReturnFullText bool    `json:"return_full_text"`
}

type hfOptions struct {
	WaitForModel bool `json:"wait_for_model"`
}

func (h *HuggingFace) GenerateText(ctx context.Context, prompt string, opts TextOptions) (string, error) {
	req := hfTextRequest{
		Inputs: prompt,
		Parameters: hfTextParameters{
			MaxNewTokens:   opts.MaxTokens,
			Temperature:    opts.Temperature,
			TopP:           opts.TopP,
			DoSample:       true,
			ReturnFullText: true,
		},
		Options: hfOptions{WaitForModel: true},
	}
	data, err := PostInference(ctx, h.client, h.baseURL, h.model, h.token, req)
	if err != nil {
		return "", err
	}

	generated := gjson.GetBytes(data, "0.generated_text")
	if !generated.Exists() {
		generated = gjson.GetBytes(data, "generated_text")
	}
	if !generated.Exists() {
		return "", errors.Errorf("unexpected text-generation response: %.200s", string(data))
	}
	text := StripPrompt(generated.String(), prompt)
	if text == "" {
		return "", ErrEmptyOutput
	}
	logrus.WithFields(logrus.Fields{"model": h.model, "chars": len(text)}).Debug("generator: text generated")
	return text, nil
}

// PostInference posts a JSON payload to the Inference API model endpoint
// and returns the raw response body.
func PostInference(ctx context.Context, client *http.Client, baseURL, model, token string, payload any) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, errors.Wrap(err, "encode inference request")
	}
	endpoint := strings.TrimRight(baseURL, "/") + "/models/" + model
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrap(err, "build inference request")
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "call model %s", model)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrapf(err, "read model %s response", model)
	}
	if resp.StatusCode != http.StatusOK {
		msg := gjson.GetBytes(data, "error").String()
		if msg == "" {
			msg = strings.TrimSpace(string(data))
		}
		return nil, errors.Errorf("model %s returned %d: %s", model, resp.StatusCode, msg)
	}
	return data, nil
}
