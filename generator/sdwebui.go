package generator

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/h2non/filetype"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/lazyninja/reddit-influencer/pkg/httpclient"
)

const DefaultSDWebUIURL = "http://127.0.0.1:7860"

type txt2ImgRequest struct {
	Prompt      string  `json:"prompt"`
	NegPrompt   string  `json:"negative_prompt,omitempty"`
	SamplerName string  `json:"sampler_name,omitempty"`
	Steps       int     `json:"steps,omitempty"`
	Width       int     `json:"width,omitempty"`
	Height      int     `json:"height,omitempty"`
	BatchSize   int     `json:"batch_size,omitempty"`
	CFGScale    float64 `json:"cfg_scale,omitempty"`
	SendImages  bool    `json:"send_images"`
	SaveImages  bool    `json:"save_images,omitempty"`
}

type txt2ImgResponse struct {
	Images []string `json:"images"`
	Info   string   `json:"info"`
}

type SDWebUIOptions struct {
	URL      string
	Steps    int
	Width    int
	Height   int
	Timeout  time.Duration
	MaxBytes int64
}

// SDWebUI renders images through a Stable Diffusion WebUI txt2img endpoint
// and writes the result to a fixed file.
type SDWebUI struct {
	opts   SDWebUIOptions
	path   string
	client *http.Client
}

func NewSDWebUI(path string, opts SDWebUIOptions) *SDWebUI {
	if opts.URL == "" {
		opts.URL = DefaultSDWebUIURL
	}
	opts.URL = strings.TrimRight(opts.URL, "/")
	hopts := []httpclient.Option{
		httpclient.WithRetryPolicy(httpclient.NoRateLimitRetryPolicy),
		httpclient.WithMaxRetries(1),
	}
	if opts.Timeout > 0 {
		hopts = append(hopts, httpclient.WithTimeout(opts.Timeout))
	}
	return &SDWebUI{
		opts:   opts,
		path:   path,
		client: httpclient.New("sdwebui", hopts...),
	}
}

func (s *SDWebUI) Path() string {
	return s.path
}

func (s *SDWebUI) GenerateImage(ctx context.Context, prompt string) (string, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return "", errors.New("image prompt is empty")
	}
	arg := txt2ImgRequest{
		Prompt:      prompt,
		SamplerName: "Euler a",
		Steps:       s.opts.Steps,
		Width:       s.opts.Width,
		Height:      s.opts.Height,
		BatchSize:   1,
		CFGScale:    7,
		SendImages:  true,
	}
	data, err := json.Marshal(arg)
	if err != nil {
		return "", errors.Wrap(err, "encode txt2img request")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.opts.URL+"/sdapi/v1/txt2img", bytes.NewReader(data))
	if err != nil {
		return "", errors.Wrap(err, "build txt2img request")
	}
	req.Header.Set("Content-Type", "application/json")

	logrus.WithFields(logrus.Fields{"steps": s.opts.Steps, "width": s.opts.Width, "height": s.opts.Height}).Info("generator: rendering image")
	resp, err := s.client.Do(req)
	if err != nil {
		return "", errors.Wrap(err, "call txt2img")
	}
	defer func() { _ = resp.Body.Close() }()
	data, err = io.ReadAll(resp.Body)
	if err != nil {
		return "", errors.Wrap(err, "read txt2img response")
	}
	if resp.StatusCode != http.StatusOK {
		return "", errors.Errorf("txt2img returned %d: %.200s", resp.StatusCode, strings.TrimSpace(string(data)))
	}

	var result txt2ImgResponse
	if err := json.Unmarshal(data, &result); err != nil {
		return "", errors.Wrap(err, "decode txt2img response")
	}
	if len(result.Images) == 0 {
		return "", errors.New("txt2img returned no images")
	}
	encoded := result.Images[0]
	// Some WebUI builds prefix a data URI.
	if i := strings.Index(encoded, ","); i >= 0 && strings.HasPrefix(encoded, "data:") {
		encoded = encoded[i+1:]
	}
	img, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", errors.Wrap(err, "decode image")
	}
	if s.opts.MaxBytes > 0 && int64(len(img)) > s.opts.MaxBytes {
		return "", errors.Errorf("generated image is %d bytes, limit is %d", len(img), s.opts.MaxBytes)
	}
	if !filetype.IsImage(img) {
		return "", errors.New("txt2img returned data that is not an image")
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return "", errors.Wrap(err, "create image dir")
	}
	if err := os.WriteFile(s.path, img, 0644); err != nil {
		return "", errors.Wrap(err, "write image")
	}
	logrus.WithFields(logrus.Fields{"path": s.path, "bytes": len(img)}).Info("generator: image saved")
	return s.path, nil
}
