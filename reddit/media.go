package reddit

import (
	"bytes"
	"context"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/h2non/filetype"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"
)

// uploadMedia leases an upload slot from Reddit, posts the file to the
// returned bucket and yields the public asset URL.
func (c *Client) uploadMedia(ctx context.Context, imagePath string) (string, error) {
	data, err := os.ReadFile(imagePath)
	if err != nil {
		return "", errors.Wrap(err, "read image")
	}
	kind, err := filetype.Match(data)
	if err != nil || !filetype.IsImage(data) {
		return "", errors.Errorf("%s is not an image", imagePath)
	}
	name := filepath.Base(imagePath)

	form := url.Values{}
	form.Set("filepath", name)
	form.Set("mimetype", kind.MIME.Value)
	lease, err := c.do(ctx, http.MethodPost, "/api/media/asset.json", nil, form)
	if err != nil {
		return "", errors.Wrap(err, "lease media upload")
	}

	action := gjson.GetBytes(lease, "args.action").String()
	if action == "" {
		return "", errors.New("media lease returned no upload action")
	}
	if strings.HasPrefix(action, "//") {
		action = "https:" + action
	}

	var key string
	var fields [][2]string
	for _, f := range gjson.GetBytes(lease, "args.fields").Array() {
		n, v := f.Get("name").String(), f.Get("value").String()
		if n == "key" {
			key = v
		}
		fields = append(fields, [2]string{n, v})
	}
	if key == "" {
		return "", errors.New("media lease returned no object key")
	}

	body, contentType, err := multipartBody(fields, name, data)
	if err != nil {
		return "", err
	}

	err = retry.Do(
		func() error {
			return c.postUpload(ctx, action, contentType, body)
		},
		retry.Context(ctx),
		retry.Attempts(3),
		retry.Delay(time.Second),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			logrus.WithFields(logrus.Fields{"attempt": n + 1, "file": name}).Warnf("reddit: media upload failed: %v", err)
		}),
	)
	if err != nil {
		return "", errors.Wrap(err, "upload media")
	}

	assetURL := strings.TrimRight(action, "/") + "/" + key
	logrus.WithFields(logrus.Fields{"file": name, "mime": kind.MIME.Value, "url": assetURL}).Info("reddit: media uploaded")
	return assetURL, nil
}

func (c *Client) postUpload(ctx context.Context, action, contentType string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, action, bytes.NewReader(body))
	if err != nil {
		return retry.Unrecoverable(err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("User-Agent", c.creds.UserAgent)
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		statusErr := &StatusError{StatusCode: resp.StatusCode, Body: string(respBody)}
		if resp.StatusCode >= 400 && resp.StatusCode < 500 {
			return retry.Unrecoverable(statusErr)
		}
		return statusErr
	}
	return nil
}

func multipartBody(fields [][2]string, fileName string, data []byte) ([]byte, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for _, f := range fields {
		if err := w.WriteField(f[0], f[1]); err != nil {
			return nil, "", errors.Wrap(err, "write upload field")
		}
	}
	fw, err := w.CreateFormFile("file", fileName)
	if err != nil {
		return nil, "", errors.Wrap(err, "create upload file part")
	}
	if _, err := fw.Write(data); err != nil {
		return nil, "", errors.Wrap(err, "write upload file part")
	}
	if err := w.Close(); err != nil {
		return nil, "", errors.Wrap(err, "close upload body")
	}
	return buf.Bytes(), w.FormDataContentType(), nil
}
