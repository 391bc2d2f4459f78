package classifier

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func zeroShotServer(t *testing.T, body string, got *zeroShotRequest) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/models/facebook/bart-large-mnli", r.URL.Path)
		if got != nil {
			assert.NoError(t, json.NewDecoder(r.Body).Decode(got))
		}
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestZeroShot_Threshold(t *testing.T) {
	cases := []struct {
		score float64
		want  bool
	}{
		{0.9, true},
		{0.51, true},
		{0.5, false},
		{0.2, false},
	}
	for _, tc := range cases {
		t.Run(fmt.Sprint(tc.score), func(t *testing.T) {
			body := fmt.Sprintf(`{"sequence":"x","labels":["javascript","web development","career advice"],"scores":[%v,0.05,0.01]}`, tc.score)
			srv := zeroShotServer(t, body, nil)
			z := NewZeroShot(srv.URL, "facebook/bart-large-mnli", "", time.Second)
			ok, err := z.IsRelevant(context.Background(), "How do I center a div?")
			require.NoError(t, err)
			require.Equal(t, tc.want, ok)
		})
	}
}

func TestZeroShot_BlankTextIsNotRelevant(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	t.Cleanup(srv.Close)
	z := NewZeroShot(srv.URL, "facebook/bart-large-mnli", "", time.Second)

	for _, text := range []string{"", "   ", "\n\t"} {
		ok, err := z.IsRelevant(context.Background(), text)
		require.NoError(t, err)
		require.False(t, ok)
	}
	require.Zero(t, atomic.LoadInt32(&hits))
}

func TestZeroShot_SendsCandidateLabels(t *testing.T) {
	var got zeroShotRequest
	srv := zeroShotServer(t, `{"labels":["career advice"],"scores":[0.7]}`, &got)
	z := NewZeroShot(srv.URL, "facebook/bart-large-mnli", "", time.Second)

	res, err := z.Classify(context.Background(), "Should I learn React?", nil)
	require.NoError(t, err)
	require.Equal(t, Result{Label: "career advice", Score: 0.7}, res)
	require.Equal(t, DefaultLabels, got.Parameters.CandidateLabels)
	require.Equal(t, "Should I learn React?", got.Inputs)
}

func TestZeroShot_ListResponse(t *testing.T) {
	srv := zeroShotServer(t, `[{"label":"javascript","score":0.2},{"label":"web development","score":0.75}]`, nil)
	z := NewZeroShot(srv.URL, "facebook/bart-large-mnli", "", time.Second)

	res, err := z.Classify(context.Background(), "css grid", nil)
	require.NoError(t, err)
	require.Equal(t, "web development", res.Label)
	require.InDelta(t, 0.75, res.Score, 1e-9)
}

func TestZeroShot_WrappedObjectResponse(t *testing.T) {
	srv := zeroShotServer(t, `[{"labels":["javascript","career advice"],"scores":[0.6,0.4]}]`, nil)
	z := NewZeroShot(srv.URL, "facebook/bart-large-mnli", "", time.Second)

	res, err := z.Classify(context.Background(), "closures", nil)
	require.NoError(t, err)
	require.Equal(t, "javascript", res.Label)
}

func TestZeroShot_ErrorsPropagate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"bad input"}`))
	}))
	defer srv.Close()

	z := NewZeroShot(srv.URL, "facebook/bart-large-mnli", "", time.Second)
	_, err := z.IsRelevant(context.Background(), "text")
	require.Error(t, err)
	require.Contains(t, err.Error(), "bad input")

	_, err = z.Classify(context.Background(), "  ", nil)
	require.Error(t, err)
}

func TestWithLabels_NormalizesInput(t *testing.T) {
	z := NewZeroShot("http://example.invalid", "m", "", time.Second,
		WithLabels([]string{" go ", "", "go", "rust"}), WithThreshold(0.8))
	require.Equal(t, []string{"go", "rust"}, z.Labels())
	require.Equal(t, 0.8, z.Threshold())

	z = NewZeroShot("http://example.invalid", "m", "", time.Second, WithLabels([]string{" "}))
	require.Equal(t, DefaultLabels, z.Labels())
}
