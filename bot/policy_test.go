package bot

import (
	"context"
	randv2 "math/rand/v2"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestPolicy_ChoosesUniformly(t *testing.T) {
	p := NewPolicy(randv2.New(randv2.NewPCG(1, 2)))
	counts := map[Action]int{}
	const n = 10000
	for i := 0; i < n; i++ {
		counts[p.Choose()]++
	}
	require.Len(t, counts, 2)
	require.InDelta(t, n/2, counts[ActionComment], n*0.05)
	require.InDelta(t, n/2, counts[ActionUpvote], n*0.05)
}

func TestAction_String(t *testing.T) {
	require.Equal(t, "comment", ActionComment.String())
	require.Equal(t, "upvote", ActionUpvote.String())
}

func TestPostKinds(t *testing.T) {
	for _, k := range AllPostKinds {
		parsed, ok := ParsePostKind(k.String())
		require.True(t, ok)
		require.Equal(t, k, parsed)
		require.Contains(t, k.Prompt(), "AiLazyNinja")
	}
	require.True(t, PostKindImage.IsImage())
	require.False(t, PostKindTip.IsImage())
	_, ok := ParsePostKind("meme")
	require.False(t, ok)
}

func TestWindow_PickStaysInBounds(t *testing.T) {
	r := randv2.New(randv2.NewPCG(3, 4))
	seen := map[time.Duration]bool{}
	for i := 0; i < 2000; i++ {
		d := AfterCommentUpvoteWindow.Pick(r)
		require.GreaterOrEqual(t, d, 5*time.Second)
		require.LessOrEqual(t, d, 15*time.Second)
		seen[d] = true
	}
	require.Len(t, seen, 11)
	require.Equal(t, 7*time.Second, Window{Min: 7, Max: 7}.Pick(r))
}

func TestSleepPacer_HonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	start := time.Now()
	err := SleepPacer{}.Sleep(ctx, time.Hour)
	require.ErrorIs(t, err, context.Canceled)
	require.Less(t, time.Since(start), time.Second)

	require.NoError(t, SleepPacer{}.Sleep(context.Background(), time.Millisecond))
}
