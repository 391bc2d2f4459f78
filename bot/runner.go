package bot

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/lazyninja/reddit-influencer/classifier"
	"github.com/lazyninja/reddit-influencer/generator"
	"github.com/lazyninja/reddit-influencer/reddit"
)

const separator = "======================================================"

var (
	postTextOptions  = generator.TextOptions{MaxTokens: 150, Temperature: 0.7, TopP: 0.95}
	replyTextOptions = generator.TextOptions{MaxTokens: 100, Temperature: 0.7, TopP: 0.95}
)

// Platform is the slice of the Reddit API a cycle needs.
type Platform interface {
	Hot(ctx context.Context, subreddit string, limit int) ([]reddit.Post, error)
	TopLevelComments(ctx context.Context, postID string, limit int) ([]reddit.Comment, error)
	SubmitText(ctx context.Context, subreddit, title, text string) (*reddit.Submission, error)
	SubmitImage(ctx context.Context, subreddit, title, imagePath string) (*reddit.Submission, error)
	Reply(ctx context.Context, parentFullName, text string) (*reddit.Comment, error)
	Upvote(ctx context.Context, fullName string) error
}

// ActivityLog receives the user-facing record of every step.
type ActivityLog interface {
	Write(message string)
}

type Settings struct {
	Subreddit          string
	HotLimit           int
	CommentLimit       int
	NewPostProbability float64
	RateLimitCooldown  time.Duration
}

func DefaultSettings() Settings {
	return Settings{
		Subreddit:          "webdev",
		HotLimit:           5,
		CommentLimit:       5,
		NewPostProbability: 0.1,
		RateLimitCooldown:  5 * time.Minute,
	}
}

type Deps struct {
	Platform   Platform
	Text       generator.TextGenerator
	Images     generator.ImageGenerator
	Classifier classifier.Classifier
	Policy     *Policy
	Pacer      Pacer
	Log        ActivityLog
	Rand       Rand
}

// Report summarizes one cycle.
type Report struct {
	PostKind       string `json:"post_kind,omitempty"`
	PostSubmitted  bool   `json:"post_submitted"`
	PostURL        string `json:"post_url,omitempty"`
	HotPosts       int    `json:"hot_posts"`
	Relevant       int    `json:"relevant"`
	Comments       int    `json:"comments"`
	Upvotes        int    `json:"upvotes"`
	CommentUpvotes int    `json:"comment_upvotes"`
	RateLimited    int    `json:"rate_limited"`
	Failures       int    `json:"failures"`
}

// Runner executes one posting and engagement cycle.
type Runner struct {
	deps     Deps
	settings Settings
}

func NewRunner(deps Deps, settings Settings) (*Runner, error) {
	switch {
	case deps.Platform == nil:
		return nil, errors.New("runner: platform is required")
	case deps.Text == nil:
		return nil, errors.New("runner: text generator is required")
	case deps.Images == nil:
		return nil, errors.New("runner: image generator is required")
	case deps.Classifier == nil:
		return nil, errors.New("runner: classifier is required")
	case deps.Log == nil:
		return nil, errors.New("runner: activity log is required")
	}
	if deps.Rand == nil {
		deps.Rand = DefaultRand
	}
	if deps.Policy == nil {
		deps.Policy = NewPolicy(deps.Rand)
	}
	if deps.Pacer == nil {
		deps.Pacer = SleepPacer{}
	}
	def := DefaultSettings()
	if settings.Subreddit == "" {
		settings.Subreddit = def.Subreddit
	}
	if settings.HotLimit <= 0 {
		settings.HotLimit = def.HotLimit
	}
	if settings.CommentLimit <= 0 {
		settings.CommentLimit = def.CommentLimit
	}
	if settings.RateLimitCooldown <= 0 {
		settings.RateLimitCooldown = def.RateLimitCooldown
	}
	return &Runner{deps: deps, settings: settings}, nil
}

func (r *Runner) Settings() Settings {
	return r.settings
}

// Run performs one cycle. Platform failures on individual actions are
// logged and the cycle moves on; generator and classifier failures abort
// it and are returned.
func (r *Runner) Run(ctx context.Context) (*Report, error) {
	rep := &Report{}
	logrus.WithFields(logrus.Fields{"subreddit": r.settings.Subreddit}).Info("runner: cycle begin")

	if r.deps.Rand.Float64() < r.settings.NewPostProbability {
		kind := AllPostKinds[r.deps.Rand.IntN(len(AllPostKinds))]
		if err := r.createPost(ctx, kind, rep); err != nil {
			return rep, err
		}
		if err := r.deps.Pacer.Sleep(ctx, AfterPostWindow.Pick(r.deps.Rand)); err != nil {
			return rep, err
		}
	}

	posts, err := r.deps.Platform.Hot(ctx, r.settings.Subreddit, r.settings.HotLimit)
	if err != nil {
		return rep, err
	}
	rep.HotPosts = len(posts)

	for _, post := range posts {
		if err := r.handlePost(ctx, post, rep); err != nil {
			return rep, err
		}
		r.deps.Log.Write(separator)
	}

	logrus.WithFields(logrus.Fields{
		"hot_posts":       rep.HotPosts,
		"relevant":        rep.Relevant,
		"comments":        rep.Comments,
		"upvotes":         rep.Upvotes,
		"comment_upvotes": rep.CommentUpvotes,
		"failures":        rep.Failures,
	}).Info("runner: cycle end")
	return rep, nil
}

// CreatePost generates and submits one post of the given kind outside the
// regular cycle.
func (r *Runner) CreatePost(ctx context.Context, kind PostKind) (*Report, error) {
	rep := &Report{}
	return rep, r.createPost(ctx, kind, rep)
}

func (r *Runner) createPost(ctx context.Context, kind PostKind, rep *Report) error {
	rep.PostKind = kind.String()
	prompt := kind.Prompt()
	content, err := r.deps.Text.GenerateText(ctx, prompt, postTextOptions)
	if err != nil {
		return errors.Wrapf(err, "generate %s post", kind)
	}
	title := TitleFrom(content)

	logrus.WithFields(logrus.Fields{"kind": kind.String(), "title": title}).Info("runner: submitting post")
	var sub *reddit.Submission
	if kind.IsImage() {
		imagePath, err := r.deps.Images.GenerateImage(ctx, content)
		if err != nil {
			return errors.Wrap(err, "generate image")
		}
		sub, err = r.deps.Platform.SubmitImage(ctx, r.settings.Subreddit, title, imagePath)
		if err != nil {
			r.deps.Log.Write("❌ Failed to create image post: " + err.Error())
			r.postFailed(kind, rep)
			return nil
		}
		r.deps.Log.Write("Created an image post.")
	} else {
		sub, err = r.deps.Platform.SubmitText(ctx, r.settings.Subreddit, title, content)
		if err != nil {
			r.deps.Log.Write("❌ Failed to create text post: " + err.Error())
			r.postFailed(kind, rep)
			return nil
		}
		r.deps.Log.Write("Created a text post.")
	}

	rep.PostSubmitted = true
	if sub != nil {
		rep.PostURL = sub.URL
	}
	postsSubmitted.WithLabelValues(kind.String(), "ok").Inc()
	return nil
}

func (r *Runner) postFailed(kind PostKind, rep *Report) {
	rep.Failures++
	postsSubmitted.WithLabelValues(kind.String(), "error").Inc()
}

func (r *Runner) handlePost(ctx context.Context, post reddit.Post, rep *Report) error {
	r.deps.Log.Write("Post: " + post.Title)

	relevant, err := r.deps.Classifier.IsRelevant(ctx, post.Title+" "+post.SelfText)
	if err != nil {
		return errors.Wrapf(err, "classify post %s", post.ID)
	}
	postsClassified.WithLabelValues(strconv.FormatBool(relevant)).Inc()
	if !relevant {
		r.deps.Log.Write("Post not relevant, skipping.")
		return nil
	}
	rep.Relevant++

	action := r.deps.Policy.Choose()
	r.deps.Log.Write("Chosen action: " + action.String())

	switch action {
	case ActionComment:
		if err := r.comment(ctx, post, rep); err != nil {
			return err
		}
	case ActionUpvote:
		if err := r.upvote(ctx, post, rep); err != nil {
			return err
		}
	}

	return r.upvoteComments(ctx, post, rep)
}

func (r *Runner) comment(ctx context.Context, post reddit.Post, rep *Report) error {
	prompt := ReplyPrompt(post.Title)
	text, err := r.deps.Text.GenerateText(ctx, prompt, replyTextOptions)
	if err != nil {
		return errors.Wrapf(err, "generate reply to %s", post.ID)
	}

	_, err = r.deps.Platform.Reply(ctx, post.FullName, text)
	if err != nil {
		actionsTaken.WithLabelValues(ActionComment.String(), "error").Inc()
		return r.platformError(ctx, err, "❌ Forbidden to comment on this post.", rep)
	}
	actionsTaken.WithLabelValues(ActionComment.String(), "ok").Inc()
	rep.Comments++
	r.deps.Log.Write("Commented: " + text)
	return r.deps.Pacer.Sleep(ctx, AfterCommentWindow.Pick(r.deps.Rand))
}

func (r *Runner) upvote(ctx context.Context, post reddit.Post, rep *Report) error {
	if err := r.deps.Platform.Upvote(ctx, post.FullName); err != nil {
		actionsTaken.WithLabelValues(ActionUpvote.String(), "error").Inc()
		return r.platformError(ctx, err, "❌ Forbidden to upvote this post.", rep)
	}
	actionsTaken.WithLabelValues(ActionUpvote.String(), "ok").Inc()
	rep.Upvotes++
	r.deps.Log.Write("Upvoted post.")
	return r.deps.Pacer.Sleep(ctx, AfterUpvoteWindow.Pick(r.deps.Rand))
}

// platformError logs a failed post action. A rate limit costs one cooldown
// and the action is not retried. Only a cancelled context is returned.
func (r *Runner) platformError(ctx context.Context, err error, forbiddenMsg string, rep *Report) error {
	switch {
	case reddit.IsRateLimited(err):
		rep.RateLimited++
		rateLimitHits.Inc()
		r.deps.Log.Write("⏳ Rate limit hit. Waiting " + humanMinutes(r.settings.RateLimitCooldown) + ".")
		return r.deps.Pacer.Sleep(ctx, r.settings.RateLimitCooldown)
	case reddit.IsForbidden(err):
		rep.Failures++
		r.deps.Log.Write(forbiddenMsg)
	default:
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		rep.Failures++
		r.deps.Log.Write("❌ Reddit API error: " + err.Error())
	}
	return nil
}

func (r *Runner) upvoteComments(ctx context.Context, post reddit.Post, rep *Report) error {
	comments, err := r.deps.Platform.TopLevelComments(ctx, post.ID, r.settings.CommentLimit)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		rep.Failures++
		r.deps.Log.Write("❌ Reddit API error: " + err.Error())
		return nil
	}
	if len(comments) > r.settings.CommentLimit {
		comments = comments[:r.settings.CommentLimit]
	}

	for _, c := range comments {
		if strings.TrimSpace(c.Body) == "" {
			continue
		}
		relevant, err := r.deps.Classifier.IsRelevant(ctx, c.Body)
		if err != nil {
			return errors.Wrapf(err, "classify comment %s", c.ID)
		}
		if !relevant {
			continue
		}
		if err := r.deps.Platform.Upvote(ctx, c.FullName); err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			actionsTaken.WithLabelValues("comment_upvote", "error").Inc()
			rep.Failures++
			r.deps.Log.Write("❌ Reddit API error (comment upvote): " + err.Error())
			continue
		}
		actionsTaken.WithLabelValues("comment_upvote", "ok").Inc()
		rep.CommentUpvotes++
		r.deps.Log.Write("Upvoted comment: " + c.Body)
		if err := r.deps.Pacer.Sleep(ctx, AfterCommentUpvoteWindow.Pick(r.deps.Rand)); err != nil {
			return err
		}
	}
	return nil
}

// TitleFrom derives a post title from generated content: everything before
// the first period, clamped to Reddit's title limit. Content without a
// usable first sentence falls back to its first line.
func TitleFrom(content string) string {
	title := strings.TrimSpace(strings.SplitN(content, ".", 2)[0])
	if title == "" {
		title = strings.TrimSpace(strings.SplitN(strings.TrimLeft(content, ". \n"), "\n", 2)[0])
	}
	return reddit.TruncateTitle(title)
}

func humanMinutes(d time.Duration) string {
	m := int(d.Round(time.Minute) / time.Minute)
	switch {
	case m < 1:
		return d.String()
	case m == 1:
		return "1 minute"
	default:
		return fmt.Sprintf("%d minutes", m)
	}
}
