package reddit

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/tidwall/gjson"
)

// Post is a submission ("link", fullname prefix t3_).
type Post struct {
	ID        string `json:"id"`
	FullName  string `json:"name"`
	Title     string `json:"title"`
	SelfText  string `json:"selftext"`
	Author    string `json:"author"`
	Permalink string `json:"permalink"`
	Score     int64  `json:"score"`
	Stickied  bool   `json:"stickied"`
}

// Comment is a comment (fullname prefix t1_).
type Comment struct {
	ID       string `json:"id"`
	FullName string `json:"name"`
	Body     string `json:"body"`
	Author   string `json:"author"`
}

// Submission is what Reddit returns after a successful submit.
type Submission struct {
	ID       string `json:"id,omitempty"`
	FullName string `json:"name,omitempty"`
	URL      string `json:"url,omitempty"`
}

type Account struct {
	Name         string `json:"name"`
	LinkKarma    int64  `json:"link_karma"`
	CommentKarma int64  `json:"comment_karma"`
}

const titleMaxRunes = 300

func (c *Client) Me(ctx context.Context) (*Account, error) {
	data, err := c.do(ctx, http.MethodGet, "/api/v1/me", url.Values{"raw_json": {"1"}}, nil)
	if err != nil {
		return nil, err
	}
	return &Account{
		Name:         gjson.GetBytes(data, "name").String(),
		LinkKarma:    gjson.GetBytes(data, "link_karma").Int(),
		CommentKarma: gjson.GetBytes(data, "comment_karma").Int(),
	}, nil
}

// Hot lists the subreddit's hot posts.
func (c *Client) Hot(ctx context.Context, subreddit string, limit int) ([]Post, error) {
	subreddit = strings.TrimPrefix(strings.TrimSpace(subreddit), "r/")
	if subreddit == "" {
		return nil, errors.New("subreddit is empty")
	}
	q := url.Values{}
	q.Set("limit", strconv.Itoa(limit))
	q.Set("raw_json", "1")
	data, err := c.do(ctx, http.MethodGet, "/r/"+url.PathEscape(subreddit)+"/hot", q, nil)
	if err != nil {
		return nil, errors.Wrapf(err, "list hot posts of r/%s", subreddit)
	}

	var posts []Post
	for _, child := range gjson.GetBytes(data, "data.children").Array() {
		if child.Get("kind").String() != "t3" {
			continue
		}
		d := child.Get("data")
		posts = append(posts, Post{
			ID:        d.Get("id").String(),
			FullName:  d.Get("name").String(),
			Title:     d.Get("title").String(),
			SelfText:  d.Get("selftext").String(),
			Author:    d.Get("author").String(),
			Permalink: d.Get("permalink").String(),
			Score:     d.Get("score").Int(),
			Stickied:  d.Get("stickied").Bool(),
		})
		if limit > 0 && len(posts) >= limit {
			break
		}
	}
	return posts, nil
}

// TopLevelComments returns up to limit top-level comments of a post.
// "Load more" stubs are dropped rather than expanded.
func (c *Client) TopLevelComments(ctx context.Context, postID string, limit int) ([]Comment, error) {
	postID = strings.TrimPrefix(postID, "t3_")
	q := url.Values{}
	q.Set("depth", "1")
	q.Set("limit", strconv.Itoa(limit))
	q.Set("raw_json", "1")
	data, err := c.do(ctx, http.MethodGet, "/comments/"+url.PathEscape(postID), q, nil)
	if err != nil {
		return nil, errors.Wrapf(err, "list comments of %s", postID)
	}

	var comments []Comment
	for _, child := range gjson.GetBytes(data, "1.data.children").Array() {
		if child.Get("kind").String() != "t1" {
			continue
		}
		d := child.Get("data")
		comments = append(comments, Comment{
			ID:       d.Get("id").String(),
			FullName: d.Get("name").String(),
			Body:     d.Get("body").String(),
			Author:   d.Get("author").String(),
		})
		if limit > 0 && len(comments) >= limit {
			break
		}
	}
	return comments, nil
}

func (c *Client) SubmitText(ctx context.Context, subreddit, title, text string) (*Submission, error) {
	form := url.Values{}
	form.Set("kind", "self")
	form.Set("text", text)
	return c.submit(ctx, subreddit, title, form)
}

// SubmitImage uploads the file as a Reddit-hosted asset and submits it as
// an image post.
func (c *Client) SubmitImage(ctx context.Context, subreddit, title, imagePath string) (*Submission, error) {
	assetURL, err := c.uploadMedia(ctx, imagePath)
	if err != nil {
		return nil, err
	}
	form := url.Values{}
	form.Set("kind", "image")
	form.Set("url", assetURL)
	return c.submit(ctx, subreddit, title, form)
}

func (c *Client) submit(ctx context.Context, subreddit, title string, form url.Values) (*Submission, error) {
	form.Set("sr", strings.TrimPrefix(subreddit, "r/"))
	form.Set("title", TruncateTitle(title))
	form.Set("api_type", "json")
	form.Set("resubmit", "true")
	form.Set("sendreplies", "true")

	data, err := c.do(ctx, http.MethodPost, "/api/submit", nil, form)
	if err != nil {
		return nil, err
	}
	s := &Submission{
		ID:       gjson.GetBytes(data, "json.data.id").String(),
		FullName: gjson.GetBytes(data, "json.data.name").String(),
		URL:      gjson.GetBytes(data, "json.data.url").String(),
	}
	if s.URL == "" {
		s.URL = gjson.GetBytes(data, "json.data.user_submitted_page").String()
	}
	return s, nil
}

// Reply comments on a post or another comment identified by its fullname.
func (c *Client) Reply(ctx context.Context, parentFullName, text string) (*Comment, error) {
	form := url.Values{}
	form.Set("thing_id", parentFullName)
	form.Set("text", text)
	form.Set("api_type", "json")

	data, err := c.do(ctx, http.MethodPost, "/api/comment", nil, form)
	if err != nil {
		return nil, err
	}
	d := gjson.GetBytes(data, "json.data.things.0.data")
	return &Comment{
		ID:       d.Get("id").String(),
		FullName: d.Get("name").String(),
		Body:     d.Get("body").String(),
		Author:   d.Get("author").String(),
	}, nil
}

// Upvote casts an upvote on a post or comment.
func (c *Client) Upvote(ctx context.Context, fullName string) error {
	form := url.Values{}
	form.Set("id", fullName)
	form.Set("dir", "1")
	_, err := c.do(ctx, http.MethodPost, "/api/vote", nil, form)
	return err
}

// TruncateTitle clamps a title to Reddit's 300 character limit.
func TruncateTitle(title string) string {
	title = strings.TrimSpace(title)
	r := []rune(title)
	if len(r) <= titleMaxRunes {
		return title
	}
	return string(r[:titleMaxRunes])
}
