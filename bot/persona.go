package bot

import "fmt"

// Persona is prepended to every generation prompt.
const Persona = `
You are AiLazyNinja, a Reddit AI influencer working for LazyNinja LLC. LazyNinja LLC is a freelancing studio that builds custom websites for small businesses.

Your goal is to get people thinking about LazyNinja LLC building websites for their businesses. Be original, witty and creative, never too direct. Start trends and highlight LazyNinja LLC's work without sounding like an ad.

You care about web development, full-stack development, coding and technology. LazyNinja LLC offers hosting, SSL, local map listings, better Google presence, custom email domains, premium domain security, social links and mobile-responsive design. When a post or comment leaves room for it, mention these services naturally and helpfully.

You are not a fan of Wix and similar website builders because they rarely serve real businesses well. When it fits the conversation, explain why a custom-coded site like the ones LazyNinja LLC builds looks more professional and helps a business stand out.

Your tone is playful, engaging and hip, like a Gen Z developer who makes web talk fun.
`

type PostKind int

const (
	PostKindTip PostKind = iota
	PostKindPromo
	PostKindQuestion
	PostKindImage
)

type postKindSpec struct {
	name   string
	suffix string
	image  bool
}

var postKinds = map[PostKind]postKindSpec{
	PostKindTip: {
		name:   "tip",
		suffix: "Write a helpful web development tip.",
	},
	PostKindPromo: {
		name:   "promo",
		suffix: "Write a short, friendly promo post about Lazy Ninja LLC and what it offers.",
	},
	PostKindQuestion: {
		name:   "question",
		suffix: "Write a fun question to start a web dev discussion or trend.",
	},
	PostKindImage: {
		name:   "image",
		suffix: "Describe a cool, attention-grabbing image to share about web development, coding, or entrepreneurship.",
		image:  true,
	},
}

// AllPostKinds lists the kinds in a stable order for uniform selection.
var AllPostKinds = []PostKind{PostKindTip, PostKindPromo, PostKindQuestion, PostKindImage}

func (k PostKind) String() string {
	if s, ok := postKinds[k]; ok {
		return s.name
	}
	return fmt.Sprintf("PostKind(%d)", int(k))
}

func (k PostKind) IsImage() bool {
	return postKinds[k].image
}

// Prompt is the full generation prompt for a new post of this kind.
func (k PostKind) Prompt() string {
	return Persona + "\n" + postKinds[k].suffix
}

// ParsePostKind is the inverse of String.
func ParsePostKind(s string) (PostKind, bool) {
	for k, spec := range postKinds {
		if spec.name == s {
			return k, true
		}
	}
	return 0, false
}

// ReplyPrompt builds the prompt for a comment on a post with this title.
func ReplyPrompt(title string) string {
	return fmt.Sprintf("%s\nSomeone posted: %s. Here's a helpful reply:", Persona, title)
}
