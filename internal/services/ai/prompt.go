package ai

import (
	"fmt"
	"strings"

	"github.com/gemini-mastobot-go/internal/models"
)

// stylePrompts holds the voice instruction for each post style.
var stylePrompts = map[models.PostStyle]string{
	models.StyleMeme:        "Write a meme-worthy, absurdist one-liner",
	models.StyleEntertainer: "Write a fun, upbeat post that makes people smile",
	models.StyleInformative: "Share one genuinely interesting fact or tip, lightly",
	models.StyleStoryteller: "Tell a tiny, vivid micro-story",
	models.StyleAnalyst:     "Offer one sharp, accessible observation about a current trend",
}

// buildReplyPrompt assembles the instruction for replying to a status.
func buildReplyPrompt(cleanText string, hasImages bool) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Create a fun, short response to this post: %q\n", cleanText)

	if hasImages {
		b.WriteString("The post includes images which I'll analyze for context.\n")
		b.WriteString("Incorporate relevant details from the images in the response.\n")
	}

	b.WriteString(`
Rules:
- Maximum 2 sentences
- Include 1-2 emojis
- Be witty and friendly
- Match the post's tone
- Add a relevant pop culture reference if it fits naturally
`)
	if hasImages {
		b.WriteString("- Reference image content naturally\n")
	}
	b.WriteString("\nFormat: Just the response text with emojis.\n")

	return b.String()
}

// buildPostPrompt assembles the instruction for an original scheduled post.
func buildPostPrompt(style models.PostStyle, topics []string, useHashtags bool) string {
	voice, ok := stylePrompts[style]
	if !ok {
		voice = stylePrompts[models.StyleEntertainer]
	}

	var b strings.Builder

	fmt.Fprintf(&b, "%s for a social media audience.\n", voice)
	if len(topics) > 0 {
		fmt.Fprintf(&b, "Draw inspiration from one of these topics: %s.\n", strings.Join(topics, ", "))
	}

	b.WriteString(`
Rules:
- Maximum 2 sentences
- Include 1-2 emojis
- Keep it under 240 characters
`)
	if useHashtags {
		b.WriteString("- End with 1-2 relevant hashtags\n")
	}
	b.WriteString("\nFormat: Just the post text.\n")

	return b.String()
}
