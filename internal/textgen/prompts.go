package textgen

import (
	"fmt"
	"strings"

	"social_bots/internal/model"
)

const persona = `You are a member of a professional social network. Write like a real person:
plain language, no hashtags spam, no emojis overload, never mention that you are an AI.
Your role: %s`

// PostPrompt asks for a short original post about topic.
func PostPrompt(headline string, category model.Category, topic string) Prompt {
	return Prompt{
		System: fmt.Sprintf(persona, roleOrDefault(headline)),
		User: fmt.Sprintf(`Write a social media post for the %s community about: %s.
Share one concrete insight or experience in 2-4 sentences, under 600 characters.
Output only the post text.`, categoryLabel(category), topic),
	}
}

// CommentPrompt asks for a reply to an existing post.
func CommentPrompt(headline, postContent string) Prompt {
	return Prompt{
		System: fmt.Sprintf(persona, roleOrDefault(headline)),
		User: fmt.Sprintf(`Reply to this post with a thoughtful comment of 1-2 sentences.
Agree, add a detail or ask a follow-up question. Output only the comment text.

Post:
%s`, strings.TrimSpace(postContent)),
	}
}

func roleOrDefault(headline string) string {
	if strings.TrimSpace(headline) == "" {
		return "an active community member"
	}
	return headline
}

func categoryLabel(c model.Category) string {
	if c == "" {
		return "general"
	}
	return string(c)
}
