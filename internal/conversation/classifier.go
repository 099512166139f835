package conversation

import (
	"regexp"
	"strings"
)

// imageRequestPatterns match the common ways users ask a companion for a
// picture. The classifier is a cheap heuristic, not NLP: false negatives
// just produce a text reply, false positives cost one image job.
var imageRequestPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\b(send|show|draw|generate|create|make)\b.{0,40}\b(picture|photo|pic|image|selfie|portrait|drawing)\b`),
	regexp.MustCompile(`(?i)\b(picture|photo|pic|image|selfie)\s+of\b`),
	regexp.MustCompile(`(?i)\bwhat do you look like\b`),
	regexp.MustCompile(`(?i)\blet me see you\b`),
}

// IsImageRequest reports whether the text reads as a request for an image.
func IsImageRequest(text string) bool {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return false
	}
	for _, pattern := range imageRequestPatterns {
		if pattern.MatchString(trimmed) {
			return true
		}
	}
	return false
}
