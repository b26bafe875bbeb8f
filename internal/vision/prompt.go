package vision

import (
	"strings"

	"github.com/nerrad567/otg-controller/internal/device"
)

const promptTemplate = `This is a screenshot of {{app}}.

Describe the video content shown and list its key topics.

Reply ONLY with a JSON object of this shape:
{
  "caption": "one or two sentences describing the content",
  "topics": ["topic1", "topic2", "topic3"],
  "contentType": "dance|comedy|tutorial|music|food|fitness|fashion|gaming|pets|nature|other",
  "hasText": true,
  "textContent": "visible text or hashtags, empty string if none"
}

Look for the activity shown (dancing, cooking, talking and so on), the
general style or mood, and any hashtags or text overlays. Describe people
only in general terms. Prefer single lowercase words for topics, for
example "dance", "music", "funny", "cooking".`

var appNames = map[device.Platform]string{
	device.PlatformTikTok:    "a TikTok video in the For You feed",
	device.PlatformInstagram: "an Instagram Reel",
}

// Prompt returns the classification prompt for platform.
func Prompt(platform device.Platform) string {
	app, ok := appNames[platform]
	if !ok {
		app = "a short-form video app"
	}
	return strings.Replace(promptTemplate, "{{app}}", app, 1)
}
