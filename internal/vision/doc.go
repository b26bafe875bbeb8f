// Package vision classifies device screenshots with an OpenAI-compatible
// chat completions endpoint.
//
// The Client implements automation.Classifier. It sends the screenshot as
// a low-detail data URL next to a platform-specific prompt and asks for a
// JSON object with a caption and a list of topics; those become the
// automation.Analysis the trigger matcher searches.
//
// # Usage
//
//	classifier := vision.New(cfg.Vision)
//	analysis, err := classifier.Classify(ctx, jpeg, device.PlatformTikTok)
//
// A missing API key is not a construction error; Classify reports
// ErrNoAPIKey so the automation loop records a failed analysis and keeps
// scrolling.
package vision
