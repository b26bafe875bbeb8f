package device

import (
	"fmt"
	"math"
)

// Point is a screen position expressed as fractions of the device's width
// and height, so one calibration works at any resolution.
type Point struct {
	XNorm float64 `json:"x_norm"`
	YNorm float64 `json:"y_norm"`
}

// Valid reports whether both components lie in [0,1].
func (p Point) Valid() bool {
	return p.XNorm >= 0 && p.XNorm <= 1 && p.YNorm >= 0 && p.YNorm <= 1
}

// Pixels maps p onto a width x height screen, rounding to the nearest pixel.
func (p Point) Pixels(width, height int) (x, y int) {
	return int(math.Round(p.XNorm * float64(width))), int(math.Round(p.YNorm * float64(height)))
}

// Normalize converts a pixel position to a Point, clamping each component
// to [0,1] so taps just outside the screen still land on its edge.
func Normalize(x, y float64, width, height int) Point {
	return Point{
		XNorm: clamp01(x / float64(width)),
		YNorm: clamp01(y / float64(height)),
	}
}

func clamp01(v float64) float64 {
	switch {
	case math.IsNaN(v), v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}

// PlatformCoords is the calibrated button layout for one platform. Each
// accessor returns nil when that button has not been calibrated.
//
// Bookmark is "save" on TikTok and "share" on Instagram. CommentClose is
// the button that dismisses the comment sheet ("close" on TikTok, "back"
// on Instagram).
type PlatformCoords interface {
	Platform() Platform
	Like() *Point
	Comment() *Point
	Bookmark() *Point
	CommentInput() *Point
	CommentSend() *Point
	CommentClose() *Point
}

// TikTokCoords holds the TikTok button layout.
type TikTokCoords struct {
	LikeButton         *Point `json:"like,omitempty"`
	CommentButton      *Point `json:"comment,omitempty"`
	SaveButton         *Point `json:"save,omitempty"`
	CommentInputField  *Point `json:"comment_input,omitempty"`
	CommentSendButton  *Point `json:"comment_send,omitempty"`
	CommentCloseButton *Point `json:"comment_close,omitempty"`
}

func (c *TikTokCoords) Platform() Platform   { return PlatformTikTok }
func (c *TikTokCoords) Like() *Point         { return c.LikeButton }
func (c *TikTokCoords) Comment() *Point      { return c.CommentButton }
func (c *TikTokCoords) Bookmark() *Point     { return c.SaveButton }
func (c *TikTokCoords) CommentInput() *Point { return c.CommentInputField }
func (c *TikTokCoords) CommentSend() *Point  { return c.CommentSendButton }
func (c *TikTokCoords) CommentClose() *Point { return c.CommentCloseButton }

// InstagramCoords holds the Instagram Reels button layout.
type InstagramCoords struct {
	LikeButton        *Point `json:"like,omitempty"`
	CommentButton     *Point `json:"comment,omitempty"`
	ShareButton       *Point `json:"share,omitempty"`
	CommentInputField *Point `json:"comment_input,omitempty"`
	CommentSendButton *Point `json:"comment_send,omitempty"`
	CommentBackButton *Point `json:"comment_back,omitempty"`
}

func (c *InstagramCoords) Platform() Platform   { return PlatformInstagram }
func (c *InstagramCoords) Like() *Point         { return c.LikeButton }
func (c *InstagramCoords) Comment() *Point      { return c.CommentButton }
func (c *InstagramCoords) Bookmark() *Point     { return c.ShareButton }
func (c *InstagramCoords) CommentInput() *Point { return c.CommentInputField }
func (c *InstagramCoords) CommentSend() *Point  { return c.CommentSendButton }
func (c *InstagramCoords) CommentClose() *Point { return c.CommentBackButton }

// Coords holds the per-platform layouts of one device. Platforms are
// calibrated independently; a nil entry means "never calibrated".
type Coords struct {
	TikTok    *TikTokCoords    `json:"tiktok,omitempty"`
	Instagram *InstagramCoords `json:"instagram,omitempty"`
}

// For returns the layout for p, or nil.
func (c Coords) For(p Platform) PlatformCoords {
	switch p {
	case PlatformTikTok:
		if c.TikTok != nil {
			return c.TikTok
		}
	case PlatformInstagram:
		if c.Instagram != nil {
			return c.Instagram
		}
	}
	return nil
}

// CoordinateNames lists the calibration keys accepted for p.
func CoordinateNames(p Platform) []string {
	switch p {
	case PlatformTikTok:
		return []string{"like", "comment", "save", "comment_input", "comment_send", "comment_close"}
	case PlatformInstagram:
		return []string{"like", "comment", "share", "comment_input", "comment_send", "comment_back"}
	default:
		return nil
	}
}

// Set writes exactly one named coordinate of one platform, leaving every
// other coordinate untouched.
func (c *Coords) Set(p Platform, name string, pt Point) error {
	if !pt.Valid() {
		return fmt.Errorf("%w: (%g, %g)", ErrCoordinateRange, pt.XNorm, pt.YNorm)
	}
	v := pt

	switch p {
	case PlatformTikTok:
		if c.TikTok == nil {
			c.TikTok = &TikTokCoords{}
		}
		t := c.TikTok
		slots := map[string]**Point{
			"like":          &t.LikeButton,
			"comment":       &t.CommentButton,
			"save":          &t.SaveButton,
			"comment_input": &t.CommentInputField,
			"comment_send":  &t.CommentSendButton,
			"comment_close": &t.CommentCloseButton,
		}
		slot, ok := slots[name]
		if !ok {
			return fmt.Errorf("%w: %s has no %q", ErrUnknownCoordinate, p, name)
		}
		*slot = &v
	case PlatformInstagram:
		if c.Instagram == nil {
			c.Instagram = &InstagramCoords{}
		}
		ig := c.Instagram
		slots := map[string]**Point{
			"like":          &ig.LikeButton,
			"comment":       &ig.CommentButton,
			"share":         &ig.ShareButton,
			"comment_input": &ig.CommentInputField,
			"comment_send":  &ig.CommentSendButton,
			"comment_back":  &ig.CommentBackButton,
		}
		slot, ok := slots[name]
		if !ok {
			return fmt.Errorf("%w: %s has no %q", ErrUnknownCoordinate, p, name)
		}
		*slot = &v
	default:
		return fmt.Errorf("%w: %q", ErrInvalidPlatform, p)
	}
	return nil
}

// DeepCopy returns a Coords sharing no pointers with c.
func (c Coords) DeepCopy() Coords {
	var out Coords
	if c.TikTok != nil {
		t := *c.TikTok
		t.LikeButton = copyPoint(t.LikeButton)
		t.CommentButton = copyPoint(t.CommentButton)
		t.SaveButton = copyPoint(t.SaveButton)
		t.CommentInputField = copyPoint(t.CommentInputField)
		t.CommentSendButton = copyPoint(t.CommentSendButton)
		t.CommentCloseButton = copyPoint(t.CommentCloseButton)
		out.TikTok = &t
	}
	if c.Instagram != nil {
		ig := *c.Instagram
		ig.LikeButton = copyPoint(ig.LikeButton)
		ig.CommentButton = copyPoint(ig.CommentButton)
		ig.ShareButton = copyPoint(ig.ShareButton)
		ig.CommentInputField = copyPoint(ig.CommentInputField)
		ig.CommentSendButton = copyPoint(ig.CommentSendButton)
		ig.CommentBackButton = copyPoint(ig.CommentBackButton)
		out.Instagram = &ig
	}
	return out
}

func copyPoint(p *Point) *Point {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
