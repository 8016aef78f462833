// Package notification defines notification records and the pure derivation
// helpers applied after successful writes. Delivery is pull-only.
package notification

import (
	"fmt"
	"regexp"
	"time"
)

// Kind is the notification trigger type.
type Kind string

const (
	// KindReply is sent to a parent post's author on a new reply.
	KindReply Kind = "reply"
	// KindMention is sent to each identity @-mentioned in new content.
	KindMention Kind = "mention"
	// KindLike is sent to a post's author on a newly inserted like.
	KindLike Kind = "like"
)

// Notification is a single pull-delivered record. Created exactly once per
// triggering event; only the read flag ever changes, and only via markRead.
type Notification struct {
	ID        string    `json:"id"`
	Recipient string    `json:"recipient"` // identity fingerprint
	Kind      Kind      `json:"kind"`
	PostID    string    `json:"post_id"`
	From      string    `json:"from"` // display name of the actor
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
	Read      bool      `json:"read"`
}

var mentionRe = regexp.MustCompile(`@([A-Za-z0-9_-]+)`)

// ExtractMentions returns the distinct @name tokens in content, in first
// occurrence order. Whether a token resolves to a known display name is the
// caller's concern.
func ExtractMentions(content string) []string {
	matches := mentionRe.FindAllStringSubmatch(content, -1)
	if len(matches) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(matches))
	names := make([]string, 0, len(matches))
	for _, m := range matches {
		if _, ok := seen[m[1]]; ok {
			continue
		}
		seen[m[1]] = struct{}{}
		names = append(names, m[1])
	}
	return names
}

// ReplyMessage formats the reply notification text.
func ReplyMessage(replier string) string {
	return fmt.Sprintf("%s replied to your post", replier)
}

// MentionMessage formats the mention notification text.
func MentionMessage(author string) string {
	return fmt.Sprintf("%s mentioned you in a post", author)
}

// LikeMessage formats the like notification text.
func LikeMessage(liker string) string {
	return fmt.Sprintf("%s liked your post", liker)
}
