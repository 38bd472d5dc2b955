// Package notify announces Planyard activity on chat platforms (Slack,
// Discord) and builds the daily digest.
package notify

import "context"

// Adapter delivers messages to a single chat platform.
type Adapter interface {
	// Send posts msg. An empty ChannelID targets the adapter's default
	// channel.
	Send(ctx context.Context, msg Message) error
}

// Message is a platform-neutral chat message.
type Message struct {
	ChannelID string
	Text      string  // plain text, also used as the notification fallback
	Events    []Event // rendered as attachments or embeds
}

// Event is a structured block within a message.
type Event struct {
	Title  string
	Body   string
	Color  string // hex sidebar color, e.g. "#36a64f"
	Fields []Field
}

// Field is a key-value pair displayed in an event.
type Field struct {
	Name  string
	Value string
	Short bool // render side-by-side with another field
}

// Sidebar colors.
const (
	ColorInfo    = "#439fe0"
	ColorSuccess = "#36a64f"
	ColorWarning = "#daa038"
)
