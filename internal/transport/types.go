package transport

import (
	"context"
	"time"
)

type UpdateKind string

const (
	UpdateMessage  UpdateKind = "message"
	UpdateCallback UpdateKind = "callback"
)

type Update struct {
	Kind     UpdateKind
	Message  *Message
	Callback *Callback
}

// Message is a platform-neutral inbound message.
//
// Exactly one content field is set for recognized kinds: Text for plain
// text, or one of the media file IDs (with optional Caption). A message
// with none of them set is an unrecognized kind and is ignored upstream.
type Message struct {
	ID           int
	ChatID       int64
	FromID       int64
	FromUsername string

	Text string

	PhotoID    string
	VideoID    string
	DocumentID string
	Caption    string

	// ReplyTo carries the quoted message when this one is a reply.
	ReplyTo *ReplyRef
}

// ReplyRef identifies the message a reply quotes. Text is the quoted text
// (or caption) as far as the platform exposes it.
type ReplyRef struct {
	MessageID int
	Text      string
}

type Callback struct {
	ID        string
	FromID    int64
	ChatID    int64
	MessageID int
	Data      string
}

type ChatTarget struct {
	ChatID int64
}

type MessageRef struct {
	ChatID    int64
	MessageID int
}

// Button is a single inline-keyboard button carrying callback data.
type Button struct {
	Text string
	Data string
}

// InlineMarkup is a platform-neutral inline keyboard (rows of buttons).
type InlineMarkup struct {
	Rows [][]Button
}

type SendOptions struct {
	ParseMode      string
	DisablePreview bool
	Markup         *InlineMarkup
}

// Standing is a user's membership standing in a channel.
type Standing string

const (
	StandingCreator       Standing = "creator"
	StandingAdministrator Standing = "administrator"
	StandingMember        Standing = "member"
	StandingRestricted    Standing = "restricted"
	StandingLeft          Standing = "left"
	StandingKicked        Standing = "kicked"
	StandingNone          Standing = "none"
)

// Insider reports whether the standing already grants channel access, i.e.
// no invite is needed.
func (s Standing) Insider() bool {
	switch s {
	case StandingCreator, StandingAdministrator, StandingMember:
		return true
	}
	return false
}

// Adapter is the chat-platform boundary.
//
// Send calls may fail per recipient (blocked bot, deactivated account);
// callers that fan out must isolate those failures themselves.
type Adapter interface {
	Start(ctx context.Context, out chan<- Update) error
	Stop(ctx context.Context) error

	SendText(ctx context.Context, to ChatTarget, text string, opt *SendOptions) (MessageRef, error)
	SendPhoto(ctx context.Context, to ChatTarget, fileID, caption string) error
	SendVideo(ctx context.Context, to ChatTarget, fileID, caption string) error
	SendDocument(ctx context.Context, to ChatTarget, fileID, caption string) error

	EditText(ctx context.Context, ref MessageRef, text string, opt *SendOptions) error
	DeleteMessage(ctx context.Context, ref MessageRef) error
	AnswerCallback(ctx context.Context, callbackID string, text string) error

	// ChatMemberStanding queries the user's standing in a channel.
	// Channel IDs are platform-formatted strings ("-100..." or "@name").
	ChatMemberStanding(ctx context.Context, channelID string, userID int64) (Standing, error)

	// CreateInviteLink requests a time-limited invite link for the channel
	// with a bounded number of uses.
	CreateInviteLink(ctx context.Context, channelID string, ttl time.Duration, maxUses int) (string, error)

	// ChannelTitle returns the channel's display name, if resolvable.
	ChannelTitle(ctx context.Context, channelID string) (string, error)
}
