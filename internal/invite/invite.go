// Package invite issues premium channel invites.
//
// For each registered channel the service checks the member's current
// standing; anyone already inside is skipped, everyone else gets a
// single-use, time-limited invite link by direct message. Errors are
// isolated per channel: one broken channel never blocks the others.
package invite

import (
	"context"
	"fmt"
	"time"

	"premiumbot/internal/storage"
	"premiumbot/internal/transport"
	"premiumbot/pkg/logx"
)

const (
	linkTTL     = time.Hour
	linkMaxUses = 1
)

// Platform is the subset of the chat adapter the service needs.
type Platform interface {
	ChatMemberStanding(ctx context.Context, channelID string, userID int64) (transport.Standing, error)
	CreateInviteLink(ctx context.Context, channelID string, ttl time.Duration, maxUses int) (string, error)
	SendText(ctx context.Context, to transport.ChatTarget, text string, opt *transport.SendOptions) (transport.MessageRef, error)
}

// Channels lists the registered premium channels.
type Channels interface {
	ListChannels(ctx context.Context) ([]storage.Channel, error)
}

type Service struct {
	platform Platform
	channels Channels
	log      logx.Logger
}

func New(platform Platform, channels Channels, log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{platform: platform, channels: channels, log: log}
}

// InviteToChannels invites the user to every registered channel they are
// not already in. Returns the number of invites sent; per-channel failures
// are logged and skipped.
func (s *Service) InviteToChannels(ctx context.Context, userID int64) int {
	chans, err := s.channels.ListChannels(ctx)
	if err != nil {
		s.log.Error("listing premium channels failed", logx.Err(err))
		return 0
	}

	sent := 0
	for _, ch := range chans {
		ok, err := s.inviteOne(ctx, ch, userID)
		if err != nil {
			s.log.Warn("channel invite failed",
				logx.String("channel", ch.ID),
				logx.Int64("user_id", userID),
				logx.Err(err))
			continue
		}
		if ok {
			sent++
		}
	}
	return sent
}

// inviteOne reports whether an invite was actually sent (false when the
// user already holds access).
func (s *Service) inviteOne(ctx context.Context, ch storage.Channel, userID int64) (bool, error) {
	standing, err := s.platform.ChatMemberStanding(ctx, ch.ID, userID)
	if err != nil {
		return false, fmt.Errorf("membership lookup: %w", err)
	}
	if standing.Insider() {
		s.log.Debug("already in channel, skipping invite",
			logx.String("channel", ch.ID),
			logx.Int64("user_id", userID),
			logx.String("standing", string(standing)))
		return false, nil
	}

	link, err := s.platform.CreateInviteLink(ctx, ch.ID, linkTTL, linkMaxUses)
	if err != nil {
		return false, fmt.Errorf("create invite link: %w", err)
	}

	title := ch.Title
	if title == "" {
		title = "Premium Channel"
	}
	text := fmt.Sprintf(
		"🎉 You've been invited to premium channel!\n\nChannel: %s\nLink: %s\n\n⚠️ This link expires in 1 hour and is for you only!",
		title, link,
	)
	if _, err := s.platform.SendText(ctx, transport.ChatTarget{ChatID: userID}, text, nil); err != nil {
		return false, fmt.Errorf("deliver invite: %w", err)
	}

	s.log.Info("invite link sent",
		logx.String("channel", ch.ID),
		logx.Int64("user_id", userID))
	return true, nil
}
