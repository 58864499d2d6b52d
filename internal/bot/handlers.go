package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"premiumbot/internal/broadcast"
	"premiumbot/internal/session"
	"premiumbot/internal/storage"
	"premiumbot/internal/transport"
	"premiumbot/pkg/logx"
)

func (r *Router) registerCommands() {
	r.register(
		&Command{Name: "start", Description: "Start the bot", Access: AccessEveryone, Handle: r.cmdStart},

		&Command{Name: "addpremium", Description: "Add a premium member", Usage: "/addpremium <user_id>", Access: AccessAdminOnly, Handle: r.cmdAddPremium},
		&Command{Name: "removepremium", Description: "Remove a premium member", Usage: "/removepremium <user_id>", Access: AccessAdminOnly, Handle: r.cmdRemovePremium},
		&Command{Name: "listpremium", Description: "List premium members", Access: AccessAdminOnly, Handle: r.cmdListPremium},

		&Command{Name: "banuser", Description: "Ban a user", Usage: "/banuser <user_id>", Access: AccessAdminOnly, Handle: r.cmdBanUser},
		&Command{Name: "unbanuser", Description: "Unban a user", Usage: "/unbanuser <user_id>", Access: AccessAdminOnly, Handle: r.cmdUnbanUser},
		&Command{Name: "listbanned", Description: "List banned users", Access: AccessAdminOnly, Handle: r.cmdListBanned},

		&Command{Name: "addchannel", Description: "Add a premium channel", Usage: "/addchannel <channel_id> [channel_name]", Access: AccessAdminOnly, Handle: r.cmdAddChannel},
		&Command{Name: "listchannels", Description: "List premium channels", Access: AccessAdminOnly, Handle: r.cmdListChannels},
		&Command{Name: "removechannel", Description: "Remove a premium channel", Usage: "/removechannel <channel_id>", Access: AccessAdminOnly, Handle: r.cmdRemoveChannel},

		&Command{Name: "totalusers", Description: "User statistics", Access: AccessAdminOnly, Handle: r.cmdTotalUsers},
		&Command{Name: "stats", Description: "Bot statistics", Access: AccessAdminOnly, Handle: r.cmdStats},

		&Command{Name: "allbroadcast", Description: "Start collecting a broadcast", Access: AccessAdminOnly, Handle: r.cmdAllBroadcast},
		&Command{Name: "done", Description: "Send the collected broadcast", Access: AccessAdminOnly, LongRunning: true, Handle: r.cmdDone},
	)
}

func (r *Router) cmdStart(ctx context.Context, req *Request) error {
	banned, err := r.store.IsMember(ctx, storage.SetBanned, req.FromID)
	if err != nil {
		return err
	}
	if banned {
		r.reply(ctx, req, msgBannedUser)
		return nil
	}

	premium, err := r.store.IsMember(ctx, storage.SetPremium, req.FromID)
	if err != nil {
		return err
	}
	req.Logger.Info("user started the bot",
		logx.Int64("user_id", req.FromID),
		logx.String("username", req.Msg.FromUsername),
		logx.Bool("premium", premium),
	)

	if premium {
		invited := r.inviter.InviteToChannels(ctx, req.FromID)
		if invited > 0 {
			req.Logger.Info("premium channel invites sent",
				logx.Int64("user_id", req.FromID),
				logx.Int("channels", invited),
			)
		}
		r.reply(ctx, req, msgWelcomePremium)
		return nil
	}

	opt := &transport.SendOptions{Markup: &transport.InlineMarkup{
		Rows: [][]transport.Button{{{Text: buttonBuyPremium, Data: callbackBuyPremium}}},
	}}
	if _, err := r.adapter.SendText(ctx, req.Chat, msgWelcome, opt); err != nil {
		req.Logger.Warn("reply failed", logx.Err(err))
	}
	return nil
}

func (r *Router) handleCallback(ctx context.Context, req *Request) error {
	cb := req.Update.Callback
	if cb.Data != callbackBuyPremium {
		return nil
	}
	if err := r.adapter.AnswerCallback(ctx, cb.ID, ""); err != nil {
		req.Logger.Warn("answering callback failed", logx.Err(err))
	}
	ref := transport.MessageRef{ChatID: cb.ChatID, MessageID: cb.MessageID}
	if err := r.adapter.EditText(ctx, ref, msgPremiumInfo, nil); err != nil {
		req.Logger.Warn("editing message failed", logx.Err(err))
	}
	return nil
}

// parseUserArg extracts the user id argument shared by the membership
// commands. A reply has already been sent when ok is false.
func (r *Router) parseUserArg(ctx context.Context, req *Request, usage string) (int64, bool) {
	if len(req.Args) == 0 {
		r.reply(ctx, req, "Usage: "+usage)
		return 0, false
	}
	id, err := strconv.ParseInt(req.Args[0], 10, 64)
	if err != nil || id <= 0 {
		r.reply(ctx, req, msgInvalidUserID)
		return 0, false
	}
	return id, true
}

func (r *Router) cmdAddPremium(ctx context.Context, req *Request) error {
	id, ok := r.parseUserArg(ctx, req, "/addpremium <user_id>")
	if !ok {
		return nil
	}
	exists, err := r.store.IsMember(ctx, storage.SetPremium, id)
	if err != nil {
		r.reply(ctx, req, fmt.Sprintf("❌ Error adding user: %v", err))
		return err
	}
	if exists {
		r.reply(ctx, req, fmt.Sprintf("User %d is already a premium member!", id))
		return nil
	}
	m := storage.Member{UserID: id, AddedAt: time.Now(), AddedBy: req.FromID}
	if err := r.store.AddMember(ctx, storage.SetPremium, m); err != nil {
		r.reply(ctx, req, fmt.Sprintf("❌ Error adding user: %v", err))
		return err
	}
	req.Logger.Info("premium member added", logx.Int64("user_id", id))
	r.reply(ctx, req, fmt.Sprintf("✅ User %d has been added to premium members!", id))
	return nil
}

func (r *Router) cmdRemovePremium(ctx context.Context, req *Request) error {
	id, ok := r.parseUserArg(ctx, req, "/removepremium <user_id>")
	if !ok {
		return nil
	}
	removed, err := r.store.RemoveMember(ctx, storage.SetPremium, id)
	if err != nil {
		r.reply(ctx, req, fmt.Sprintf("❌ Error removing user: %v", err))
		return err
	}
	if !removed {
		r.reply(ctx, req, fmt.Sprintf("❌ User %d is not a premium member!", id))
		return nil
	}
	req.Logger.Info("premium member removed", logx.Int64("user_id", id))
	r.reply(ctx, req, fmt.Sprintf("✅ User %d has been removed from premium members!", id))
	return nil
}

func (r *Router) cmdListPremium(ctx context.Context, req *Request) error {
	members, err := r.store.ListMembers(ctx, storage.SetPremium)
	if err != nil {
		r.reply(ctx, req, fmt.Sprintf("❌ Error fetching premium users: %v", err))
		return err
	}
	if len(members) == 0 {
		r.reply(ctx, req, "📋 No premium users found!")
		return nil
	}
	var b strings.Builder
	b.WriteString("💎 Premium Users List:\n\n")
	for i, m := range members {
		fmt.Fprintf(&b, "%d. User ID: %d (Added: %s)\n", i+1, m.UserID, m.AddedAt.Format(listDateFormat))
	}
	r.reply(ctx, req, b.String())
	return nil
}

func (r *Router) cmdBanUser(ctx context.Context, req *Request) error {
	id, ok := r.parseUserArg(ctx, req, "/banuser <user_id>")
	if !ok {
		return nil
	}
	exists, err := r.store.IsMember(ctx, storage.SetBanned, id)
	if err != nil {
		r.reply(ctx, req, fmt.Sprintf("❌ Error banning user: %v", err))
		return err
	}
	if exists {
		r.reply(ctx, req, fmt.Sprintf("User %d is already banned!", id))
		return nil
	}
	m := storage.Member{UserID: id, AddedAt: time.Now(), AddedBy: req.FromID}
	if err := r.store.AddMember(ctx, storage.SetBanned, m); err != nil {
		r.reply(ctx, req, fmt.Sprintf("❌ Error banning user: %v", err))
		return err
	}
	req.Logger.Info("user banned", logx.Int64("user_id", id))
	r.reply(ctx, req, fmt.Sprintf("✅ User %d has been banned!", id))
	return nil
}

func (r *Router) cmdUnbanUser(ctx context.Context, req *Request) error {
	id, ok := r.parseUserArg(ctx, req, "/unbanuser <user_id>")
	if !ok {
		return nil
	}
	removed, err := r.store.RemoveMember(ctx, storage.SetBanned, id)
	if err != nil {
		r.reply(ctx, req, fmt.Sprintf("❌ Error unbanning user: %v", err))
		return err
	}
	if !removed {
		r.reply(ctx, req, fmt.Sprintf("❌ User %d is not banned!", id))
		return nil
	}
	req.Logger.Info("user unbanned", logx.Int64("user_id", id))
	r.reply(ctx, req, fmt.Sprintf("✅ User %d has been unbanned!", id))
	return nil
}

func (r *Router) cmdListBanned(ctx context.Context, req *Request) error {
	members, err := r.store.ListMembers(ctx, storage.SetBanned)
	if err != nil {
		r.reply(ctx, req, fmt.Sprintf("❌ Error fetching banned users: %v", err))
		return err
	}
	if len(members) == 0 {
		r.reply(ctx, req, "📋 No banned users found!")
		return nil
	}
	var b strings.Builder
	b.WriteString("🚫 Banned Users List:\n\n")
	for i, m := range members {
		fmt.Fprintf(&b, "%d. User ID: %d (Banned: %s)\n", i+1, m.UserID, m.AddedAt.Format(listDateFormat))
	}
	r.reply(ctx, req, b.String())
	return nil
}

// normalizeChannelID matches the historical convention: bare numeric ids
// get a "-" prefix, "@" handles are kept as-is.
func normalizeChannelID(id string) string {
	if strings.HasPrefix(id, "-") || strings.HasPrefix(id, "@") {
		return id
	}
	return "-" + id
}

func (r *Router) cmdAddChannel(ctx context.Context, req *Request) error {
	if len(req.Args) == 0 {
		r.reply(ctx, req, "Usage: /addchannel <channel_id> [channel_name]")
		return nil
	}
	id := normalizeChannelID(req.Args[0])
	title := strings.Join(req.Args[1:], " ")
	if title == "" {
		title = "Premium Channel"
	}

	exists, err := r.store.HasChannel(ctx, id)
	if err != nil {
		r.reply(ctx, req, fmt.Sprintf("❌ Error adding channel: %v", err))
		return err
	}
	if exists {
		r.reply(ctx, req, fmt.Sprintf("Channel %s is already in the premium channels list!", id))
		return nil
	}

	// Prefer the live channel title; keep the supplied name when the
	// platform cannot resolve the chat.
	if resolved, err := r.adapter.ChannelTitle(ctx, id); err == nil && resolved != "" {
		title = resolved
	} else if err != nil {
		req.Logger.Warn("could not resolve channel title", logx.String("channel", id), logx.Err(err))
	}

	ch := storage.Channel{ID: id, Title: title, AddedAt: time.Now(), AddedBy: req.FromID}
	if err := r.store.AddChannel(ctx, ch); err != nil {
		r.reply(ctx, req, fmt.Sprintf("❌ Error adding channel: %v", err))
		return err
	}
	req.Logger.Info("premium channel added", logx.String("channel", id), logx.String("title", title))
	r.reply(ctx, req, fmt.Sprintf("✅ Channel %s (%s) has been added to premium channels!", title, id))
	return nil
}

func (r *Router) cmdListChannels(ctx context.Context, req *Request) error {
	channels, err := r.store.ListChannels(ctx)
	if err != nil {
		r.reply(ctx, req, fmt.Sprintf("❌ Error fetching premium channels: %v", err))
		return err
	}
	if len(channels) == 0 {
		r.reply(ctx, req, "📋 No premium channels found!")
		return nil
	}
	var b strings.Builder
	b.WriteString("📺 Premium Channels List:\n\n")
	for i, ch := range channels {
		fmt.Fprintf(&b, "%d. %s\n   ID: %s\n   Added: %s\n\n", i+1, ch.Title, ch.ID, ch.AddedAt.Format(listDateFormat))
	}
	r.reply(ctx, req, b.String())
	return nil
}

func (r *Router) cmdRemoveChannel(ctx context.Context, req *Request) error {
	if len(req.Args) == 0 {
		r.reply(ctx, req, "Usage: /removechannel <channel_id>")
		return nil
	}
	id := normalizeChannelID(req.Args[0])
	removed, err := r.store.RemoveChannel(ctx, id)
	if err != nil {
		r.reply(ctx, req, fmt.Sprintf("❌ Error removing channel: %v", err))
		return err
	}
	if !removed {
		r.reply(ctx, req, fmt.Sprintf("❌ Channel %s is not in the premium channels list!", id))
		return nil
	}
	req.Logger.Info("premium channel removed", logx.String("channel", id))
	r.reply(ctx, req, fmt.Sprintf("✅ Channel %s has been removed from premium channels!", id))
	return nil
}

func (r *Router) cmdTotalUsers(ctx context.Context, req *Request) error {
	total, err := r.store.CountUsers(ctx)
	if err != nil {
		r.reply(ctx, req, fmt.Sprintf("❌ Error fetching user statistics: %v", err))
		return err
	}
	premium, err := r.store.CountMembers(ctx, storage.SetPremium)
	if err != nil {
		r.reply(ctx, req, fmt.Sprintf("❌ Error fetching user statistics: %v", err))
		return err
	}
	banned, err := r.store.CountMembers(ctx, storage.SetBanned)
	if err != nil {
		r.reply(ctx, req, fmt.Sprintf("❌ Error fetching user statistics: %v", err))
		return err
	}
	r.reply(ctx, req, fmt.Sprintf(
		"📊 User Statistics:\n\n"+
			"👥 Total Users: %d\n"+
			"💎 Premium Users: %d\n"+
			"🚫 Banned Users: %d\n"+
			"👤 Regular Users: %d",
		total, premium, banned, total-premium-banned,
	))
	return nil
}

func (r *Router) cmdStats(ctx context.Context, req *Request) error {
	text, err := r.StatsDigest(ctx)
	if err != nil {
		r.reply(ctx, req, fmt.Sprintf("❌ Error fetching stats: %v", err))
		return err
	}
	r.reply(ctx, req, text)
	return nil
}

// StatsDigest renders the operational summary shown by /stats and sent
// by the scheduled daily digest.
func (r *Router) StatsDigest(ctx context.Context) (string, error) {
	total, err := r.store.CountUsers(ctx)
	if err != nil {
		return "", err
	}
	premium, err := r.store.CountMembers(ctx, storage.SetPremium)
	if err != nil {
		return "", err
	}
	banned, err := r.store.CountMembers(ctx, storage.SetBanned)
	if err != nil {
		return "", err
	}
	channels, err := r.store.CountChannels(ctx)
	if err != nil {
		return "", err
	}
	now := time.Now()
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	today, err := r.store.CountBroadcastsSince(ctx, midnight)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf(
		"📊 Bot Statistics:\n\n"+
			"👥 Total Users: %d\n"+
			"💎 Premium Users: %d\n"+
			"🚫 Banned Users: %d\n"+
			"📺 Premium Channels: %d\n"+
			"📢 Today's Broadcasts: %d\n"+
			"🤖 Bot Status: Active",
		total, premium, banned, channels, today,
	), nil
}

func (r *Router) cmdAllBroadcast(ctx context.Context, req *Request) error {
	r.sessions.Begin(req.FromID)
	req.Logger.Info("broadcast collection started", logx.Int64("admin", req.FromID))
	r.reply(ctx, req, msgBroadcastActivated)
	return nil
}

func (r *Router) cmdDone(ctx context.Context, req *Request) error {
	msgs, err := r.sessions.Flush(req.FromID)
	switch {
	case errors.Is(err, session.ErrNoSession):
		r.reply(ctx, req, msgNoSession)
		return nil
	case errors.Is(err, session.ErrNoMessages):
		r.reply(ctx, req, msgNoMessages)
		return nil
	case err != nil:
		return err
	}

	recipients, err := r.activeRecipients(ctx)
	if err != nil {
		r.reply(ctx, req, fmt.Sprintf("❌ All broadcast failed: %v", err))
		return err
	}
	if len(recipients) == 0 {
		r.reply(ctx, req, msgNoActiveUsers)
		return nil
	}

	started := time.Now()
	sum := r.engine.Broadcast(ctx, headerAllBroadcast, msgs, recipients)
	r.recordBroadcast(ctx, req.Logger, "all", started, sum)

	r.reply(ctx, req, fmt.Sprintf(
		"📊 All Broadcast Summary:\n"+
			"✅ Successful: %d\n"+
			"❌ Failed: %d\n"+
			"📋 Total: %d\n"+
			"📩 Messages sent: %d",
		sum.Successful, sum.Failed, sum.TotalRecipients, sum.TotalMessages,
	))
	return nil
}

// activeRecipients is the full directory minus the banned set.
func (r *Router) activeRecipients(ctx context.Context) ([]int64, error) {
	users, err := r.store.ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	banned, err := r.store.ListMembers(ctx, storage.SetBanned)
	if err != nil {
		return nil, err
	}
	excluded := make(map[int64]struct{}, len(banned))
	for _, m := range banned {
		excluded[m.UserID] = struct{}{}
	}
	out := make([]int64, 0, len(users))
	for _, u := range users {
		if _, skip := excluded[u.ID]; !skip {
			out = append(out, u.ID)
		}
	}
	return out, nil
}

func (r *Router) recordBroadcast(ctx context.Context, log logx.Logger, kind string, started time.Time, sum broadcast.Summary) {
	err := r.store.AppendBroadcast(ctx, storage.BroadcastRecord{
		ID:         uuid.NewString(),
		Kind:       kind,
		Messages:   sum.TotalMessages,
		Recipients: sum.TotalRecipients,
		Successful: sum.Successful,
		Failed:     sum.Failed,
		StartedAt:  started,
		FinishedAt: time.Now(),
	})
	if err != nil {
		log.Error("recording broadcast failed", logx.String("kind", kind), logx.Err(err))
	}
}
