package bot

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"premiumbot/internal/session"
	"premiumbot/internal/storage"
	"premiumbot/internal/transport"
	"premiumbot/pkg/logx"
)

// relayIDPattern recovers the origin user id embedded in a forwarded
// message header when the admin replies to it.
var relayIDPattern = regexp.MustCompile(`ID: (\d+)`)

func (r *Router) handlePlainMessage(ctx context.Context, req *Request) error {
	if req.FromID == r.adminID {
		return r.handleAdminMessage(ctx, req)
	}
	return r.handleUserMessage(ctx, req)
}

// handleUserMessage forwards a non-admin message to the admin, tagged
// with the sender's identity so a reply can be routed back.
func (r *Router) handleUserMessage(ctx context.Context, req *Request) error {
	banned, err := r.store.IsMember(ctx, storage.SetBanned, req.FromID)
	if err != nil {
		return err
	}
	if banned {
		r.reply(ctx, req, msgBannedUser)
		return nil
	}

	// Short-lived ack, retracted shortly after so the chat stays clean.
	// Both the send and the retraction are best effort.
	if ref, err := r.adapter.SendText(ctx, req.Chat, msgWaitForReply, nil); err != nil {
		req.Logger.Warn("sending wait message failed", logx.Err(err))
	} else {
		log := req.Logger
		r.schedule(r.retractDelay, func() {
			dctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := r.adapter.DeleteMessage(dctx, ref); err != nil {
				log.Warn("retracting wait message failed", logx.Err(err))
			}
		})
	}

	username := req.Msg.FromUsername
	if username == "" {
		username = "No username"
	}
	header := fmt.Sprintf("💬 Message from User:\n👤 @%s (ID: %d)\n\n", username, req.FromID)

	payload, ok := toPayload(req.Msg)
	if !ok {
		return nil
	}
	admin := transport.ChatTarget{ChatID: r.adminID}
	if err := r.sendPayload(ctx, admin, header, payload); err != nil {
		req.Logger.Error("forwarding user message failed", logx.Int64("user_id", req.FromID), logx.Err(err))
		return err
	}
	req.Logger.Info("user message forwarded", logx.Int64("user_id", req.FromID))
	return nil
}

// handleAdminMessage disambiguates a bare admin message: a reply to a
// forwarded user message relays back to that user; during an active
// collection session the message is buffered; otherwise it goes out
// immediately to the premium set.
func (r *Router) handleAdminMessage(ctx context.Context, req *Request) error {
	// Unknown slash commands are neither relayed nor broadcast.
	if strings.HasPrefix(strings.TrimSpace(req.Msg.Text), "/") {
		return nil
	}

	if req.Msg.ReplyTo != nil {
		if target, ok := relayTarget(req.Msg.ReplyTo.Text); ok {
			return r.relayAdminReply(ctx, req, target)
		}
		return nil
	}

	if r.sessions.Active(r.adminID) {
		payload, ok := toPayload(req.Msg)
		if !ok {
			return nil
		}
		n, ok := r.sessions.Append(r.adminID, payload)
		if !ok {
			return nil
		}
		req.Logger.Info("broadcast message collected", logx.Int("count", n), logx.String("kind", payload.Kind.String()))
		r.reply(ctx, req, fmt.Sprintf("✅ Message %d collected for all broadcast! Send /done to broadcast all messages.", n))
		return nil
	}

	return r.broadcastToPremium(ctx, req)
}

func relayTarget(quoted string) (int64, bool) {
	m := relayIDPattern.FindStringSubmatch(quoted)
	if m == nil {
		return 0, false
	}
	id, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

func (r *Router) relayAdminReply(ctx context.Context, req *Request, target int64) error {
	payload, ok := toPayload(req.Msg)
	if !ok {
		return nil
	}
	to := transport.ChatTarget{ChatID: target}
	if err := r.sendPayload(ctx, to, headerAdminReply, payload); err != nil {
		req.Logger.Error("admin reply relay failed", logx.Int64("user_id", target), logx.Err(err))
		return err
	}
	req.Logger.Info("admin reply relayed", logx.Int64("user_id", target))
	return nil
}

// broadcastToPremium sends one bare admin message to every premium
// member. The summary is logged, not echoed to the admin.
func (r *Router) broadcastToPremium(ctx context.Context, req *Request) error {
	payload, ok := toPayload(req.Msg)
	if !ok {
		return nil
	}
	members, err := r.store.ListMembers(ctx, storage.SetPremium)
	if err != nil {
		return err
	}
	if len(members) == 0 {
		req.Logger.Info("no premium members to broadcast to")
		return nil
	}
	recipients := make([]int64, len(members))
	for i, m := range members {
		recipients[i] = m.UserID
	}

	started := time.Now()
	sum := r.engine.Broadcast(ctx, headerPremiumBroadcast, []session.Message{payload}, recipients)
	r.recordBroadcast(ctx, req.Logger, "premium", started, sum)
	req.Logger.Info("premium broadcast completed",
		logx.Int("successful", sum.Successful),
		logx.Int("failed", sum.Failed),
	)
	return nil
}

// toPayload maps an inbound message onto a broadcastable payload.
// Unrecognized kinds (stickers, voice, and so on) report false.
func toPayload(m *transport.Message) (session.Message, bool) {
	switch {
	case m.Text != "":
		return session.Text(m.Text), true
	case m.PhotoID != "":
		return session.Photo(m.PhotoID, m.Caption), true
	case m.VideoID != "":
		return session.Video(m.VideoID, m.Caption), true
	case m.DocumentID != "":
		return session.Document(m.DocumentID, m.Caption), true
	}
	return session.Message{}, false
}

func (r *Router) sendPayload(ctx context.Context, to transport.ChatTarget, header string, p session.Message) error {
	switch p.Kind {
	case session.KindText:
		_, err := r.adapter.SendText(ctx, to, header+p.Body, nil)
		return err
	case session.KindPhoto:
		return r.adapter.SendPhoto(ctx, to, p.FileID, header+p.Caption)
	case session.KindVideo:
		return r.adapter.SendVideo(ctx, to, p.FileID, header+p.Caption)
	case session.KindDocument:
		return r.adapter.SendDocument(ctx, to, p.FileID, header+p.Caption)
	}
	return nil
}
