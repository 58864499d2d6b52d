// Package telegram implements the platform adapter on top of telebot.
package telegram

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	tele "gopkg.in/telebot.v4"

	kit "premiumbot/internal/transport"
	"premiumbot/pkg/logx"
)

type Config struct {
	Token       string
	PollTimeout time.Duration
}

type Adapter struct {
	cfg Config
	log logx.Logger

	bot     *tele.Bot
	out     atomic.Value // stores (chan<- kit.Update)
	runMu   sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	// droppedUpdates counts updates dropped because the consumer was slower
	// than the poll loop. Logged periodically to avoid per-update spam.
	droppedUpdates uint64
}

func New(cfg Config, log logx.Logger) (*Adapter, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("telegram token is empty")
	}
	timeout := cfg.PollTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	b, err := tele.NewBot(tele.Settings{
		Token:  cfg.Token,
		Poller: &tele.LongPoller{Timeout: timeout},
	})
	if err != nil {
		return nil, err
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	a := &Adapter{cfg: cfg, log: log, bot: b}
	// Ensure atomic.Value is initialized with a stable dynamic type.
	var nilOut chan<- kit.Update
	a.out.Store(nilOut)
	a.registerHandlers()
	return a, nil
}

func (a *Adapter) registerHandlers() {
	// Handlers forward to the CURRENT output channel. Start() may swap it.
	forward := func(c tele.Context) error {
		m := c.Message()
		if m == nil || m.Sender == nil {
			return nil
		}
		msg := &kit.Message{
			ID:           m.ID,
			ChatID:       m.Chat.ID,
			FromID:       m.Sender.ID,
			FromUsername: m.Sender.Username,
			Text:         m.Text,
			Caption:      m.Caption,
		}
		switch {
		case m.Photo != nil:
			msg.PhotoID = m.Photo.FileID
		case m.Video != nil:
			msg.VideoID = m.Video.FileID
		case m.Document != nil:
			msg.DocumentID = m.Document.FileID
		}
		if r := m.ReplyTo; r != nil {
			text := r.Text
			if text == "" {
				text = r.Caption
			}
			msg.ReplyTo = &kit.ReplyRef{MessageID: r.ID, Text: text}
		}
		a.sendUpdate(kit.Update{Kind: kit.UpdateMessage, Message: msg})
		return nil
	}

	a.bot.Handle(tele.OnText, forward)
	a.bot.Handle(tele.OnPhoto, forward)
	a.bot.Handle(tele.OnVideo, forward)
	a.bot.Handle(tele.OnDocument, forward)

	a.bot.Handle(tele.OnCallback, func(c tele.Context) error {
		cb := c.Callback()
		m := c.Message()
		if cb == nil || m == nil {
			return nil
		}
		a.sendUpdate(kit.Update{
			Kind: kit.UpdateCallback,
			Callback: &kit.Callback{
				ID:        cb.ID,
				ChatID:    m.Chat.ID,
				FromID:    cb.Sender.ID,
				MessageID: m.ID,
				Data:      strings.TrimPrefix(strings.TrimSpace(cb.Data), "\f"),
			},
		})
		return nil
	})
}

func (a *Adapter) sendUpdate(up kit.Update) {
	v := a.out.Load()
	out, _ := v.(chan<- kit.Update)
	if out == nil {
		return
	}
	select {
	case out <- up:
	default:
		atomic.AddUint64(&a.droppedUpdates, 1)
	}
}

func (a *Adapter) Start(ctx context.Context, out chan<- kit.Update) error {
	if ctx == nil {
		ctx = context.Background()
	}
	a.runMu.Lock()
	if a.running {
		a.runMu.Unlock()
		return nil
	}
	a.running = true
	a.out.Store(out)
	rctx, cancel := context.WithCancel(ctx)
	a.cancel = cancel
	a.runMu.Unlock()

	// Periodic summary for dropped updates.
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		ticker := time.NewTicker(5 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-rctx.Done():
				if n := atomic.SwapUint64(&a.droppedUpdates, 0); n > 0 {
					a.log.Warn("incoming updates dropped (channel full)", logx.Uint64("count", n))
				}
				return
			case <-ticker.C:
				if n := atomic.SwapUint64(&a.droppedUpdates, 0); n > 0 {
					a.log.Warn("incoming updates dropped (channel full)", logx.Uint64("count", n))
				}
			}
		}
	}()

	// Stop telebot when the adapter context is cancelled.
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		<-rctx.Done()
		if a.bot != nil {
			a.bot.Stop()
		}
	}()

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		a.log.Info("polling started")
		// Start blocks until Stop() is called.
		a.bot.Start()
		a.log.Info("polling stopped")
	}()

	return nil
}

func (a *Adapter) Stop(ctx context.Context) error {
	a.runMu.Lock()
	cancel := a.cancel
	a.cancel = nil
	wasRunning := a.running
	a.running = false
	var nilOut chan<- kit.Update
	a.out.Store(nilOut)
	a.runMu.Unlock()

	if !wasRunning {
		return nil
	}
	if cancel != nil {
		cancel()
	}

	// Grace window: keep shutdown snappy even if the long-poll is still waiting.
	done := make(chan struct{})
	go func() {
		a.wg.Wait()
		close(done)
	}()

	grace := 2 * time.Second
	if dl, ok := ctx.Deadline(); ok {
		if rem := time.Until(dl); rem > 0 && rem < grace {
			grace = rem
		}
	}
	select {
	case <-done:
	case <-time.After(grace):
		a.log.Warn("telegram stop timed out")
	}
	return nil
}

// ---- Sends ----

func (a *Adapter) SendText(ctx context.Context, to kit.ChatTarget, text string, opt *kit.SendOptions) (kit.MessageRef, error) {
	if opt == nil {
		opt = &kit.SendOptions{}
	}
	chunks := splitText(text, telegramTextLimit)
	if len(chunks) == 0 {
		chunks = []string{""}
	}

	chat := &tele.Chat{ID: to.ChatID}
	var first kit.MessageRef
	for i, chunk := range chunks {
		if err := ctxErr(ctx); err != nil {
			if first.ChatID != 0 {
				return first, err
			}
			return kit.MessageRef{}, err
		}

		sendOpt := &tele.SendOptions{
			ParseMode:             opt.ParseMode,
			DisableWebPagePreview: opt.DisablePreview,
		}
		// Attach markup only to the first message.
		if i == 0 && opt.Markup != nil {
			sendOpt.ReplyMarkup = toTeleMarkup(opt.Markup)
		}

		msg, err := a.bot.Send(chat, chunk, sendOpt)
		if err != nil {
			if first.ChatID != 0 {
				return first, err
			}
			return kit.MessageRef{}, err
		}
		if i == 0 {
			first = kit.MessageRef{ChatID: to.ChatID, MessageID: msg.ID}
		}
	}
	return first, nil
}

func (a *Adapter) SendPhoto(ctx context.Context, to kit.ChatTarget, fileID, caption string) error {
	if err := ctxErr(ctx); err != nil {
		return err
	}
	p := &tele.Photo{File: tele.File{FileID: fileID}, Caption: caption}
	_, err := a.bot.Send(&tele.Chat{ID: to.ChatID}, p)
	return err
}

func (a *Adapter) SendVideo(ctx context.Context, to kit.ChatTarget, fileID, caption string) error {
	if err := ctxErr(ctx); err != nil {
		return err
	}
	v := &tele.Video{File: tele.File{FileID: fileID}, Caption: caption}
	_, err := a.bot.Send(&tele.Chat{ID: to.ChatID}, v)
	return err
}

func (a *Adapter) SendDocument(ctx context.Context, to kit.ChatTarget, fileID, caption string) error {
	if err := ctxErr(ctx); err != nil {
		return err
	}
	d := &tele.Document{File: tele.File{FileID: fileID}, Caption: caption}
	_, err := a.bot.Send(&tele.Chat{ID: to.ChatID}, d)
	return err
}

func (a *Adapter) EditText(ctx context.Context, ref kit.MessageRef, text string, opt *kit.SendOptions) error {
	if err := ctxErr(ctx); err != nil {
		return err
	}
	if opt == nil {
		opt = &kit.SendOptions{}
	}
	m := &tele.Message{ID: ref.MessageID, Chat: &tele.Chat{ID: ref.ChatID}}
	sendOpt := &tele.SendOptions{ParseMode: opt.ParseMode, DisableWebPagePreview: opt.DisablePreview}
	if opt.Markup != nil {
		sendOpt.ReplyMarkup = toTeleMarkup(opt.Markup)
	}
	_, err := a.bot.Edit(m, text, sendOpt)
	return err
}

func (a *Adapter) DeleteMessage(ctx context.Context, ref kit.MessageRef) error {
	if err := ctxErr(ctx); err != nil {
		return err
	}
	return a.bot.Delete(&tele.Message{ID: ref.MessageID, Chat: &tele.Chat{ID: ref.ChatID}})
}

func (a *Adapter) AnswerCallback(ctx context.Context, callbackID string, text string) error {
	if err := ctxErr(ctx); err != nil {
		return err
	}
	return a.bot.Respond(&tele.Callback{ID: callbackID}, &tele.CallbackResponse{Text: text})
}

// ---- Channel operations ----

// channelRecipient lets "-100..." and "@name" channel ids be used directly
// as telebot recipients.
type channelRecipient string

func (r channelRecipient) Recipient() string { return string(r) }

func (a *Adapter) ChatMemberStanding(ctx context.Context, channelID string, userID int64) (kit.Standing, error) {
	if err := ctxErr(ctx); err != nil {
		return kit.StandingNone, err
	}
	member, err := a.bot.ChatMemberOf(channelRecipient(channelID), &tele.User{ID: userID})
	if err != nil {
		return kit.StandingNone, err
	}
	switch member.Role {
	case tele.Creator:
		return kit.StandingCreator, nil
	case tele.Administrator:
		return kit.StandingAdministrator, nil
	case tele.Member:
		return kit.StandingMember, nil
	case tele.Restricted:
		return kit.StandingRestricted, nil
	case tele.Left:
		return kit.StandingLeft, nil
	case tele.Kicked:
		return kit.StandingKicked, nil
	}
	return kit.StandingNone, nil
}

func (a *Adapter) CreateInviteLink(ctx context.Context, channelID string, ttl time.Duration, maxUses int) (string, error) {
	if err := ctxErr(ctx); err != nil {
		return "", err
	}
	link, err := a.bot.CreateInviteLink(channelRecipient(channelID), &tele.ChatInviteLink{
		ExpireUnixtime: time.Now().Add(ttl).Unix(),
		MemberLimit:    maxUses,
	})
	if err != nil {
		return "", err
	}
	return link.InviteLink, nil
}

func (a *Adapter) ChannelTitle(ctx context.Context, channelID string) (string, error) {
	if err := ctxErr(ctx); err != nil {
		return "", err
	}
	var (
		chat *tele.Chat
		err  error
	)
	if strings.HasPrefix(channelID, "@") {
		chat, err = a.bot.ChatByUsername(channelID)
	} else {
		var id int64
		id, err = strconv.ParseInt(channelID, 10, 64)
		if err != nil {
			return "", err
		}
		chat, err = a.bot.ChatByID(id)
	}
	if err != nil {
		return "", err
	}
	return chat.Title, nil
}

func toTeleMarkup(m *kit.InlineMarkup) *tele.ReplyMarkup {
	rm := &tele.ReplyMarkup{}
	rows := make([][]tele.InlineButton, 0, len(m.Rows))
	for _, row := range m.Rows {
		btns := make([]tele.InlineButton, 0, len(row))
		for _, b := range row {
			btns = append(btns, tele.InlineButton{Text: b.Text, Data: b.Data})
		}
		rows = append(rows, btns)
	}
	rm.InlineKeyboard = rows
	return rm
}

func ctxErr(ctx context.Context) error {
	if ctx == nil {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return nil
	}
}
