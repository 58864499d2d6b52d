// Package bot routes inbound platform updates to command handlers,
// the relay, and the broadcast session machinery.
package bot

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"premiumbot/internal/broadcast"
	"premiumbot/internal/session"
	"premiumbot/internal/storage"
	"premiumbot/internal/transport"
	"premiumbot/pkg/logx"
)

type Access int

const (
	AccessEveryone Access = iota
	AccessAdminOnly
)

type HandlerFunc func(ctx context.Context, req *Request) error

type Command struct {
	Name        string
	Description string
	Usage       string
	Access      Access
	// LongRunning exempts the handler from the dispatch timeout. Fan-out
	// handlers must attempt every recipient; a deadline would abort the
	// remainder mid-flight.
	LongRunning bool
	Handle      HandlerFunc
}

type Request struct {
	Update  transport.Update
	Msg     *transport.Message
	Chat    transport.ChatTarget
	FromID  int64
	Command string
	Args    []string
	ReqID   string
	Logger  logx.Logger
}

// Broadcaster is the fan-out port (satisfied by *broadcast.Engine).
type Broadcaster interface {
	Broadcast(ctx context.Context, header string, msgs []session.Message, recipients []int64) broadcast.Summary
}

// Inviter issues premium channel invites (satisfied by *invite.Service).
type Inviter interface {
	InviteToChannels(ctx context.Context, userID int64) int
}

type Router struct {
	adapter  transport.Adapter
	store    storage.Store
	sessions *session.Manager
	engine   Broadcaster
	inviter  Inviter
	adminID  int64
	log      logx.Logger

	commands map[string]*Command

	// retract schedules the best-effort deletion of the relay ack.
	// Swappable for tests; failures are ignored.
	retractDelay time.Duration
	schedule     func(d time.Duration, fn func())
}

func NewRouter(
	adapter transport.Adapter,
	store storage.Store,
	sessions *session.Manager,
	engine Broadcaster,
	inviter Inviter,
	adminID int64,
	log logx.Logger,
) *Router {
	if log.IsZero() {
		log = logx.Nop()
	}
	r := &Router{
		adapter:      adapter,
		store:        store,
		sessions:     sessions,
		engine:       engine,
		inviter:      inviter,
		adminID:      adminID,
		log:          log,
		commands:     map[string]*Command{},
		retractDelay: 500 * time.Millisecond,
		schedule:     func(d time.Duration, fn func()) { time.AfterFunc(d, fn) },
	}
	r.registerCommands()
	return r
}

func (r *Router) register(cmds ...*Command) {
	for _, c := range cmds {
		r.commands[c.Name] = c
	}
}

// DispatchLoop consumes updates until ctx is done. The platform delivers
// events serially per conversation; one worker keeps session reads and
// writes ordered.
func (r *Router) DispatchLoop(ctx context.Context, updates <-chan transport.Update) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case up, ok := <-updates:
			if !ok {
				return nil
			}
			r.dispatch(ctx, up)
		}
	}
}

func (r *Router) dispatch(ctx context.Context, up transport.Update) {
	req := &Request{
		Update: up,
		ReqID:  uuid.NewString(),
	}
	req.Logger = r.log.With(logx.String("req", req.ReqID))

	var handler HandlerFunc
	bounded := true
	switch up.Kind {
	case transport.UpdateCallback:
		if up.Callback == nil {
			return
		}
		req.FromID = up.Callback.FromID
		req.Chat = transport.ChatTarget{ChatID: up.Callback.ChatID}
		req.Command = "callback:" + up.Callback.Data
		handler = r.handleCallback

	case transport.UpdateMessage:
		m := up.Message
		if m == nil || m.FromID == 0 {
			return
		}
		req.Msg = m
		req.FromID = m.FromID
		req.Chat = transport.ChatTarget{ChatID: m.ChatID}

		// Every inbound event refreshes the user directory; failures are
		// logged and the event still processed.
		if err := r.store.UpsertUser(ctx, m.FromID, m.FromUsername, time.Now()); err != nil {
			req.Logger.Error("saving user failed", logx.Int64("user_id", m.FromID), logx.Err(err))
		}

		if name, args, ok := parseCommand(m.Text); ok {
			if cmd := r.commands[name]; cmd != nil {
				req.Command = name
				req.Args = args
				if cmd.Access == AccessAdminOnly && req.FromID != r.adminID {
					handler = r.permissionDenied
				} else {
					handler = cmd.Handle
					bounded = !cmd.LongRunning
				}
				break
			}
		}
		// Not a recognized command: plain message path. A bare admin
		// message may trigger a premium fan-out, so it runs unbounded.
		handler = r.handlePlainMessage
		bounded = false

	default:
		return
	}

	mws := []Middleware{
		MWPanicRecover(req.Logger),
		MWRequestLog(req.Logger),
	}
	if bounded {
		mws = append(mws, MWTimeout(30*time.Second))
	}
	_ = Chain(handler, mws...)(ctx, req)
}

// parseCommand splits "/name arg1 arg2". A "@botname" suffix on the
// command is tolerated and stripped.
func parseCommand(text string) (name string, args []string, ok bool) {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "/") {
		return "", nil, false
	}
	fields := strings.Fields(text)
	name = strings.TrimPrefix(fields[0], "/")
	if i := strings.IndexByte(name, '@'); i >= 0 {
		name = name[:i]
	}
	if name == "" {
		return "", nil, false
	}
	return name, fields[1:], true
}

func (r *Router) permissionDenied(ctx context.Context, req *Request) error {
	r.reply(ctx, req, msgAdminOnly)
	return nil
}

// reply sends a plain text response to the originating chat. Send errors
// are logged, never propagated: a failed reply must not affect state.
func (r *Router) reply(ctx context.Context, req *Request, text string) {
	if _, err := r.adapter.SendText(ctx, req.Chat, text, nil); err != nil {
		req.Logger.Warn("reply failed", logx.Err(err))
	}
}
