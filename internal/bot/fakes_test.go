package bot

import (
	"context"
	"fmt"
	"sync"
	"time"

	"premiumbot/internal/broadcast"
	"premiumbot/internal/session"
	"premiumbot/internal/storage"
	"premiumbot/internal/transport"
)

type sentItem struct {
	ChatID  int64
	Kind    string
	Text    string
	FileID  string
	Caption string
	Markup  *transport.InlineMarkup
}

type fakeAdapter struct {
	mu      sync.Mutex
	nextID  int
	sent    []sentItem
	deleted []transport.MessageRef
	edited  []string
	answers []string

	titles map[string]string
}

func (f *fakeAdapter) Start(context.Context, chan<- transport.Update) error { return nil }
func (f *fakeAdapter) Stop(context.Context) error                           { return nil }

func (f *fakeAdapter) SendText(_ context.Context, to transport.ChatTarget, text string, opt *transport.SendOptions) (transport.MessageRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	item := sentItem{ChatID: to.ChatID, Kind: "text", Text: text}
	if opt != nil {
		item.Markup = opt.Markup
	}
	f.sent = append(f.sent, item)
	return transport.MessageRef{ChatID: to.ChatID, MessageID: f.nextID}, nil
}

func (f *fakeAdapter) sendMedia(to transport.ChatTarget, kind, fileID, caption string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sentItem{ChatID: to.ChatID, Kind: kind, FileID: fileID, Caption: caption})
	return nil
}

func (f *fakeAdapter) SendPhoto(_ context.Context, to transport.ChatTarget, fileID, caption string) error {
	return f.sendMedia(to, "photo", fileID, caption)
}

func (f *fakeAdapter) SendVideo(_ context.Context, to transport.ChatTarget, fileID, caption string) error {
	return f.sendMedia(to, "video", fileID, caption)
}

func (f *fakeAdapter) SendDocument(_ context.Context, to transport.ChatTarget, fileID, caption string) error {
	return f.sendMedia(to, "document", fileID, caption)
}

func (f *fakeAdapter) EditText(_ context.Context, _ transport.MessageRef, text string, _ *transport.SendOptions) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.edited = append(f.edited, text)
	return nil
}

func (f *fakeAdapter) DeleteMessage(_ context.Context, ref transport.MessageRef) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, ref)
	return nil
}

func (f *fakeAdapter) AnswerCallback(_ context.Context, callbackID, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.answers = append(f.answers, callbackID)
	return nil
}

func (f *fakeAdapter) ChatMemberStanding(context.Context, string, int64) (transport.Standing, error) {
	return transport.StandingLeft, nil
}

func (f *fakeAdapter) CreateInviteLink(_ context.Context, channelID string, _ time.Duration, _ int) (string, error) {
	return "https://t.me/+invite-" + channelID, nil
}

func (f *fakeAdapter) ChannelTitle(_ context.Context, channelID string) (string, error) {
	if t, ok := f.titles[channelID]; ok {
		return t, nil
	}
	return "", fmt.Errorf("chat not found: %s", channelID)
}

// sentTo returns the texts sent to one chat, in order.
func (f *fakeAdapter) sentTo(chatID int64) []sentItem {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []sentItem
	for _, s := range f.sent {
		if s.ChatID == chatID {
			out = append(out, s)
		}
	}
	return out
}

type memStore struct {
	mu         sync.Mutex
	users      map[int64]storage.User
	userOrder  []int64
	members    map[storage.Set]map[int64]storage.Member
	memOrder   map[storage.Set][]int64
	channels   map[string]storage.Channel
	chanOrder  []string
	broadcasts []storage.BroadcastRecord
}

func newMemStore() *memStore {
	return &memStore{
		users:    map[int64]storage.User{},
		members:  map[storage.Set]map[int64]storage.Member{},
		memOrder: map[storage.Set][]int64{},
		channels: map[string]storage.Channel{},
	}
}

func (s *memStore) UpsertUser(_ context.Context, id int64, username string, seen time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[id]; !ok {
		s.userOrder = append(s.userOrder, id)
	}
	s.users[id] = storage.User{ID: id, Username: username, LastSeen: seen}
	return nil
}

func (s *memStore) ListUsers(context.Context) ([]storage.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]storage.User, 0, len(s.userOrder))
	for _, id := range s.userOrder {
		out = append(out, s.users[id])
	}
	return out, nil
}

func (s *memStore) CountUsers(context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.users), nil
}

func (s *memStore) IsMember(_ context.Context, set storage.Set, id int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.members[set][id]
	return ok, nil
}

func (s *memStore) AddMember(_ context.Context, set storage.Set, m storage.Member) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.members[set] == nil {
		s.members[set] = map[int64]storage.Member{}
	}
	if _, ok := s.members[set][m.UserID]; !ok {
		s.memOrder[set] = append(s.memOrder[set], m.UserID)
	}
	s.members[set][m.UserID] = m
	return nil
}

func (s *memStore) RemoveMember(_ context.Context, set storage.Set, id int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.members[set][id]; !ok {
		return false, nil
	}
	delete(s.members[set], id)
	order := s.memOrder[set][:0]
	for _, v := range s.memOrder[set] {
		if v != id {
			order = append(order, v)
		}
	}
	s.memOrder[set] = order
	return true, nil
}

func (s *memStore) ListMembers(_ context.Context, set storage.Set) ([]storage.Member, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]storage.Member, 0, len(s.memOrder[set]))
	for _, id := range s.memOrder[set] {
		out = append(out, s.members[set][id])
	}
	return out, nil
}

func (s *memStore) CountMembers(_ context.Context, set storage.Set) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.members[set]), nil
}

func (s *memStore) AddChannel(_ context.Context, ch storage.Channel) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.channels[ch.ID]; !ok {
		s.chanOrder = append(s.chanOrder, ch.ID)
	}
	s.channels[ch.ID] = ch
	return nil
}

func (s *memStore) RemoveChannel(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.channels[id]; !ok {
		return false, nil
	}
	delete(s.channels, id)
	order := s.chanOrder[:0]
	for _, v := range s.chanOrder {
		if v != id {
			order = append(order, v)
		}
	}
	s.chanOrder = order
	return true, nil
}

func (s *memStore) HasChannel(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.channels[id]
	return ok, nil
}

func (s *memStore) ListChannels(context.Context) ([]storage.Channel, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]storage.Channel, 0, len(s.chanOrder))
	for _, id := range s.chanOrder {
		out = append(out, s.channels[id])
	}
	return out, nil
}

func (s *memStore) CountChannels(context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.channels), nil
}

func (s *memStore) AppendBroadcast(_ context.Context, rec storage.BroadcastRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.broadcasts = append(s.broadcasts, rec)
	return nil
}

func (s *memStore) CountBroadcastsSince(_ context.Context, t time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, rec := range s.broadcasts {
		if !rec.StartedAt.Before(t) {
			n++
		}
	}
	return n, nil
}

func (s *memStore) PruneBroadcasts(_ context.Context, before time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.broadcasts[:0]
	var pruned int64
	for _, rec := range s.broadcasts {
		if rec.StartedAt.Before(before) {
			pruned++
			continue
		}
		kept = append(kept, rec)
	}
	s.broadcasts = kept
	return pruned, nil
}

func (s *memStore) Close() error { return nil }

type engineCall struct {
	Header      string
	Messages    []session.Message
	Recipients  []int64
	HasDeadline bool
}

type fakeEngine struct {
	mu      sync.Mutex
	calls   []engineCall
	failAll bool
}

func (f *fakeEngine) Broadcast(ctx context.Context, header string, msgs []session.Message, recipients []int64) broadcast.Summary {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, hasDeadline := ctx.Deadline()
	f.calls = append(f.calls, engineCall{Header: header, Messages: msgs, Recipients: recipients, HasDeadline: hasDeadline})
	sum := broadcast.Summary{TotalRecipients: len(recipients), TotalMessages: len(msgs)}
	if f.failAll {
		sum.Failed = len(recipients)
	} else {
		sum.Successful = len(recipients)
	}
	return sum
}

type fakeInviter struct {
	mu    sync.Mutex
	users []int64
	sent  int
}

func (f *fakeInviter) InviteToChannels(_ context.Context, userID int64) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.users = append(f.users, userID)
	return f.sent
}
