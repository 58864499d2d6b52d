package invite

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"premiumbot/internal/storage"
	"premiumbot/internal/transport"
	"premiumbot/pkg/logx"
)

type fakePlatform struct {
	standing map[string]transport.Standing
	failFor  map[string]error // per-channel failures (lookup or link creation)

	linksCreated []string
	sentTo       []int64
	sentText     []string
}

func (f *fakePlatform) ChatMemberStanding(_ context.Context, channelID string, _ int64) (transport.Standing, error) {
	if err := f.failFor[channelID]; err != nil {
		return transport.StandingNone, err
	}
	if s, ok := f.standing[channelID]; ok {
		return s, nil
	}
	return transport.StandingLeft, nil
}

func (f *fakePlatform) CreateInviteLink(_ context.Context, channelID string, ttl time.Duration, maxUses int) (string, error) {
	if ttl != time.Hour || maxUses != 1 {
		return "", errors.New("unexpected invite parameters")
	}
	f.linksCreated = append(f.linksCreated, channelID)
	return "https://t.me/+invite-" + channelID, nil
}

func (f *fakePlatform) SendText(_ context.Context, to transport.ChatTarget, text string, _ *transport.SendOptions) (transport.MessageRef, error) {
	f.sentTo = append(f.sentTo, to.ChatID)
	f.sentText = append(f.sentText, text)
	return transport.MessageRef{}, nil
}

type fakeChannels struct{ chans []storage.Channel }

func (f *fakeChannels) ListChannels(context.Context) ([]storage.Channel, error) {
	return f.chans, nil
}

func TestExistingMemberIsSkipped(t *testing.T) {
	t.Parallel()
	p := &fakePlatform{
		standing: map[string]transport.Standing{"-100A": transport.StandingMember},
		failFor:  map[string]error{},
	}
	svc := New(p, &fakeChannels{chans: []storage.Channel{{ID: "-100A"}}}, logx.Nop())

	sent := svc.InviteToChannels(context.Background(), 42)

	if sent != 0 {
		t.Fatalf("sent = %d, want 0 for a user already in the channel", sent)
	}
	if len(p.linksCreated) != 0 {
		t.Fatalf("invite links created = %v, want none", p.linksCreated)
	}
	if len(p.sentTo) != 0 {
		t.Fatalf("messages sent = %v, want none", p.sentTo)
	}
}

func TestOutsiderGetsSingleUseLink(t *testing.T) {
	t.Parallel()
	p := &fakePlatform{
		standing: map[string]transport.Standing{"-100A": transport.StandingLeft},
		failFor:  map[string]error{},
	}
	svc := New(p, &fakeChannels{chans: []storage.Channel{{ID: "-100A", Title: "Gold"}}}, logx.Nop())

	sent := svc.InviteToChannels(context.Background(), 42)

	if sent != 1 {
		t.Fatalf("sent = %d, want 1", sent)
	}
	if len(p.sentTo) != 1 || p.sentTo[0] != 42 {
		t.Fatalf("invite delivered to %v, want [42]", p.sentTo)
	}
	if !strings.Contains(p.sentText[0], "Gold") || !strings.Contains(p.sentText[0], "https://t.me/+invite--100A") {
		t.Fatalf("invite text = %q", p.sentText[0])
	}
}

func TestChannelFailuresAreIsolated(t *testing.T) {
	t.Parallel()
	p := &fakePlatform{
		standing: map[string]transport.Standing{},
		failFor:  map[string]error{"-100BAD": errors.New("chat not found")},
	}
	chans := []storage.Channel{{ID: "-100BAD"}, {ID: "-100OK"}}
	svc := New(p, &fakeChannels{chans: chans}, logx.Nop())

	sent := svc.InviteToChannels(context.Background(), 7)

	if sent != 1 {
		t.Fatalf("sent = %d, want the healthy channel despite the broken one", sent)
	}
	if len(p.linksCreated) != 1 || p.linksCreated[0] != "-100OK" {
		t.Fatalf("links created = %v, want only -100OK", p.linksCreated)
	}
}

func TestAdminStandingAlsoSkips(t *testing.T) {
	t.Parallel()
	for _, s := range []transport.Standing{transport.StandingCreator, transport.StandingAdministrator} {
		p := &fakePlatform{
			standing: map[string]transport.Standing{"-100A": s},
			failFor:  map[string]error{},
		}
		svc := New(p, &fakeChannels{chans: []storage.Channel{{ID: "-100A"}}}, logx.Nop())
		if sent := svc.InviteToChannels(context.Background(), 1); sent != 0 {
			t.Fatalf("standing %s: sent = %d, want 0", s, sent)
		}
	}
}
