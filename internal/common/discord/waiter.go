package discord

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
)

var (
	ErrWaitTimeout  = errors.New("WAIT_TIMEOUT")
	ErrWaitReplaced = errors.New("WAIT_REPLACED")
)

type pending struct {
	ch chan *discordgo.Message
}

// MessageWaiter hands the next plain message from a user in a channel to
// whoever is waiting for it. One waiter per (channel, user); a new Wait
// replaces the old one.
type MessageWaiter struct {
	mu      sync.Mutex
	waiters map[string]*pending
}

func NewMessageWaiter() *MessageWaiter {
	return &MessageWaiter{waiters: make(map[string]*pending)}
}

func waitKey(channelID, userID string) string {
	return channelID + ":" + userID
}

// Wait blocks until a matching message arrives, timeout elapses, ctx ends,
// or another Wait for the same key takes over.
func (w *MessageWaiter) Wait(ctx context.Context, channelID, userID string, timeout time.Duration) (*discordgo.Message, error) {
	p := &pending{ch: make(chan *discordgo.Message, 1)}
	key := waitKey(channelID, userID)

	w.mu.Lock()
	if old, ok := w.waiters[key]; ok {
		close(old.ch)
	}
	w.waiters[key] = p
	w.mu.Unlock()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case msg, ok := <-p.ch:
		if !ok {
			return nil, ErrWaitReplaced
		}
		return msg, nil
	case <-timer.C:
		w.drop(key, p)
		return nil, ErrWaitTimeout
	case <-ctx.Done():
		w.drop(key, p)
		return nil, ctx.Err()
	}
}

func (w *MessageWaiter) drop(key string, p *pending) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if cur, ok := w.waiters[key]; ok && cur == p {
		delete(w.waiters, key)
	}
}

// Deliver routes m to a waiter. It reports whether anyone consumed it.
func (w *MessageWaiter) Deliver(m *discordgo.Message) bool {
	if m == nil || m.Author == nil || m.Author.Bot {
		return false
	}
	key := waitKey(m.ChannelID, m.Author.ID)

	w.mu.Lock()
	p, ok := w.waiters[key]
	if ok {
		delete(w.waiters, key)
	}
	w.mu.Unlock()

	if !ok {
		return false
	}
	p.ch <- m
	return true
}

// Pending reports whether a wait is registered for the pair.
func (w *MessageWaiter) Pending(channelID, userID string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	_, ok := w.waiters[waitKey(channelID, userID)]
	return ok
}

// OnMessageCreate is registered with the gateway session.
func (w *MessageWaiter) OnMessageCreate(_ *discordgo.Session, m *discordgo.MessageCreate) {
	if m == nil {
		return
	}
	w.Deliver(m.Message)
}
