package telegram

import (
	"context"
	"sync"

	"github.com/digkill/TiendiaBot/internal/catalog"
	"github.com/digkill/TiendiaBot/internal/generation"
	"github.com/digkill/TiendiaBot/internal/session"
	"github.com/digkill/TiendiaBot/internal/slider"
)

type Step int

const (
	StepIdle Step = iota
	StepAwaitingEmail
	StepAwaitingPassword
)

// Chat is the application state of one conversation: what a single device
// holds in the mobile app.
type Chat struct {
	ID         int64
	Session    *session.Session
	Catalog    *catalog.Store
	Generation *generation.Machine

	mu           sync.Mutex
	step         Step
	pendingEmail string
	country      string
	slider       *slider.Slider
	before       []byte
	after        []byte
	compareMsgID int
	attractSeq   int
}

func (c *Chat) Step() Step {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.step
}

func (c *Chat) SetStep(step Step) {
	c.mu.Lock()
	c.step = step
	if step == StepIdle {
		c.pendingEmail = ""
	}
	c.mu.Unlock()
}

func (c *Chat) setPendingEmail(email string) {
	c.mu.Lock()
	c.pendingEmail = email
	c.step = StepAwaitingPassword
	c.mu.Unlock()
}

func (c *Chat) takePendingEmail() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	email := c.pendingEmail
	c.pendingEmail = ""
	c.step = StepIdle
	return email
}

func (c *Chat) Country() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.country
}

func (c *Chat) SetCountry(country string) {
	c.mu.Lock()
	c.country = country
	c.mu.Unlock()
}

// clearComparison forgets the slider and its images.
func (c *Chat) clearComparison() {
	c.mu.Lock()
	c.slider = nil
	c.before, c.after = nil, nil
	c.compareMsgID = 0
	c.attractSeq++
	c.mu.Unlock()
}

// ChatFactory builds the state for a chat seen for the first time.
type ChatFactory func(ctx context.Context, chatID int64) *Chat

// StateManager owns the per-chat state. Chats are created on first use and
// live for the lifetime of the process.
type StateManager struct {
	mu      sync.Mutex
	chats   map[int64]*chatEntry
	factory ChatFactory
}

// chatEntry is closed over ready once the factory has built chat.
type chatEntry struct {
	chat  *Chat
	ready chan struct{}
}

func NewStateManager(factory ChatFactory) *StateManager {
	return &StateManager{
		chats:   make(map[int64]*chatEntry),
		factory: factory,
	}
}

// Get returns the chat, creating it on first use. The factory runs outside
// the manager lock; concurrent callers for the same chat wait for its single
// build.
func (m *StateManager) Get(ctx context.Context, chatID int64) *Chat {
	m.mu.Lock()
	if e, ok := m.chats[chatID]; ok {
		m.mu.Unlock()
		<-e.ready
		return e.chat
	}
	e := &chatEntry{ready: make(chan struct{})}
	m.chats[chatID] = e
	m.mu.Unlock()

	defer close(e.ready)
	e.chat = m.factory(ctx, chatID)
	return e.chat
}

// Lookup returns the chat only if it already exists and is built.
func (m *StateManager) Lookup(chatID int64) (*Chat, bool) {
	m.mu.Lock()
	e, ok := m.chats[chatID]
	m.mu.Unlock()
	if !ok {
		return nil, false
	}
	select {
	case <-e.ready:
		return e.chat, true
	default:
		return nil, false
	}
}

func (m *StateManager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.chats)
}
