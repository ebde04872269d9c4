// Package cache holds the terminal's local projection of leads, users and
// chat. Readers get immutable snapshots; only Resync and Apply change state.
package cache

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	authtransport "leadflow_backend/internal/auth/transport"
	leadtransport "leadflow_backend/internal/leads/transport"
	"leadflow_backend/internal/terminal/conn"
	"leadflow_backend/platform/logger"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"
)

const (
	typeNewLead     = "NEW_LEAD"
	typeChatMessage = "CHAT_MESSAGE"

	maxChatMessages = 50
)

// Source is the server state the cache projects.
type Source interface {
	ListLeads(ctx context.Context, advisorID *uuid.UUID) ([]leadtransport.LeadResponse, error)
	ListUsers(ctx context.Context) ([]authtransport.UserResponse, error)
}

// ChatMessage is one received CHAT_MESSAGE payload.
type ChatMessage struct {
	ID         uuid.UUID `json:"id"`
	SenderID   uuid.UUID `json:"senderId"`
	SenderName string    `json:"senderName,omitempty"`
	Text       string    `json:"text"`
	SentAt     time.Time `json:"sentAt"`
}

// Snapshot is an immutable view. Accessors return copies.
type Snapshot struct {
	leads    []leadtransport.LeadResponse
	users    []authtransport.UserResponse
	chat     []ChatMessage
	syncedAt time.Time
	version  uint64
}

// Leads returns the visible leads, newest first.
func (s *Snapshot) Leads() []leadtransport.LeadResponse {
	out := make([]leadtransport.LeadResponse, len(s.leads))
	for i, lead := range s.leads {
		out[i] = cloneLead(lead)
	}
	return out
}

// Lead looks up one lead by id.
func (s *Snapshot) Lead(id uuid.UUID) (leadtransport.LeadResponse, bool) {
	for _, lead := range s.leads {
		if lead.ID == id {
			return cloneLead(lead), true
		}
	}
	return leadtransport.LeadResponse{}, false
}

// Users returns every known user.
func (s *Snapshot) Users() []authtransport.UserResponse {
	out := make([]authtransport.UserResponse, len(s.users))
	for i, user := range s.users {
		out[i] = cloneUser(user)
	}
	return out
}

// Chat returns recent chat messages, oldest first.
func (s *Snapshot) Chat() []ChatMessage {
	out := make([]ChatMessage, len(s.chat))
	copy(out, s.chat)
	return out
}

// SyncedAt is when the last full resync completed. Zero before the first.
func (s *Snapshot) SyncedAt() time.Time { return s.syncedAt }

// Version increases with every change.
func (s *Snapshot) Version() uint64 { return s.version }

// Cache projects server state for one advisor. A nil advisor sees every lead.
type Cache struct {
	source    Source
	advisorID *uuid.UUID
	log       *logger.Logger
	now       func() time.Time

	snap  atomic.Pointer[Snapshot]
	group singleflight.Group

	// mu serialises writers. applied records leads pushed since a resync
	// started so a slower fetch cannot erase them.
	mu      sync.Mutex
	seq     uint64
	applied map[uuid.UUID]uint64

	listenersMu sync.RWMutex
	listeners   []func(*Snapshot)
}

func New(source Source, advisorID *uuid.UUID, log *logger.Logger) *Cache {
	c := &Cache{
		source:    source,
		advisorID: advisorID,
		log:       log,
		now:       time.Now,
		applied:   make(map[uuid.UUID]uint64),
	}
	c.snap.Store(&Snapshot{})
	return c
}

// Snapshot returns the current view.
func (c *Cache) Snapshot() *Snapshot {
	return c.snap.Load()
}

// OnChange registers fn to run after every new snapshot.
func (c *Cache) OnChange(fn func(*Snapshot)) {
	c.listenersMu.Lock()
	defer c.listenersMu.Unlock()
	c.listeners = append(c.listeners, fn)
}

// Resync refetches leads and users. Concurrent calls share one fetch.
func (c *Cache) Resync(ctx context.Context) (*Snapshot, error) {
	v, err, _ := c.group.Do("resync", func() (interface{}, error) {
		return c.resync(ctx)
	})
	if err != nil {
		return nil, err
	}
	return v.(*Snapshot), nil
}

func (c *Cache) resync(ctx context.Context) (*Snapshot, error) {
	c.mu.Lock()
	startSeq := c.seq
	c.mu.Unlock()

	leads, err := c.source.ListLeads(ctx, c.advisorID)
	if err != nil {
		return nil, err
	}
	users, err := c.source.ListUsers(ctx)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	current := c.snap.Load()
	fetched := make(map[uuid.UUID]struct{}, len(leads))
	for _, lead := range leads {
		fetched[lead.ID] = struct{}{}
	}
	var pushed []leadtransport.LeadResponse
	for id, seq := range c.applied {
		if seq <= startSeq {
			delete(c.applied, id)
			continue
		}
		if _, ok := fetched[id]; ok {
			continue
		}
		if lead, ok := current.Lead(id); ok {
			pushed = append(pushed, lead)
		}
	}

	c.seq++
	next := &Snapshot{
		leads:    append(pushed, cloneLeads(leads)...),
		users:    cloneUsers(users),
		chat:     current.chat,
		syncedAt: c.now(),
		version:  current.version + 1,
	}
	c.snap.Store(next)
	c.mu.Unlock()

	c.notify(next)
	return next, nil
}

// Apply folds a realtime message into the view. Unknown types are ignored.
// It reports whether the snapshot changed.
func (c *Cache) Apply(msg conn.Message) bool {
	switch msg.Type {
	case typeNewLead:
		var lead leadtransport.LeadResponse
		if err := json.Unmarshal(msg.Payload, &lead); err != nil || lead.ID == uuid.Nil {
			c.log.Warn("terminal cache: malformed NEW_LEAD payload", "correlation_id", msg.CorrelationID)
			return false
		}
		return c.applyLead(lead)
	case typeChatMessage:
		var chat ChatMessage
		if err := json.Unmarshal(msg.Payload, &chat); err != nil {
			c.log.Warn("terminal cache: malformed CHAT_MESSAGE payload", "correlation_id", msg.CorrelationID)
			return false
		}
		c.applyChat(chat)
		return true
	default:
		return false
	}
}

func (c *Cache) applyLead(lead leadtransport.LeadResponse) bool {
	if !c.visible(lead) {
		return false
	}

	c.mu.Lock()
	current := c.snap.Load()
	leads := make([]leadtransport.LeadResponse, 0, len(current.leads)+1)
	leads = append(leads, lead)
	for _, existing := range current.leads {
		if existing.ID != lead.ID {
			leads = append(leads, existing)
		}
	}

	c.seq++
	c.applied[lead.ID] = c.seq
	next := &Snapshot{
		leads:    leads,
		users:    current.users,
		chat:     current.chat,
		syncedAt: current.syncedAt,
		version:  current.version + 1,
	}
	c.snap.Store(next)
	c.mu.Unlock()

	c.notify(next)
	return true
}

func (c *Cache) applyChat(msg ChatMessage) {
	c.mu.Lock()
	current := c.snap.Load()
	chat := append(make([]ChatMessage, 0, len(current.chat)+1), current.chat...)
	chat = append(chat, msg)
	if len(chat) > maxChatMessages {
		chat = chat[len(chat)-maxChatMessages:]
	}
	next := &Snapshot{
		leads:    current.leads,
		users:    current.users,
		chat:     chat,
		syncedAt: current.syncedAt,
		version:  current.version + 1,
	}
	c.snap.Store(next)
	c.mu.Unlock()

	c.notify(next)
}

// Attach wires the cache to a connection manager: every (re)connect triggers
// a resync to cover events missed while offline, and inbound frames are
// applied. The returned func detaches.
func (c *Cache) Attach(ctx context.Context, m *conn.Manager) func() {
	removeState := m.OnStateChange(func(state conn.State) {
		if state != conn.StateConnected {
			return
		}
		go func() {
			if _, err := c.Resync(ctx); err != nil {
				c.log.Warn("terminal cache: resync failed", "error", err)
			}
		}()
	})
	removeMessage := m.OnMessage(func(msg conn.Message) {
		c.Apply(msg)
	})
	return func() {
		removeState()
		removeMessage()
	}
}

func (c *Cache) visible(lead leadtransport.LeadResponse) bool {
	if c.advisorID == nil || lead.AssignedTo == nil {
		return true
	}
	return *lead.AssignedTo == *c.advisorID
}

func (c *Cache) notify(s *Snapshot) {
	c.listenersMu.RLock()
	listeners := append([]func(*Snapshot){}, c.listeners...)
	c.listenersMu.RUnlock()

	for _, fn := range listeners {
		fn(s)
	}
}

func cloneLeads(leads []leadtransport.LeadResponse) []leadtransport.LeadResponse {
	out := make([]leadtransport.LeadResponse, len(leads))
	for i, lead := range leads {
		out[i] = cloneLead(lead)
	}
	return out
}

func cloneLead(lead leadtransport.LeadResponse) leadtransport.LeadResponse {
	out := lead
	out.CampaignID = cloneString(lead.CampaignID)
	out.Qualification = cloneString(lead.Qualification)
	if lead.AssignedTo != nil {
		id := *lead.AssignedTo
		out.AssignedTo = &id
	}
	out.LifeDetails = cloneRaw(lead.LifeDetails)
	out.RealEstateDetails = cloneRaw(lead.RealEstateDetails)
	out.SecuritiesDetails = cloneRaw(lead.SecuritiesDetails)
	out.CustomDetails = cloneRaw(lead.CustomDetails)
	out.PlatformData = cloneRaw(lead.PlatformData)
	return out
}

func cloneUsers(users []authtransport.UserResponse) []authtransport.UserResponse {
	out := make([]authtransport.UserResponse, len(users))
	for i, user := range users {
		out[i] = cloneUser(user)
	}
	return out
}

func cloneUser(user authtransport.UserResponse) authtransport.UserResponse {
	out := user
	out.Category = cloneString(user.Category)
	out.Avatar = cloneString(user.Avatar)
	return out
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

func cloneRaw(raw json.RawMessage) json.RawMessage {
	if raw == nil {
		return nil
	}
	out := make(json.RawMessage, len(raw))
	copy(out, raw)
	return out
}
