package core

import (
	"log"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/preppal/prep-assistant/internal/store"
)

const (
	DefaultGuestLimit   = 1000
	DefaultGuestIdleTTL = 2 * time.Hour
)

// Workspace groups the per-caller services.
type Workspace struct {
	Chat       *ChatStore
	Checklists *ChecklistService
	Ledger     *Ledger
}

type RegistryOption func(*Registry)

// WithChatOptions applies opts to every ChatStore the registry creates.
func WithChatOptions(opts ...ChatStoreOption) RegistryOption {
	return func(r *Registry) { r.chatOpts = append(r.chatOpts, opts...) }
}

// WithGuestLimit bounds how many guest workspaces are kept and how long an
// unused one survives.
func WithGuestLimit(size int, idle time.Duration) RegistryOption {
	return func(r *Registry) {
		r.guestLimit = size
		r.guestIdle = idle
	}
}

// Registry hands out one Workspace per user for the life of the process.
// Guest workspaces hold their chats in memory only and are dropped once the
// guest goes idle or the cache is full.
type Registry struct {
	repo       store.Repository
	generator  Generator
	prompts    Prompts
	chatOpts   []ChatStoreOption
	guestLimit int
	guestIdle  time.Duration
	catalog    *Ledger

	mu     sync.Mutex
	users  map[string]*Workspace
	guests *expirable.LRU[string, *Workspace]
}

func NewRegistry(repo store.Repository, generator Generator, prompts Prompts, opts ...RegistryOption) *Registry {
	r := &Registry{
		repo:       repo,
		generator:  generator,
		prompts:    prompts,
		guestLimit: DefaultGuestLimit,
		guestIdle:  DefaultGuestIdleTTL,
		catalog:    NewLedger(repo, "", nil),
		users:      map[string]*Workspace{},
	}
	for _, opt := range opts {
		opt(r)
	}
	r.guests = expirable.NewLRU[string, *Workspace](r.guestLimit, func(guestID string, _ *Workspace) {
		log.Printf("Dropped guest workspace %s", guestID)
	}, r.guestIdle)
	return r
}

func (r *Registry) ForUser(user *store.User) *Workspace {
	r.mu.Lock()
	defer r.mu.Unlock()
	if ws, ok := r.users[user.ID]; ok {
		return ws
	}
	checklists := NewChecklistService(r.repo, user.ID)
	ws := &Workspace{
		Chat:       NewChatStore(NewPersistedBacking(r.repo, user.ID), r.generator, r.prompts, r.chatOpts...),
		Checklists: checklists,
		Ledger:     NewLedger(r.repo, user.ID, checklists),
	}
	r.users[user.ID] = ws
	return ws
}

// ForGuest returns a workspace whose checklist and ledger calls fail with
// ErrGuestMode. Each call restarts the guest's idle timer.
func (r *Registry) ForGuest(guestID string) *Workspace {
	r.mu.Lock()
	defer r.mu.Unlock()
	if ws, ok := r.guests.Get(guestID); ok {
		r.guests.Add(guestID, ws)
		return ws
	}
	checklists := NewChecklistService(nil, "")
	ws := &Workspace{
		Chat:       NewChatStore(NewEphemeralBacking(), r.generator, r.prompts, r.chatOpts...),
		Checklists: checklists,
		Ledger:     NewLedger(r.repo, "", checklists),
	}
	r.guests.Add(guestID, ws)
	return ws
}

// Catalog is a guest ledger shared by every anonymous caller. It only lists
// tasks, so reading the catalog does not need a guest workspace.
func (r *Registry) Catalog() *Ledger {
	return r.catalog
}

// Guests reports how many guest workspaces are held.
func (r *Registry) Guests() int {
	return r.guests.Len()
}
