// Package session holds the identity state the task manager and migration
// coordinator depend on. All reads go through State snapshots and all
// mutations go through the provider's own methods, so no other package ever
// pokes at auth state directly.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/Utre17/tasksmart/internal/storage/kv"
)

const (
	guestIdentityKey = "session/guest_id"
	accountKey       = "session/account"
	tokenKey         = "session/token"
)

// State is an immutable snapshot of the current session. Authenticated and
// Guest are never both true. GuestID stays populated after sign-in for as
// long as unmigrated guest data may exist on the device.
type State struct {
	Authenticated bool
	Guest         bool
	GuestID       string
	Account       string
	Token         string
}

// Provider owns the session lifecycle. The guest identity is created lazily
// on first guest interaction and persisted on-device so it survives
// restarts until migration clears it; account credentials are persisted the
// same way so a registered device stays signed in.
type Provider struct {
	mu     sync.Mutex
	state  State
	kv     *kv.Store
	logger *slog.Logger
}

// NewProvider constructs a provider backed by the on-device store.
func NewProvider(store *kv.Store, logger *slog.Logger) *Provider {
	if logger == nil {
		logger = slog.Default()
	}
	return &Provider{kv: store, logger: logger}
}

// Restore loads persisted session state from the device. Stored account
// credentials win over a stored guest identity.
func (p *Provider) Restore(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	guestID, err := p.readKey(ctx, guestIdentityKey)
	if err != nil {
		return err
	}
	account, err := p.readKey(ctx, accountKey)
	if err != nil {
		return err
	}
	token, err := p.readKey(ctx, tokenKey)
	if err != nil {
		return err
	}

	switch {
	case account != "" && token != "":
		p.state = State{Authenticated: true, Account: account, Token: token, GuestID: guestID}
	case guestID != "":
		p.state = State{Guest: true, GuestID: guestID}
	default:
		p.state = State{}
	}
	return nil
}

func (p *Provider) readKey(ctx context.Context, key string) (string, error) {
	raw, ok, err := p.kv.Get(ctx, key)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", key, err)
	}
	if !ok {
		return "", nil
	}
	return string(raw), nil
}

// State returns the current session snapshot.
func (p *Provider) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Token returns the current bearer credential, empty when the session is
// not authenticated.
func (p *Provider) Token() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state.Token
}

// BeginGuest switches the session to guest mode, minting and persisting a
// guest identity if the device does not have one yet.
func (p *Provider) BeginGuest(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	id, err := p.loadOrCreateGuestID(ctx)
	if err != nil {
		return "", err
	}
	p.state = State{Guest: true, GuestID: id}
	return id, nil
}

// SignIn switches the session to an authenticated account and persists the
// credentials. The bearer token comes from the external identity broker;
// the provider only stores and attaches it.
func (p *Provider) SignIn(ctx context.Context, account, token string) error {
	if strings.TrimSpace(account) == "" {
		return fmt.Errorf("empty account")
	}
	if strings.TrimSpace(token) == "" {
		return fmt.Errorf("empty token")
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.kv.Set(ctx, accountKey, []byte(account)); err != nil {
		return fmt.Errorf("persist account: %w", err)
	}
	if err := p.kv.Set(ctx, tokenKey, []byte(token)); err != nil {
		return fmt.Errorf("persist token: %w", err)
	}

	p.state = State{Authenticated: true, Account: account, Token: token, GuestID: p.state.GuestID}
	p.logger.Info("session authenticated", slog.String("account", account))
	return nil
}

// SignOut drops the authenticated session and its persisted credentials.
// The guest identity, if any, survives for the next BeginGuest.
func (p *Provider) SignOut(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.kv.Delete(ctx, accountKey); err != nil {
		return err
	}
	if err := p.kv.Delete(ctx, tokenKey); err != nil {
		return err
	}
	p.state = State{GuestID: p.state.GuestID}
	return nil
}

// ClearGuestIdentity removes the persisted guest identity token. Called by
// the migration coordinator after a fully successful transfer.
func (p *Provider) ClearGuestIdentity(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.kv.Delete(ctx, guestIdentityKey); err != nil {
		return err
	}
	p.state.GuestID = ""
	return nil
}

func (p *Provider) loadOrCreateGuestID(ctx context.Context) (string, error) {
	if p.state.GuestID != "" {
		return p.state.GuestID, nil
	}
	id, err := p.readKey(ctx, guestIdentityKey)
	if err != nil {
		return "", err
	}
	if id != "" {
		return id, nil
	}

	id = newGuestID()
	if err := p.kv.Set(ctx, guestIdentityKey, []byte(id)); err != nil {
		return "", fmt.Errorf("persist guest identity: %w", err)
	}
	p.logger.Info("guest identity created", slog.String("guest_id", id))
	return id, nil
}

// newGuestID mints a short human-readable device identity.
func newGuestID() string {
	return "guest-" + strings.Split(uuid.NewString(), "-")[0]
}
