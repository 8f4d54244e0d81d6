package main

import (
	"context"
	"sync"
	"time"

	"github.com/jrsteele09/crm-session/identity"
	"github.com/jrsteele09/crm-session/identity/local"
	"github.com/jrsteele09/crm-session/identity/oidc"
	"github.com/jrsteele09/crm-session/internal/config"
	"github.com/jrsteele09/crm-session/internal/storage"
	"github.com/jrsteele09/crm-session/markers"
	"github.com/jrsteele09/crm-session/markers/boltstore"
	"github.com/jrsteele09/crm-session/markers/redisstore"
	"github.com/jrsteele09/crm-session/server"
	"github.com/jrsteele09/crm-session/sessions/boltrepo"
	"github.com/jrsteele09/crm-session/token"
	"github.com/jrsteele09/crm-session/users"
	"github.com/pkg/errors"
)

type closer interface {
	Close()
}

// backend wires the opened stores into per-device and per-tab collaborators.
type backend struct {
	config config.Config
	stores *storage.Stores
	issuer *token.Issuer
	oidc   *oidc.Provider

	mu        sync.Mutex
	providers map[string]closer // Keyed by device ID
}

var _ server.Backend = (*backend)(nil)

func newBackend(ctx context.Context, c config.Config, stores *storage.Stores) (*backend, error) {
	b := &backend{config: c, stores: stores, providers: make(map[string]closer)}

	switch c.GetIdentityProvider() {
	case "local":
		issuer, err := token.NewIssuer([]byte(c.GetTokenSecret()),
			token.WithIssuerName(c.GetTokenIssuer()),
			token.WithExpiry(c.GetTokenExpiry()),
		)
		if err != nil {
			return nil, errors.Wrap(err, "[newBackend] token issuer")
		}
		b.issuer = issuer
	case "oidc":
		p, err := oidc.NewProvider(ctx, oidc.Config{
			IssuerURL:    c.GetOIDCIssuerURL(),
			ClientID:     c.GetOIDCClientID(),
			ClientSecret: c.GetOIDCClientSecret(),
		})
		if err != nil {
			return nil, errors.Wrap(err, "[newBackend] oidc provider")
		}
		b.oidc = p
	default:
		return nil, errors.Errorf("[newBackend] unknown identity provider %q", c.GetIdentityProvider())
	}
	return b, nil
}

func (b *backend) Profiles() users.ProfileRepo {
	return b.stores.Users
}

func (b *backend) Device(ctx context.Context, deviceID string) (server.DeviceStores, error) {
	records := boltrepo.New(b.stores.Sessions, boltrepo.Bucket(deviceID))
	provider, err := b.newProvider(ctx, deviceID, records)
	if err != nil {
		return server.DeviceStores{}, err
	}
	return server.DeviceStores{
		Provider: provider,
		Records:  records,
		Durable:  boltstore.New(b.stores.Sessions, boltstore.Bucket(deviceID)),
	}, nil
}

func (b *backend) Volatile(_ context.Context, deviceID, tabID string) (markers.Store, error) {
	if b.stores.Redis == nil {
		return markers.NewMemoryStore(), nil
	}
	return redisstore.New(b.stores.Redis, deviceID, tabID, b.config.GetTabSessionTTL()), nil
}

// Release closes the provider of a device the registry has forgotten.
func (b *backend) Release(deviceID string) {
	b.mu.Lock()
	p, ok := b.providers[deviceID]
	delete(b.providers, deviceID)
	b.mu.Unlock()
	if ok {
		p.Close()
	}
}

func (b *backend) newProvider(ctx context.Context, deviceID string, records *boltrepo.Store) (identity.Provider, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if old, ok := b.providers[deviceID]; ok {
		old.Close()
	}

	if b.oidc != nil {
		p := b.oidc.Fork()
		b.providers[deviceID] = p
		return p, nil
	}

	p, err := local.NewProvider(b.stores.Users, b.issuer,
		local.WithAttemptLimit(b.config.GetMaxFailedAttempts(), b.config.GetFailedAttemptWindow()),
	)
	if err != nil {
		return nil, errors.Wrap(err, "[backend.newProvider]")
	}
	// A device coming back after being released picks up its sign-in from
	// the persistent auth record.
	if record, err := records.Read(ctx); err == nil && record.Valid(time.Now(), b.config.GetMaxRecordAge()) {
		p.Resume(identity.Identity{UID: record.UserID, Email: record.Email, DisplayName: record.DisplayName})
	}
	b.providers[deviceID] = p
	return p, nil
}

// Close stops every provider's notification dispatcher.
func (b *backend) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for deviceID, p := range b.providers {
		p.Close()
		delete(b.providers, deviceID)
	}
	if b.oidc != nil {
		b.oidc.Close()
	}
}
