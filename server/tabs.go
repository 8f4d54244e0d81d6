package server

import (
	"context"
	"sync"
	"time"

	"github.com/jrsteele09/crm-session/auth"
	"github.com/jrsteele09/crm-session/identity"
	"github.com/jrsteele09/crm-session/internal/config"
	"github.com/jrsteele09/crm-session/markers"
	"github.com/jrsteele09/crm-session/navigation"
	"github.com/jrsteele09/crm-session/sessions"
	"github.com/jrsteele09/crm-session/users"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// DeviceStores are shared by every tab of one browser profile.
type DeviceStores struct {
	Provider identity.Provider
	Records  sessions.Repo
	Durable  markers.Store
}

// Backend builds the collaborators a tab's reconciler needs. Release is
// called once the registry forgets a device, after its last tab is gone.
type Backend interface {
	Profiles() users.ProfileRepo
	Device(ctx context.Context, deviceID string) (DeviceStores, error)
	Volatile(ctx context.Context, deviceID, tabID string) (markers.Store, error)
	Release(deviceID string)
}

// Tab is one browser tab with its own reconciler.
type Tab struct {
	ID         string
	DeviceID   string
	Reconciler *auth.Reconciler
	Navigator  *navigation.Tab
	Holder     *sessions.Holder
	lastSeen   time.Time
}

type device struct {
	stores DeviceStores
	tabs   map[string]*Tab
}

// TabRegistry creates tabs on first sight and keeps them until they go idle.
type TabRegistry struct {
	backend Backend
	cfg     config.ReconcilerConfig
	options []auth.ReconcilerOption
	nowTime func() time.Time

	mu      sync.Mutex
	devices map[string]*device
}

func NewTabRegistry(backend Backend, cfg config.ReconcilerConfig, options ...auth.ReconcilerOption) (*TabRegistry, error) {
	if backend == nil {
		return nil, errors.New("[NewTabRegistry] backend is required")
	}
	return &TabRegistry{
		backend: backend,
		cfg:     cfg,
		options: options,
		nowTime: time.Now,
		devices: make(map[string]*device),
	}, nil
}

// Tab returns the tab for deviceID and tabID, starting a reconciler for it
// when the tab is new.
func (tr *TabRegistry) Tab(ctx context.Context, deviceID, tabID, path string) (*Tab, error) {
	tr.mu.Lock()
	defer tr.mu.Unlock()

	d, ok := tr.devices[deviceID]
	if !ok {
		stores, err := tr.backend.Device(ctx, deviceID)
		if err != nil {
			return nil, errors.Wrap(err, "[TabRegistry.Tab] Device")
		}
		d = &device{stores: stores, tabs: make(map[string]*Tab)}
		tr.devices[deviceID] = d
	}

	if tab, ok := d.tabs[tabID]; ok {
		tab.lastSeen = tr.nowTime()
		return tab, nil
	}

	volatile, err := tr.backend.Volatile(ctx, deviceID, tabID)
	if err != nil {
		return nil, errors.Wrap(err, "[TabRegistry.Tab] Volatile")
	}

	tab := &Tab{
		ID:        tabID,
		DeviceID:  deviceID,
		Navigator: navigation.NewTab(path),
		Holder:    sessions.NewHolder(),
		lastSeen:  tr.nowTime(),
	}
	tab.Reconciler, err = auth.NewReconciler(auth.Collaborators{
		Provider:  d.stores.Provider,
		Profiles:  tr.backend.Profiles(),
		Records:   d.stores.Records,
		Durable:   d.stores.Durable,
		Volatile:  volatile,
		Navigator: tab.Navigator,
		Holder:    tab.Holder,
	}, tr.cfg, tr.options...)
	if err != nil {
		return nil, errors.Wrap(err, "[TabRegistry.Tab] NewReconciler")
	}
	if err := tab.Reconciler.Start(context.WithoutCancel(ctx)); err != nil {
		return nil, errors.Wrap(err, "[TabRegistry.Tab] Start")
	}

	d.tabs[tabID] = tab
	log.Debug().Str("device", deviceID).Str("tab", tabID).Msg("tab opened")
	return tab, nil
}

// Sweep stops and forgets tabs idle for longer than ttl. A device left with
// no tabs is released; its durable markers and auth record stay in storage.
func (tr *TabRegistry) Sweep(ttl time.Duration) int {
	tr.mu.Lock()
	defer tr.mu.Unlock()

	now := tr.nowTime()
	removed := 0
	for deviceID, d := range tr.devices {
		for id, tab := range d.tabs {
			if now.Sub(tab.lastSeen) <= ttl {
				continue
			}
			tab.Reconciler.Stop()
			delete(d.tabs, id)
			removed++
		}
		if len(d.tabs) == 0 {
			delete(tr.devices, deviceID)
			tr.backend.Release(deviceID)
			log.Debug().Str("device", deviceID).Msg("device released")
		}
	}
	return removed
}

// Devices counts the devices with live identity state.
func (tr *TabRegistry) Devices() int {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	return len(tr.devices)
}

// Tabs counts the open tabs.
func (tr *TabRegistry) Tabs() int {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	n := 0
	for _, d := range tr.devices {
		n += len(d.tabs)
	}
	return n
}

func (tr *TabRegistry) Close() {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	for deviceID, d := range tr.devices {
		for _, tab := range d.tabs {
			tab.Reconciler.Stop()
		}
		delete(tr.devices, deviceID)
		tr.backend.Release(deviceID)
	}
}
