package providerfake

import (
	"context"
	"fmt"
	"sync"

	"github.com/jrsteele09/crm-session/identity"
)

var _ identity.Provider = (*FakeProvider)(nil)

// FakeProvider delivers notifications synchronously on the caller's
// goroutine, which keeps reconciler tests deterministic.
type FakeProvider struct {
	lock sync.Mutex

	handlers   map[int]identity.Handler
	nextID     int
	accounts   map[string]account
	current    *identity.Identity
	signInErr  error
	signOutErr error
	tokenErr   error
	silent     bool

	SignIns        int
	SignOuts       int
	TokenRefreshes int
	Unsubscribes   int
}

type account struct {
	password string
	id       identity.Identity
}

func NewFakeProvider() *FakeProvider {
	return &FakeProvider{
		handlers: make(map[int]identity.Handler),
		accounts: make(map[string]account),
	}
}

// AddAccount makes email/password a valid sign-in for id.
func (fp *FakeProvider) AddAccount(email, password string, id identity.Identity) {
	fp.lock.Lock()
	defer fp.lock.Unlock()
	fp.accounts[email] = account{password: password, id: id}
}

func (fp *FakeProvider) FailSignIn(err error) {
	fp.lock.Lock()
	defer fp.lock.Unlock()
	fp.signInErr = err
}

func (fp *FakeProvider) FailSignOut(err error) {
	fp.lock.Lock()
	defer fp.lock.Unlock()
	fp.signOutErr = err
}

func (fp *FakeProvider) FailIDToken(err error) {
	fp.lock.Lock()
	defer fp.lock.Unlock()
	fp.tokenErr = err
}

// Silence stops SignIn and SignOut from emitting notifications, so tests
// can deliver them by hand with Emit.
func (fp *FakeProvider) Silence(silent bool) {
	fp.lock.Lock()
	defer fp.lock.Unlock()
	fp.silent = silent
}

func (fp *FakeProvider) Subscribers() int {
	fp.lock.Lock()
	defer fp.lock.Unlock()
	return len(fp.handlers)
}

// Emit delivers n to every subscriber before returning.
func (fp *FakeProvider) Emit(ctx context.Context, n identity.Notification) {
	fp.lock.Lock()
	handlers := make([]identity.Handler, 0, len(fp.handlers))
	for i := 0; i < fp.nextID; i++ {
		if h, ok := fp.handlers[i]; ok {
			handlers = append(handlers, h)
		}
	}
	fp.lock.Unlock()

	for _, h := range handlers {
		h(ctx, n)
	}
}

func (fp *FakeProvider) Subscribe(ctx context.Context, h identity.Handler) (func(), error) {
	fp.lock.Lock()
	id := fp.nextID
	fp.nextID++
	fp.handlers[id] = h
	current := fp.current
	fp.lock.Unlock()

	if current != nil {
		h(ctx, identity.Present(*current))
	} else {
		h(ctx, identity.Absent())
	}

	return func() {
		fp.lock.Lock()
		defer fp.lock.Unlock()
		delete(fp.handlers, id)
		fp.Unsubscribes++
	}, nil
}

func (fp *FakeProvider) SignIn(ctx context.Context, email, password string) (*identity.Identity, error) {
	fp.lock.Lock()
	fp.SignIns++
	if fp.signInErr != nil {
		err := fp.signInErr
		fp.lock.Unlock()
		return nil, err
	}
	acc, ok := fp.accounts[email]
	if !ok {
		fp.lock.Unlock()
		return nil, identity.NewError(identity.CodeUserNotFound, nil)
	}
	if acc.password != password {
		fp.lock.Unlock()
		return nil, identity.NewError(identity.CodeWrongPassword, nil)
	}
	id := acc.id
	fp.current = &id
	silent := fp.silent
	fp.lock.Unlock()

	if !silent {
		fp.Emit(ctx, identity.Present(id))
	}
	out := id
	return &out, nil
}

func (fp *FakeProvider) SignOut(ctx context.Context) error {
	fp.lock.Lock()
	fp.SignOuts++
	if fp.signOutErr != nil {
		err := fp.signOutErr
		fp.lock.Unlock()
		return err
	}
	fp.current = nil
	silent := fp.silent
	fp.lock.Unlock()

	if !silent {
		fp.Emit(ctx, identity.Absent())
	}
	return nil
}

func (fp *FakeProvider) IDToken(_ context.Context, forceRefresh bool) (string, error) {
	fp.lock.Lock()
	defer fp.lock.Unlock()
	if fp.tokenErr != nil {
		return "", fp.tokenErr
	}
	if forceRefresh {
		fp.TokenRefreshes++
	}
	uid := "anonymous"
	if fp.current != nil {
		uid = fp.current.UID
	}
	return fmt.Sprintf("token-%s-%d", uid, fp.TokenRefreshes), nil
}

// SetCurrent changes the provider's identity without notifying anyone.
func (fp *FakeProvider) SetCurrent(id *identity.Identity) {
	fp.lock.Lock()
	defer fp.lock.Unlock()
	fp.current = id
}
