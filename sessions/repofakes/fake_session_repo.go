package fakesessionrepo

import (
	"context"
	"sync"

	"github.com/jrsteele09/crm-session/internal/errors"
	"github.com/jrsteele09/crm-session/sessions"
)

var _ sessions.Repo = (*FakeRecordRepo)(nil)

type FakeRecordRepo struct {
	record  *sessions.Record
	saves   int
	clears  int
	readErr error
	lock    sync.RWMutex
}

func NewFakeRecordRepo() *FakeRecordRepo {
	return &FakeRecordRepo{}
}

func (rr *FakeRecordRepo) Save(_ context.Context, record *sessions.Record) error {
	rr.lock.Lock()
	defer rr.lock.Unlock()

	cp := *record
	rr.record = &cp
	rr.saves++
	return nil
}

func (rr *FakeRecordRepo) Read(_ context.Context) (*sessions.Record, error) {
	rr.lock.RLock()
	defer rr.lock.RUnlock()

	if rr.readErr != nil {
		return nil, rr.readErr
	}
	if rr.record == nil {
		return nil, errors.ErrNotFound
	}
	cp := *rr.record
	return &cp, nil
}

func (rr *FakeRecordRepo) Clear(_ context.Context) error {
	rr.lock.Lock()
	defer rr.lock.Unlock()

	rr.record = nil
	rr.clears++
	return nil
}

// FailReads makes every following Read return err (nil restores normal reads).
func (rr *FakeRecordRepo) FailReads(err error) {
	rr.lock.Lock()
	defer rr.lock.Unlock()
	rr.readErr = err
}

func (rr *FakeRecordRepo) Saves() int {
	rr.lock.RLock()
	defer rr.lock.RUnlock()
	return rr.saves
}

func (rr *FakeRecordRepo) Clears() int {
	rr.lock.RLock()
	defer rr.lock.RUnlock()
	return rr.clears
}
