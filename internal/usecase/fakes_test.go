package usecase

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"taskchain-dispatcher/internal/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeRecipients struct {
	profiles map[string]*domain.UserProfile
	err      error
	calls    int
}

func (f *fakeRecipients) Lookup(_ context.Context, userID string) (*domain.UserProfile, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	p, ok := f.profiles[userID]
	if !ok {
		return nil, domain.ErrProfileNotFound
	}
	return p, nil
}

func (f *fakeRecipients) SaveProfile(_ context.Context, userID string, profile *domain.UserProfile) error {
	if f.profiles == nil {
		f.profiles = map[string]*domain.UserProfile{}
	}
	f.profiles[userID] = profile
	return nil
}

type sentMessage struct {
	target  domain.RecipientTarget
	payload domain.NotificationPayload
}

type fakeSender struct {
	messageID string
	err       error
	sent      []sentMessage
}

func (f *fakeSender) Send(_ context.Context, target domain.RecipientTarget, payload domain.NotificationPayload) (string, error) {
	f.sent = append(f.sent, sentMessage{target: target, payload: payload})
	if f.err != nil {
		return "", f.err
	}
	return f.messageID, nil
}

type writeBackCall struct {
	ref domain.RecordRef
	wb  domain.WriteBack
}

// fakeStore is an in-memory record repository that also applies write-backs, so a
// second delivery of the same record observes the first one's outcome.
type fakeStore struct {
	mu         sync.Mutex
	reminders  map[string]*domain.ReminderDocument
	messages   map[string]*domain.MessageDocument
	writeBacks []writeBackCall
	getErr     error
	recordErr  error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		reminders: map[string]*domain.ReminderDocument{},
		messages:  map[string]*domain.MessageDocument{},
	}
}

func (f *fakeStore) SaveReminder(_ context.Context, userID, reminderID string, doc *domain.ReminderDocument) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *doc
	f.reminders[userID+"/"+reminderID] = &cp
	return nil
}

func (f *fakeStore) GetReminder(_ context.Context, userID, reminderID string) (*domain.ReminderDocument, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	doc, ok := f.reminders[userID+"/"+reminderID]
	if !ok {
		return nil, domain.ErrRecordNotFound
	}
	cp := *doc
	return &cp, nil
}

func (f *fakeStore) ListReminders(_ context.Context) ([]*domain.ReminderDocument, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	docs := make([]*domain.ReminderDocument, 0, len(f.reminders))
	for _, d := range f.reminders {
		cp := *d
		docs = append(docs, &cp)
	}
	return docs, nil
}

func (f *fakeStore) SaveMessage(_ context.Context, groupID, messageID string, doc *domain.MessageDocument) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *doc
	f.messages[groupID+"/"+messageID] = &cp
	return nil
}

func (f *fakeStore) RecordOutcome(_ context.Context, ref domain.RecordRef, wb domain.WriteBack) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writeBacks = append(f.writeBacks, writeBackCall{ref: ref, wb: wb})
	if f.recordErr != nil {
		return f.recordErr
	}
	if doc, ok := f.reminders[ref.OwnerID+"/"+ref.RecordID]; ok {
		doc.Sent = wb.Sent
		if wb.Sent {
			at := wb.SentAt
			doc.SentAt = &at
			doc.Error = ""
		} else {
			doc.Error = wb.Error
		}
	}
	return nil
}

type fakeLock struct{ released *bool }

func (l fakeLock) Unlock(context.Context) error {
	*l.released = true
	return nil
}

type fakeLocker struct {
	held     map[string]bool
	err      error
	locked   []string
	released bool
}

func (f *fakeLocker) Lock(_ context.Context, name string) (domain.Lock, error) {
	if f.err != nil {
		return nil, f.err
	}
	if f.held[name] {
		return nil, domain.ErrLockNotAcquired
	}
	f.locked = append(f.locked, name)
	return fakeLock{released: &f.released}, nil
}

type fakeDispatchLog struct {
	entries []*domain.DispatchLogEntry
	err     error
}

func (f *fakeDispatchLog) Append(_ context.Context, entry *domain.DispatchLogEntry) error {
	if f.err != nil {
		return f.err
	}
	f.entries = append(f.entries, entry)
	return nil
}

func (f *fakeDispatchLog) ListByGroup(_ context.Context, groupID string, page, pageSize int) ([]*domain.DispatchLogEntry, error) {
	if f.err != nil {
		return nil, f.err
	}
	var out []*domain.DispatchLogEntry
	for i := len(f.entries) - 1; i >= 0; i-- {
		if f.entries[i].GroupID == groupID {
			out = append(out, f.entries[i])
		}
	}
	start := (page - 1) * pageSize
	if start >= len(out) {
		return nil, nil
	}
	end := min(start+pageSize, len(out))
	return out[start:end], nil
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}
