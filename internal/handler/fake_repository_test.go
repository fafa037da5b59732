package handler

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"fridgedoor/internal/model"
)

var errFakeReadBack = errors.New("read-back failed")

// fakeRepository is an in-memory MessageRepository with the same filtering
// rules as the MySQL one.
type fakeRepository struct {
	mu     sync.Mutex
	msgs   []model.Message
	nextID int64

	failReadBack bool
	err          error
}

func (f *fakeRepository) Create(_ context.Context, in model.NewMessage) (model.CreateResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.err != nil {
		return model.CreateResult{}, f.err
	}

	f.nextID++
	msg := model.Message{
		ID:         f.nextID,
		Text:       in.Text,
		FontColor:  in.FontColor,
		FontFamily: in.FontFamily,
		CreatedAt:  time.Now(),
		ExpiresAt:  in.Expiry(),
	}
	f.msgs = append(f.msgs, msg)

	if f.failReadBack {
		return model.CreateResult{Message: msg, Source: model.SourceEchoed, ReadErr: errFakeReadBack}, nil
	}
	return model.CreateResult{Message: msg, Source: model.SourceStored}, nil
}

func (f *fakeRepository) Get(_ context.Context, id int64) (model.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.err != nil {
		return model.Message{}, f.err
	}
	for _, m := range f.msgs {
		if m.ID == id {
			return m, nil
		}
	}
	return model.Message{}, fmt.Errorf("failed to get message %d: %w", id, sql.ErrNoRows)
}

func (f *fakeRepository) List(_ context.Context, q model.ListQuery) ([]model.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.err != nil {
		return nil, f.err
	}
	now := time.Now()
	out := []model.Message{}
	for _, m := range f.msgs {
		if len(out) >= q.Count {
			break
		}
		if m.ID <= q.SinceID {
			continue
		}
		if !q.IncludeExpired && m.IsExpired(now) {
			continue
		}
		out = append(out, m)
	}
	return out, nil
}

func (f *fakeRepository) Random(_ context.Context) (model.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.err != nil {
		return model.Message{}, f.err
	}
	now := time.Now()
	for _, m := range f.msgs {
		if m.ExpiresAt != nil && m.ExpiresAt.After(now) {
			return m, nil
		}
	}
	return model.Message{}, fmt.Errorf("failed to get random message: %w", sql.ErrNoRows)
}

func (f *fakeRepository) Expire(_ context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.err != nil {
		return f.err
	}
	for i := range f.msgs {
		if f.msgs[i].ID == id {
			f.msgs[i].Expire(time.Now())
		}
	}
	return nil
}
