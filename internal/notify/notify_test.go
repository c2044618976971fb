package notify

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"questions/internal/email"
	"questions/internal/lifecycle"
	"questions/internal/models"
)

type fakeOutbox struct {
	events []*models.NotificationEvent
}

func (f *fakeOutbox) Enqueue(_ context.Context, e *models.NotificationEvent) error {
	e.ID = int64(len(f.events) + 1)
	e.Status = models.NotificationPending
	f.events = append(f.events, e)
	return nil
}

func TestPublishRemovesAffectedFromFollowers(t *testing.T) {
	outbox := &fakeOutbox{}
	p := NewPublisher(outbox)

	err := p.Publish(context.Background(), Event{
		Name:            EventQuestionAccepted,
		ResourceType:    ResourceQuestion,
		ResourceID:      7,
		AffectedUserIDs: []int64{2, 1, 2},
		FollowerIDs:     []int64{1, 3, 4, 3},
	})
	require.NoError(t, err)
	require.Len(t, outbox.events, 1)

	e := outbox.events[0]
	assert.Equal(t, []int64{1, 2}, e.AffectedUserIDs)
	assert.Equal(t, []int64{3, 4}, e.FollowerIDs)
	assert.Equal(t, int64(7), e.ResourceID)
}

func TestPublishSkipsEventsWithoutRecipients(t *testing.T) {
	outbox := &fakeOutbox{}
	p := NewPublisher(outbox)

	require.NoError(t, p.Publish(context.Background(), Event{Name: EventQuestionRejected, ResourceID: 1}))
	assert.Empty(t, outbox.events)
}

func TestAnswerEvent(t *testing.T) {
	tests := []struct {
		state lifecycle.State
		event string
		ok    bool
	}{
		{lifecycle.Accepted, EventQuestionAccepted, true},
		{lifecycle.Rejected, EventQuestionRejected, true},
		{lifecycle.Evaluating, EventQuestionEvaluating, true},
		{lifecycle.NotAnswered, "", false},
		{lifecycle.Withdrawn, "", false},
	}
	for _, tt := range tests {
		event, ok := AnswerEvent(tt.state)
		assert.Equal(t, tt.event, event, tt.state)
		assert.Equal(t, tt.ok, ok, tt.state)
	}
}

type fakeStore struct {
	pending []models.NotificationEvent
	sent    []int64
	failed  map[int64]string
}

func (f *fakeStore) ClaimPending(_ context.Context, limit int, _ time.Duration) ([]models.NotificationEvent, error) {
	if len(f.pending) > limit {
		return f.pending[:limit], nil
	}
	return f.pending, nil
}

func (f *fakeStore) MarkSent(_ context.Context, id int64) error {
	f.sent = append(f.sent, id)
	return nil
}

func (f *fakeStore) MarkAttemptFailed(_ context.Context, id int64, cause string, _ int) error {
	if f.failed == nil {
		f.failed = map[int64]string{}
	}
	f.failed[id] = cause
	return nil
}

type fakeUsers map[int64]models.User

func (f fakeUsers) GetByIDs(_ context.Context, ids []int64) ([]models.User, error) {
	var out []models.User
	for _, id := range ids {
		if u, ok := f[id]; ok {
			out = append(out, u)
		}
	}
	return out, nil
}

type fakeSender struct {
	mu       sync.Mutex
	failFor  string
	received []email.Notification
	to       []string
}

func (f *fakeSender) SendNotification(_ context.Context, to string, n email.Notification) error {
	if to == f.failFor {
		return errors.New("mailbox unavailable")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.received = append(f.received, n)
	f.to = append(f.to, to)
	return nil
}

func TestDeliverPending(t *testing.T) {
	store := &fakeStore{pending: []models.NotificationEvent{
		{
			ID:              1,
			EventName:       EventQuestionAccepted,
			AffectedUserIDs: []int64{10},
			FollowerIDs:     []int64{11},
			Extra:           models.JSONMap{"question_title": "Bike lanes"},
		},
		{
			ID:              2,
			EventName:       EventQuestionRejected,
			AffectedUserIDs: []int64{12},
		},
	}}
	users := fakeUsers{
		10: {ID: 10, Name: "Ana", Email: "ana@example.org"},
		11: {ID: 11, Name: "Ben", Email: "ben@example.org"},
		12: {ID: 12, Name: "Cy", Email: "cy@example.org"},
	}
	sender := &fakeSender{failFor: "cy@example.org"}

	d := NewDeliverer(store, users, sender, DeliveryConfig{
		BatchSize:      10,
		MaxAttempts:    3,
		MaxElapsedTime: 10 * time.Millisecond,
		Concurrency:    2,
	})

	stats, err := d.DeliverPending(context.Background())
	require.NoError(t, err)
	assert.Equal(t, DeliveryStats{Claimed: 2, Sent: 1, Failed: 1}, stats)
	assert.Equal(t, []int64{1}, store.sent)
	assert.Contains(t, store.failed[2], "mailbox unavailable")

	require.Len(t, sender.received, 2)
	byRecipient := map[string]email.Notification{}
	for i, to := range sender.to {
		byRecipient[to] = sender.received[i]
	}
	assert.True(t, byRecipient["ana@example.org"].Affected)
	assert.False(t, byRecipient["ben@example.org"].Affected)
	assert.Equal(t, "Bike lanes", byRecipient["ben@example.org"].QuestionTitle)
}

func TestDeliverPendingEmptyOutbox(t *testing.T) {
	d := NewDeliverer(&fakeStore{}, fakeUsers{}, &fakeSender{}, DeliveryConfig{})

	stats, err := d.DeliverPending(context.Background())
	require.NoError(t, err)
	assert.Equal(t, DeliveryStats{}, stats)
}

// serialUsers fails when lookups overlap, the way a single database
// connection would
type serialUsers struct {
	users  fakeUsers
	active atomic.Int32
	calls  atomic.Int32
}

func (s *serialUsers) GetByIDs(ctx context.Context, ids []int64) ([]models.User, error) {
	if s.active.Add(1) > 1 {
		s.active.Add(-1)
		return nil, errors.New("concurrent query on one connection")
	}
	defer s.active.Add(-1)
	s.calls.Add(1)
	time.Sleep(5 * time.Millisecond)
	return s.users.GetByIDs(ctx, ids)
}

// serialStore fails when outbox updates overlap
type serialStore struct {
	fakeStore
	active atomic.Int32
}

func (s *serialStore) enter() error {
	if s.active.Add(1) > 1 {
		s.active.Add(-1)
		return errors.New("concurrent query on one connection")
	}
	return nil
}

func (s *serialStore) MarkSent(ctx context.Context, id int64) error {
	if err := s.enter(); err != nil {
		return err
	}
	defer s.active.Add(-1)
	return s.fakeStore.MarkSent(ctx, id)
}

func (s *serialStore) MarkAttemptFailed(ctx context.Context, id int64, cause string, maxAttempts int) error {
	if err := s.enter(); err != nil {
		return err
	}
	defer s.active.Add(-1)
	return s.fakeStore.MarkAttemptFailed(ctx, id, cause, maxAttempts)
}

type slowSender struct {
	fakeSender
}

func (s *slowSender) SendNotification(ctx context.Context, to string, n email.Notification) error {
	time.Sleep(5 * time.Millisecond)
	return s.fakeSender.SendNotification(ctx, to, n)
}

func TestDeliverPendingKeepsDatabaseCallsSerial(t *testing.T) {
	var pending []models.NotificationEvent
	users := fakeUsers{}
	for i := int64(1); i <= 8; i++ {
		pending = append(pending, models.NotificationEvent{
			ID:              i,
			EventName:       EventQuestionAccepted,
			AffectedUserIDs: []int64{100 + i},
			FollowerIDs:     []int64{200},
		})
		users[100+i] = models.User{ID: 100 + i, Name: "Author", Email: "author" + string(rune('a'+i)) + "@example.org"}
	}
	users[200] = models.User{ID: 200, Name: "Follower", Email: "follower@example.org"}

	store := &serialStore{fakeStore: fakeStore{pending: pending}}
	lookup := &serialUsers{users: users}
	sender := &slowSender{}

	d := NewDeliverer(store, lookup, sender, DeliveryConfig{
		BatchSize:      10,
		MaxAttempts:    3,
		MaxElapsedTime: 10 * time.Millisecond,
		Concurrency:    4,
	})

	stats, err := d.DeliverPending(context.Background())
	require.NoError(t, err)
	assert.Equal(t, DeliveryStats{Claimed: 8, Sent: 8}, stats)
	assert.Empty(t, store.failed)
	assert.Equal(t, int32(1), lookup.calls.Load(), "recipients are loaded once per batch")
	assert.Len(t, sender.received, 16)
}
