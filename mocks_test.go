package sts_test

import (
	"context"
	"sync"

	sts "github.com/goliatone/go-sts"
	"github.com/stretchr/testify/mock"
)

// testUser is a minimal int64 keyed user.
type testUser struct {
	ID       int64
	UserName string
}

func (u *testUser) GetID() int64        { return u.ID }
func (u *testUser) GetUserName() string { return u.UserName }

// MockUserStore implements the core store contract plus passwords.
type MockUserStore struct {
	mock.Mock
}

func (m *MockUserStore) Create(ctx context.Context, user *testUser) (sts.OperationResult, error) {
	args := m.Called(ctx, user)
	return args.Get(0).(sts.OperationResult), args.Error(1)
}

func (m *MockUserStore) AddLogin(ctx context.Context, userID int64, login sts.ExternalLoginInfo) (sts.OperationResult, error) {
	args := m.Called(ctx, userID, login)
	return args.Get(0).(sts.OperationResult), args.Error(1)
}

func (m *MockUserStore) FindByID(ctx context.Context, id int64) (*testUser, bool, error) {
	args := m.Called(ctx, id)
	user, _ := args.Get(0).(*testUser)
	return user, args.Bool(1), args.Error(2)
}

func (m *MockUserStore) FindByUserName(ctx context.Context, userName string) (*testUser, bool, error) {
	args := m.Called(ctx, userName)
	user, _ := args.Get(0).(*testUser)
	return user, args.Bool(1), args.Error(2)
}

func (m *MockUserStore) FindByLogin(ctx context.Context, login sts.ExternalLoginInfo) (*testUser, bool, error) {
	args := m.Called(ctx, login)
	user, _ := args.Get(0).(*testUser)
	return user, args.Bool(1), args.Error(2)
}

func (m *MockUserStore) CheckPassword(ctx context.Context, user *testUser, password string) (bool, error) {
	args := m.Called(ctx, user, password)
	return args.Bool(0), args.Error(1)
}

// recordingSink collects activity events.
type recordingSink struct {
	mu     sync.Mutex
	events []sts.ActivityEvent
}

func (r *recordingSink) Record(_ context.Context, event sts.ActivityEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *recordingSink) outcomes(typ sts.ActivityEventType) []sts.AuthOutcome {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []sts.AuthOutcome
	for _, e := range r.events {
		if e.EventType == typ {
			out = append(out, e.Outcome)
		}
	}
	return out
}

func (r *recordingSink) last() sts.ActivityEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.events) == 0 {
		return sts.ActivityEvent{}
	}
	return r.events[len(r.events)-1]
}

// nopStore satisfies the core contract for any key type and finds nothing.
type nopStore[U sts.User[K], K comparable] struct{}

func (nopStore[U, K]) Create(context.Context, U) (sts.OperationResult, error) {
	return sts.Success(), nil
}

func (nopStore[U, K]) AddLogin(context.Context, K, sts.ExternalLoginInfo) (sts.OperationResult, error) {
	return sts.Success(), nil
}

func (nopStore[U, K]) FindByID(context.Context, K) (U, bool, error) {
	var zero U
	return zero, false, nil
}

func (nopStore[U, K]) FindByUserName(context.Context, string) (U, bool, error) {
	var zero U
	return zero, false, nil
}

func (nopStore[U, K]) FindByLogin(context.Context, sts.ExternalLoginInfo) (U, bool, error) {
	var zero U
	return zero, false, nil
}

type floatUser struct{ ID float64 }

func (u *floatUser) GetID() float64      { return u.ID }
func (u *floatUser) GetUserName() string { return "" }
