package client

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errTimeout = errors.New("timeout")

// scriptedLookup answers lookups in issue order from the replies channel of each call.
type scriptedLookup struct {
	mu    sync.Mutex
	calls []chan lookupReply
}

type lookupReply struct {
	me  Me
	err error
}

func (s *scriptedLookup) lookup(ctx context.Context) (Me, error) {
	ch := make(chan lookupReply, 1)
	s.mu.Lock()
	s.calls = append(s.calls, ch)
	s.mu.Unlock()
	r := <-ch
	return r.me, r.err
}

func (s *scriptedLookup) waitCalls(t *testing.T, n int) {
	t.Helper()
	assert.Eventually(t, func() bool {
		s.mu.Lock()
		defer s.mu.Unlock()
		return len(s.calls) >= n
	}, time.Second, time.Millisecond)
}

func (s *scriptedLookup) reply(i int, r lookupReply) {
	s.mu.Lock()
	ch := s.calls[i]
	s.mu.Unlock()
	ch <- r
}

func TestRoleResolver_staleResponseDiscarded(t *testing.T) {
	lookup := &scriptedLookup{}
	var changes []RoleState
	r := NewRoleResolver(lookup.lookup, func(st RoleState) { changes = append(changes, st) })

	type result struct {
		st      RoleState
		applied bool
	}
	first, second := make(chan result, 1), make(chan result, 1)

	go func() { st, ok := r.Resolve(context.Background()); first <- result{st, ok} }()
	lookup.waitCalls(t, 1)
	go func() { st, ok := r.Resolve(context.Background()); second <- result{st, ok} }()
	lookup.waitCalls(t, 2)

	// the newer lookup answers first, the older one is slower
	lookup.reply(1, lookupReply{me: Me{Role: "executive:", IsActive: true}})
	res := <-second
	require.True(t, res.applied)
	assert.True(t, res.st.IsExecutive())

	lookup.reply(0, lookupReply{me: Me{Role: "admin:", IsActive: true}})
	res = <-first
	assert.False(t, res.applied)
	assert.True(t, res.st.IsExecutive())
	assert.False(t, r.State().IsAdmin())
	assert.Len(t, changes, 1)
}

func TestRoleResolver_failureKeepsLastGoodRole(t *testing.T) {
	replies := []lookupReply{
		{err: errTimeout},
		{me: Me{Email: "ada@school.test", Role: "staff:", IsActive: true}},
		{err: errTimeout},
	}
	var i int
	r := NewRoleResolver(func(context.Context) (Me, error) {
		rep := replies[i]
		i++
		return rep.me, rep.err
	}, nil)

	st, applied := r.Resolve(context.Background())
	assert.True(t, applied)
	assert.False(t, st.Resolved)
	assert.False(t, st.CanWrite())
	assert.Equal(t, errTimeout, st.Err)

	st, _ = r.Resolve(context.Background())
	assert.True(t, st.CanWrite())
	assert.NoError(t, st.Err)

	st, _ = r.Resolve(context.Background())
	assert.True(t, st.CanWrite())
	assert.Equal(t, "staff:", st.Me.Role)
	assert.Equal(t, errTimeout, st.Err)

	r.Reset()
	assert.False(t, r.State().Resolved)
	assert.False(t, r.State().CanWrite())
}

func TestRoleState(t *testing.T) {
	tests := []struct {
		name                           string
		st                             RoleState
		wantAdmin, wantWrite, wantExec bool
	}{
		{name: "unresolved", st: RoleState{Me: Me{Role: "admin:", IsActive: true}}},
		{name: "inactive", st: RoleState{Resolved: true, Me: Me{Role: "admin:"}}},
		{name: "owner", st: RoleState{Resolved: true, Me: Me{Role: "admin:owner", IsActive: true}}, wantAdmin: true, wantWrite: true},
		{name: "staff", st: RoleState{Resolved: true, Me: Me{Role: "staff:", IsActive: true}}, wantWrite: true},
		{name: "executive", st: RoleState{Resolved: true, Me: Me{Role: "executive:", IsActive: true}}, wantExec: true},
		{name: "no role", st: RoleState{Resolved: true, Me: Me{IsActive: true}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantAdmin, tt.st.IsAdmin())
			assert.Equal(t, tt.wantWrite, tt.st.CanWrite())
			assert.Equal(t, tt.wantExec, tt.st.IsExecutive())
		})
	}
}
