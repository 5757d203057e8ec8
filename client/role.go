package client

import (
	"context"
	"strings"
	"sync"
)

// Role prefixes as returned by /api/me.
const (
	rolePrefixAdmin     = "admin"
	rolePrefixStaff     = "staff"
	rolePrefixExecutive = "executive"
)

// RoleState is what the UI gates on. Role keeps the last good lookup across failures.
type RoleState struct {
	Me       Me
	Resolved bool
	Err      error
}

func (s RoleState) hasPrefix(prefix string) bool {
	return s.Resolved && s.Me.IsActive && strings.HasPrefix(s.Me.Role, prefix)
}

func (s RoleState) IsAdmin() bool     { return s.hasPrefix(rolePrefixAdmin) }
func (s RoleState) IsExecutive() bool { return s.hasPrefix(rolePrefixExecutive) }

// CanWrite reports whether the user may enter metrics, notes & snapshots.
func (s RoleState) CanWrite() bool {
	return s.hasPrefix(rolePrefixAdmin) || s.hasPrefix(rolePrefixStaff)
}

// RoleLookup fetches the role of the current session. (*Client).Me satisfies it.
type RoleLookup func(ctx context.Context) (Me, error)

// RoleResolver sequences overlapping role lookups (boot, token refresh, re-auth).
// Only the most recently issued lookup may change the state, and a failed lookup
// never replaces the last good role.
type RoleResolver struct {
	lookup   RoleLookup
	onChange func(RoleState)

	mu    sync.Mutex
	gen   uint64
	state RoleState
}

// NewRoleResolver returns a resolver. onChange, if set, receives every applied state.
func NewRoleResolver(lookup RoleLookup, onChange func(RoleState)) *RoleResolver {
	return &RoleResolver{lookup: lookup, onChange: onChange}
}

// Resolve issues a lookup and reports whether its result was applied. A result is
// dropped when a newer lookup was issued (or Reset called) while it was in flight.
func (r *RoleResolver) Resolve(ctx context.Context) (RoleState, bool) {
	r.mu.Lock()
	r.gen++
	gen := r.gen
	r.mu.Unlock()

	me, err := r.lookup(ctx)

	r.mu.Lock()
	if gen != r.gen {
		st := r.state
		r.mu.Unlock()
		return st, false
	}
	if err != nil {
		r.state.Err = err
	} else {
		r.state = RoleState{Me: me, Resolved: true}
	}
	st := r.state
	r.mu.Unlock()

	if r.onChange != nil {
		r.onChange(st)
	}
	return st, true
}

func (r *RoleResolver) State() RoleState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Reset forgets the resolved role (sign out) and supersedes lookups in flight.
func (r *RoleResolver) Reset() {
	r.mu.Lock()
	r.gen++
	r.state = RoleState{}
	st := r.state
	r.mu.Unlock()

	if r.onChange != nil {
		r.onChange(st)
	}
}
