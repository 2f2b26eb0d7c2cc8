// Copyright 2026 The Mycroft GUI Authors
// SPDX-License-Identifier: Apache-2.0

package skillview

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/CilekciGs/mycroft-gui-fixed/lib/signal"
)

// ListOp discriminates ListChange notifications.
type ListOp int

const (
	// ListInsert: SkillIDs were inserted at Position.
	ListInsert ListOp = iota

	// ListRemove: SkillIDs were removed from Position. Their session
	// data and delegates are already gone when this fires.
	ListRemove

	// ListMove: Count entries moved from From to before the entry
	// that was at To.
	ListMove
)

// ListChange describes one committed mutation of the active-skill
// list. Observers see it only after all invariants are restored.
type ListChange struct {
	Op       ListOp
	Position int
	SkillIDs []string
	From     int
	To       int
	Count    int
}

// ActiveSkillList is the ordered, authoritative list of active skill
// identifiers. Order is z-order and comes from the backend; the
// client never reorders on its own initiative. The list never
// contains duplicates — a violating insert is rejected wholesale.
//
// Reads are safe from any goroutine. Mutations follow the
// single-writer discipline: they are only ever issued by the owning
// View's dispatch goroutine, one frame at a time.
type ActiveSkillList struct {
	logger *slog.Logger

	mu     sync.RWMutex
	skills []string

	// cleanupHooks run for each removed skill, in registration order,
	// after validation and before the structural removal commits.
	// Observers of the removal notification therefore never see a
	// skill whose session data or delegates still exist.
	cleanupHooks []func(skillID string)

	changed signal.Signal[ListChange]
}

// NewActiveSkillList creates an empty list.
func NewActiveSkillList(logger *slog.Logger) *ActiveSkillList {
	if logger == nil {
		logger = slog.Default()
	}
	return &ActiveSkillList{logger: logger}
}

// AddCleanupHook registers a cascade hook invoked once per removed
// skill before the removal commits.
func (l *ActiveSkillList) AddCleanupHook(hook func(skillID string)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.cleanupHooks = append(l.cleanupHooks, hook)
}

// OnChange subscribes to committed list mutations.
func (l *ActiveSkillList) OnChange(callback func(ListChange)) (cancel func()) {
	return l.changed.Subscribe(callback)
}

// Len returns the number of active skills.
func (l *ActiveSkillList) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.skills)
}

// Skills returns a copy of the ordered skill identifiers.
func (l *ActiveSkillList) Skills() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	skills := make([]string, len(l.skills))
	copy(skills, l.skills)
	return skills
}

// Contains reports whether skillID is currently active.
func (l *ActiveSkillList) Contains(skillID string) bool {
	return l.IndexOf(skillID) >= 0
}

// IndexOf returns the position of skillID, or -1.
func (l *ActiveSkillList) IndexOf(skillID string) int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	for i, candidate := range l.skills {
		if candidate == skillID {
			return i
		}
	}
	return -1
}

// Insert places skillIDs at position, shifting subsequent entries
// right. The whole insert is rejected — no mutation, error returned
// for the caller to report — when position is outside [0, Len()],
// skillIDs is empty, or any id is already active or repeated in the
// batch.
func (l *ActiveSkillList) Insert(position int, skillIDs []string) error {
	l.mu.Lock()
	if position < 0 || position > len(l.skills) {
		length := len(l.skills)
		l.mu.Unlock()
		return fmt.Errorf("skillview: insert position %d outside [0, %d]", position, length)
	}
	if len(skillIDs) == 0 {
		l.mu.Unlock()
		return fmt.Errorf("skillview: insert with no skills")
	}

	seen := make(map[string]bool, len(skillIDs))
	for _, skillID := range skillIDs {
		if seen[skillID] {
			l.mu.Unlock()
			return fmt.Errorf("skillview: insert repeats skill %q", skillID)
		}
		seen[skillID] = true
	}
	for _, existing := range l.skills {
		if seen[existing] {
			l.mu.Unlock()
			return fmt.Errorf("skillview: skill %q is already active", existing)
		}
	}

	inserted := make([]string, len(skillIDs))
	copy(inserted, skillIDs)

	updated := make([]string, 0, len(l.skills)+len(inserted))
	updated = append(updated, l.skills[:position]...)
	updated = append(updated, inserted...)
	updated = append(updated, l.skills[position:]...)
	l.skills = updated
	l.mu.Unlock()

	l.changed.Emit(ListChange{Op: ListInsert, Position: position, SkillIDs: inserted})
	return nil
}

// Remove deletes count entries starting at position. Rejected without
// mutation when position is outside [0, Len()-1] or count outside
// [0, Len()-position]. For each removed skill the cleanup hooks run
// first, so the removal notification is only observable once the
// skill's session data and delegates are gone. Count zero is a valid
// no-op.
func (l *ActiveSkillList) Remove(position, count int) error {
	l.mu.Lock()
	length := len(l.skills)
	if position < 0 || position > length-1 {
		l.mu.Unlock()
		return fmt.Errorf("skillview: remove position %d outside [0, %d]", position, length-1)
	}
	if count < 0 || count > length-position {
		l.mu.Unlock()
		return fmt.Errorf("skillview: remove count %d outside [0, %d]", count, length-position)
	}
	if count == 0 {
		l.mu.Unlock()
		return nil
	}

	removed := make([]string, count)
	copy(removed, l.skills[position:position+count])
	hooks := make([]func(string), len(l.cleanupHooks))
	copy(hooks, l.cleanupHooks)
	l.mu.Unlock()

	// Cascade before the structural removal. The single-writer
	// discipline guarantees no competing mutation interleaves here.
	for _, skillID := range removed {
		for _, hook := range hooks {
			hook(skillID)
		}
	}

	l.mu.Lock()
	l.skills = append(l.skills[:position], l.skills[position+count:]...)
	l.mu.Unlock()

	l.changed.Emit(ListChange{Op: ListRemove, Position: position, SkillIDs: removed})
	return nil
}

// Move relocates the block of count entries starting at from so it
// sits before the entry currently at to. Rejected without mutation
// when from or to is outside [0, Len()-1], count is outside
// (0, Len()-from], or to falls inside the moving block — the same
// overlap rule the upstream model applies. The move commits
// atomically: observers never see a transient list.
func (l *ActiveSkillList) Move(from, count, to int) error {
	l.mu.Lock()
	length := len(l.skills)
	if from < 0 || from > length-1 {
		l.mu.Unlock()
		return fmt.Errorf("skillview: move source %d outside [0, %d]", from, length-1)
	}
	if to < 0 || to > length-1 {
		l.mu.Unlock()
		return fmt.Errorf("skillview: move destination %d outside [0, %d]", to, length-1)
	}
	if count <= 0 || count > length-from {
		l.mu.Unlock()
		return fmt.Errorf("skillview: move count %d outside (0, %d]", count, length-from)
	}
	if to >= from && to <= from+count {
		l.mu.Unlock()
		return fmt.Errorf("skillview: move destination %d inside moving block [%d, %d]", to, from, from+count)
	}

	block := make([]string, count)
	copy(block, l.skills[from:from+count])

	remaining := make([]string, 0, length-count)
	remaining = append(remaining, l.skills[:from]...)
	remaining = append(remaining, l.skills[from+count:]...)

	target := to
	if to > from {
		target = to - count
	}

	updated := make([]string, 0, length)
	updated = append(updated, remaining[:target]...)
	updated = append(updated, block...)
	updated = append(updated, remaining[target:]...)
	l.skills = updated
	l.mu.Unlock()

	l.changed.Emit(ListChange{Op: ListMove, From: from, To: to, Count: count})
	return nil
}
