// Copyright 2026 The Mycroft GUI Authors
// SPDX-License-Identifier: Apache-2.0

package skillview

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/CilekciGs/mycroft-gui-fixed/protocol"
)

// Delegate is one live GUI surface: a (skill, template URL) pair the
// backend asked the client to show. Implementations render however
// they like; the registry only routes lifecycle and events.
type Delegate interface {
	// SkillID returns the owning skill.
	SkillID() string

	// TemplateURL returns the template this delegate renders.
	TemplateURL() string

	// Foreground asks the delegate to take focus. Called on first
	// show and again whenever the backend re-shows the same pair.
	Foreground()

	// TriggerEvent delivers a backend-originated event.
	TriggerEvent(name string, data map[string]any)

	// Release tears the delegate down. Called exactly once, when the
	// owning skill leaves the active list.
	Release()
}

// Loader constructs a delegate for a (skill, template URL) pair the
// registry has not seen. data is the skill's live session data, never
// nil. A Loader error leaves the registry unchanged; the next show
// for the same pair retries from scratch.
type Loader func(skillID, templateURL string, data *SessionData) (Delegate, error)

type delegateKey struct {
	skillID     string
	templateURL string
}

// DelegateRegistry owns the live delegates of one view, keyed by
// (skill, template URL) and remembered in insertion order so that
// system-wide event broadcast is deterministic.
type DelegateRegistry struct {
	logger *slog.Logger
	skills *ActiveSkillList
	store  *SessionStore
	loader Loader

	mu        sync.Mutex
	delegates map[delegateKey]Delegate
	order     []delegateKey
}

// NewDelegateRegistry creates an empty registry. loader may be nil,
// in which case Show fails until SetLoader installs one.
func NewDelegateRegistry(skills *ActiveSkillList, store *SessionStore, loader Loader, logger *slog.Logger) *DelegateRegistry {
	if logger == nil {
		logger = slog.Default()
	}
	return &DelegateRegistry{
		logger:    logger,
		skills:    skills,
		store:     store,
		loader:    loader,
		delegates: make(map[delegateKey]Delegate),
	}
}

// SetLoader replaces the delegate constructor. Existing delegates are
// untouched.
func (r *DelegateRegistry) SetLoader(loader Loader) {
	r.mu.Lock()
	r.loader = loader
	r.mu.Unlock()
}

// Show handles a backend request to surface a template for a skill.
// An already-registered pair is only foregrounded; a new pair goes
// through the Loader. The skill must be in the active list.
func (r *DelegateRegistry) Show(skillID, templateURL string) error {
	if skillID == "" {
		return fmt.Errorf("skillview: show without a skill id")
	}
	if templateURL == "" {
		return fmt.Errorf("skillview: show without a template url")
	}

	key := delegateKey{skillID: skillID, templateURL: templateURL}

	r.mu.Lock()
	if existing, ok := r.delegates[key]; ok {
		r.mu.Unlock()
		existing.Foreground()
		return nil
	}
	loader := r.loader
	r.mu.Unlock()

	if !r.skills.Contains(skillID) {
		return fmt.Errorf("skillview: show for inactive skill %q", skillID)
	}
	if loader == nil {
		return fmt.Errorf("skillview: no delegate loader installed")
	}

	data := r.store.DataForSkill(skillID)
	if data == nil {
		// Skill left the active list between the check above and the
		// store lookup.
		return fmt.Errorf("skillview: show for inactive skill %q", skillID)
	}

	delegate, err := loader(skillID, templateURL, data)
	if err != nil {
		return fmt.Errorf("skillview: loading delegate for skill %q template %q: %w", skillID, templateURL, err)
	}

	r.mu.Lock()
	if _, ok := r.delegates[key]; ok {
		// Lost a race with a concurrent Show for the same pair. Keep
		// the registered one.
		winner := r.delegates[key]
		r.mu.Unlock()
		delegate.Release()
		winner.Foreground()
		return nil
	}
	r.delegates[key] = delegate
	r.order = append(r.order, key)
	r.mu.Unlock()

	delegate.Foreground()
	return nil
}

// DispatchEvent routes a backend event. The reserved namespace
// "system" broadcasts to every delegate in insertion order; any other
// namespace is a skill id whose delegates alone receive the event,
// and which must be active.
func (r *DelegateRegistry) DispatchEvent(namespace, eventName string, data map[string]any) error {
	if eventName == "" {
		return fmt.Errorf("skillview: event without a name")
	}
	if namespace == "" {
		return fmt.Errorf("skillview: event %q without a namespace", eventName)
	}

	if namespace != protocol.NamespaceSystem && !r.skills.Contains(namespace) {
		return fmt.Errorf("skillview: event %q for inactive skill %q", eventName, namespace)
	}

	targets := r.snapshot(func(key delegateKey) bool {
		return namespace == protocol.NamespaceSystem || key.skillID == namespace
	})
	for _, delegate := range targets {
		delegate.TriggerEvent(eventName, data)
	}
	return nil
}

// DelegatesForSkill returns the skill's delegates in insertion order.
func (r *DelegateRegistry) DelegatesForSkill(skillID string) []Delegate {
	return r.snapshot(func(key delegateKey) bool { return key.skillID == skillID })
}

// Len returns the number of live delegates.
func (r *DelegateRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.delegates)
}

// RemoveSkill releases and forgets every delegate owned by skillID.
// Called by the active-skill list's removal cascade.
func (r *DelegateRegistry) RemoveSkill(skillID string) {
	r.mu.Lock()
	var released []Delegate
	kept := r.order[:0]
	for _, key := range r.order {
		if key.skillID == skillID {
			released = append(released, r.delegates[key])
			delete(r.delegates, key)
			continue
		}
		kept = append(kept, key)
	}
	r.order = kept
	r.mu.Unlock()

	for _, delegate := range released {
		delegate.Release()
	}
}

// snapshot collects matching delegates in insertion order without
// holding the lock across delegate calls.
func (r *DelegateRegistry) snapshot(match func(delegateKey) bool) []Delegate {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Delegate
	for _, key := range r.order {
		if match(key) {
			out = append(out, r.delegates[key])
		}
	}
	return out
}
