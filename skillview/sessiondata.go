// Copyright 2026 The Mycroft GUI Authors
// SPDX-License-Identifier: Apache-2.0

package skillview

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/CilekciGs/mycroft-gui-fixed/lib/signal"
)

// RowModel is an ordered collection of row objects sharing a single
// field schema, the value shape backing list-like UI state. A
// session.set that refreshes the property clears and refills the same
// RowModel instance, so observers keep their subscription across
// updates instead of re-subscribing to a new collection.
type RowModel struct {
	mu     sync.RWMutex
	fields []string
	rows   []map[string]any

	reset signal.Signal[struct{}]
}

// Len returns the number of rows.
func (m *RowModel) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.rows)
}

// Row returns a copy of row i, or nil when out of range.
func (m *RowModel) Row(i int) map[string]any {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if i < 0 || i >= len(m.rows) {
		return nil
	}
	return copyRow(m.rows[i])
}

// Rows returns copies of all rows in order.
func (m *RowModel) Rows() []map[string]any {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rows := make([]map[string]any, len(m.rows))
	for i, row := range m.rows {
		rows[i] = copyRow(row)
	}
	return rows
}

// Fields returns the shared field schema, sorted. Taken from the
// first row; rows that deviated were accepted but reported.
func (m *RowModel) Fields() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	fields := make([]string, len(m.fields))
	copy(fields, m.fields)
	return fields
}

// OnReset subscribes to wholesale content replacement.
func (m *RowModel) OnReset(callback func()) (cancel func()) {
	return m.reset.Subscribe(func(struct{}) { callback() })
}

// replace swaps the full contents in place and notifies observers.
func (m *RowModel) replace(fields []string, rows []map[string]any) {
	m.mu.Lock()
	m.fields = fields
	m.rows = rows
	m.mu.Unlock()
	m.reset.Emit(struct{}{})
}

func copyRow(row map[string]any) map[string]any {
	copied := make(map[string]any, len(row))
	for key, value := range row {
		copied[key] = value
	}
	return copied
}

// PropertyChange describes one committed mutation of a skill's
// session data.
type PropertyChange struct {
	// Property is the affected property name.
	Property string

	// Deleted is true when the property was removed rather than set.
	Deleted bool
}

// SessionData is one skill's property map: property name to value,
// where a value is either an opaque scalar/object or a *RowModel.
// Delegates hold a read reference; all writes come from the
// SessionStore applying wire messages.
type SessionData struct {
	skillID string

	mu         sync.RWMutex
	properties map[string]any

	changed signal.Signal[PropertyChange]
}

func newSessionData(skillID string) *SessionData {
	return &SessionData{
		skillID:    skillID,
		properties: make(map[string]any),
	}
}

// SkillID returns the owning skill.
func (d *SessionData) SkillID() string { return d.skillID }

// Value returns the current value of a property. A second return of
// false means the property is unset.
func (d *SessionData) Value(property string) (any, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	value, ok := d.properties[property]
	return value, ok
}

// Properties returns the set property names, sorted.
func (d *SessionData) Properties() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	names := make([]string, 0, len(d.properties))
	for name := range d.properties {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// OnChange subscribes to property mutations.
func (d *SessionData) OnChange(callback func(PropertyChange)) (cancel func()) {
	return d.changed.Subscribe(callback)
}

func (d *SessionData) set(property string, value any) {
	d.mu.Lock()
	d.properties[property] = value
	d.mu.Unlock()
	d.changed.Emit(PropertyChange{Property: property})
}

func (d *SessionData) delete(property string) bool {
	d.mu.Lock()
	if _, ok := d.properties[property]; !ok {
		d.mu.Unlock()
		return false
	}
	delete(d.properties, property)
	d.mu.Unlock()
	d.changed.Emit(PropertyChange{Property: property, Deleted: true})
	return true
}

// StoreChange identifies one committed mutation anywhere in the
// store: which skill, which property, and whether it was a delete.
// Consumers that care about a single skill subscribe to that skill's
// SessionData instead.
type StoreChange struct {
	SkillID  string
	Property string
	Deleted  bool
}

// SessionStore holds the per-skill session data for one view. Entries
// exist only for skills currently in the ActiveSkillList: they are
// created lazily on first use and destroyed by the list's removal
// cascade.
type SessionStore struct {
	logger *slog.Logger
	skills *ActiveSkillList

	mu      sync.Mutex
	entries map[string]*SessionData

	changed signal.Signal[StoreChange]
}

// NewSessionStore creates an empty store whose membership authority
// is skills.
func NewSessionStore(skills *ActiveSkillList, logger *slog.Logger) *SessionStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &SessionStore{
		logger:  logger,
		skills:  skills,
		entries: make(map[string]*SessionData),
	}
}

// DataForSkill returns the skill's session data, creating the entry
// lazily when the skill is active. Returns nil for inactive skills —
// the store never grows an entry the active list wouldn't vouch for.
func (s *SessionStore) DataForSkill(skillID string) *SessionData {
	s.mu.Lock()
	defer s.mu.Unlock()
	if entry, ok := s.entries[skillID]; ok {
		return entry
	}
	if !s.skills.Contains(skillID) {
		return nil
	}
	entry := newSessionData(skillID)
	s.entries[skillID] = entry
	return entry
}

// SkillCount returns the number of skills with session data.
func (s *SessionStore) SkillCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// HasSkill reports whether skillID currently has a session entry.
func (s *SessionStore) HasSkill(skillID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.entries[skillID]
	return ok
}

// ApplyUpdate merges a property map from a session.set message into
// the skill's entry. The whole update is rejected when the skill is
// not active or the map is empty. Per property:
//
//   - a non-empty array value is a row-collection: every element must
//     be an object or that property's update is aborted with the
//     previous contents preserved; rows with a deviating field set
//     are accepted but reported. The rows land in the existing
//     RowModel in place, or a new one when the property held none.
//   - any other value replaces the property wholesale, destroying a
//     prior RowModel for that property.
//
// Properties apply in key order, so a partially valid update has a
// deterministic effect.
func (s *SessionStore) ApplyUpdate(skillID string, properties map[string]any) error {
	if skillID == "" {
		return fmt.Errorf("skillview: session update without a skill id")
	}
	if !s.skills.Contains(skillID) {
		return fmt.Errorf("skillview: session update for inactive skill %q", skillID)
	}
	if len(properties) == 0 {
		return fmt.Errorf("skillview: empty session update for skill %q", skillID)
	}

	entry := s.DataForSkill(skillID)

	names := make([]string, 0, len(properties))
	for name := range properties {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if s.applyProperty(entry, name, properties[name]) {
			s.changed.Emit(StoreChange{SkillID: skillID, Property: name})
		}
	}
	return nil
}

// applyProperty routes one property through the row-collection or
// scalar path. Returns whether the entry was actually mutated.
func (s *SessionStore) applyProperty(entry *SessionData, property string, value any) bool {
	rows, isCollection := value.([]any)
	if !isCollection || len(rows) == 0 {
		// Scalar path. Covers objects and empty arrays too: an empty
		// array carries no rows and is stored as-is, replacing any
		// prior RowModel.
		entry.set(property, value)
		return true
	}

	fields, rowMaps, err := ingestRows(rows)
	if err != nil {
		s.logger.Error("row collection rejected, previous contents preserved",
			"skill_id", entry.skillID,
			"property", property,
			"error", err,
		)
		return false
	}
	if fields == nil {
		// ingestRows reported a schema inconsistency; the collection
		// is still applied best-effort.
		s.logger.Warn("row collection with inconsistent field sets",
			"skill_id", entry.skillID,
			"property", property,
		)
	}

	if current, ok := entry.Value(property); ok {
		if model, ok := current.(*RowModel); ok {
			// In-place refresh: same model instance, observers keep
			// their subscriptions.
			model.replace(schemaOf(rowMaps), rowMaps)
			return true
		}
	}

	model := &RowModel{fields: schemaOf(rowMaps), rows: rowMaps}
	entry.set(property, model)
	return true
}

// ingestRows validates a row-collection payload. A non-object element
// is fatal for the collection. Field-set deviations are non-fatal:
// the rows are returned with fields == nil so the caller can report
// the inconsistency.
func ingestRows(rows []any) (fields []string, rowMaps []map[string]any, err error) {
	rowMaps = make([]map[string]any, len(rows))
	for i, raw := range rows {
		row, ok := raw.(map[string]any)
		if !ok {
			return nil, nil, fmt.Errorf("row %d is %T, not an object", i, raw)
		}
		rowMaps[i] = row
	}

	fields = schemaOf(rowMaps)
	for _, row := range rowMaps[1:] {
		if !sameFields(fields, row) {
			return nil, rowMaps, nil
		}
	}
	return fields, rowMaps, nil
}

// schemaOf returns the sorted field names of the first row.
func schemaOf(rows []map[string]any) []string {
	if len(rows) == 0 {
		return nil
	}
	fields := make([]string, 0, len(rows[0]))
	for field := range rows[0] {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	return fields
}

func sameFields(fields []string, row map[string]any) bool {
	if len(row) != len(fields) {
		return false
	}
	for _, field := range fields {
		if _, ok := row[field]; !ok {
			return false
		}
	}
	return true
}

// DeleteProperty removes one property from a skill's entry. Rejected
// when the skill is not active, has no session data, or the property
// is unset. Other properties are untouched.
func (s *SessionStore) DeleteProperty(skillID, property string) error {
	if skillID == "" {
		return fmt.Errorf("skillview: session delete without a skill id")
	}
	if property == "" {
		return fmt.Errorf("skillview: session delete without a property")
	}
	if !s.skills.Contains(skillID) {
		return fmt.Errorf("skillview: session delete for inactive skill %q", skillID)
	}

	s.mu.Lock()
	entry, ok := s.entries[skillID]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("skillview: skill %q has no session data", skillID)
	}

	if !entry.delete(property) {
		return fmt.Errorf("skillview: skill %q has no property %q", skillID, property)
	}
	s.changed.Emit(StoreChange{SkillID: skillID, Property: property, Deleted: true})
	return nil
}

// OnChange registers a callback for every committed mutation in the
// store, regardless of skill. Returns a cancel function.
func (s *SessionStore) OnChange(callback func(StoreChange)) func() {
	return s.changed.Subscribe(callback)
}

// RemoveSkill drops a skill's entry. Called by the active-skill
// list's removal cascade; missing entries are fine (the skill may
// never have received session data).
func (s *SessionStore) RemoveSkill(skillID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, skillID)
}
