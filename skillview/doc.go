// Copyright 2026 The Mycroft GUI Authors
// SPDX-License-Identifier: Apache-2.0

// Package skillview mirrors the backend's GUI session over the
// secondary channel: the ordered list of active skills, each skill's
// session data store, and one delegate per (skill, view template)
// pair.
//
// A View owns the GUI channel transport. The channel is dependent on
// the primary connection: it opens only while the primary is open,
// invalidates its address when the primary drops, and reconnects on
// its own 1-second timer if only its own transport dies. Every
// inbound frame is decoded and dispatched to the three state
// components (ActiveSkillList, SessionStore, DelegateRegistry) on
// the single read goroutine, so mutations are strictly ordered as
// received. Protocol faults of any kind degrade to a logged warning
// with state unchanged; nothing a frame contains can crash the
// mirror.
//
// The backend is the single source of truth. Nothing here originates
// a structural mutation: the client only applies what the wire says,
// validates it, and cascades the consequences (removing a skill tears
// down its session data and delegates before the removal becomes
// observable).
package skillview
