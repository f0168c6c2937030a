// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package settings

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
)

// Global is the scope argument that addresses the global value of a
// key. Any other value is a guild id.
const Global = ""

// Restriction limits which scopes a key exists in.
type Restriction int

const (
	// PerGuild keys have a global value and an independent value per
	// guild.
	PerGuild Restriction = iota
	// GlobalOnly keys have only the global value. Reads from a guild
	// scope return it; writes to a guild scope are refused.
	GlobalOnly
	// GuildOnly keys exist only per guild. Global writes are refused
	// and global reads return the default.
	GuildOnly
)

func (r Restriction) String() string {
	switch r {
	case PerGuild:
		return "per-guild"
	case GlobalOnly:
		return "global-only"
	case GuildOnly:
		return "guild-only"
	}
	return fmt.Sprintf("Restriction(%d)", int(r))
}

// Key declares one setting.
type Key struct {
	Name        string
	Type        Type
	Default     any
	Description string

	// Confirm, when non-empty, is a question the settings command
	// asks before committing a new value. The store does not enforce
	// it.
	Confirm string

	// Notify asks the store to report committed changes to this key.
	Notify bool

	// Restriction is set by the store from the declaration group the
	// key was registered in.
	Restriction Restriction
}

// Declarations is the full set of keys a module owns, split into the
// three scope groups. Names must be unique across all three.
type Declarations struct {
	PerGuild   []Key
	GlobalOnly []Key
	GuildOnly  []Key
}

// Empty reports whether no keys are declared.
func (d Declarations) Empty() bool {
	return len(d.PerGuild) == 0 && len(d.GlobalOnly) == 0 && len(d.GuildOnly) == 0
}

// Change describes one committed write.
type Change struct {
	Namespace string
	Key       string
	// Scope is Global or the guild id the value was written in.
	Scope string
	Old   any
	New   any
}

// Notifier receives changes to keys declared with Notify. Set calls it
// synchronously without holding the store lock, so it may read the
// store.
type Notifier func(Change)

// Values is the exported form of every explicitly set value, keyed by
// namespace and key name, holding each value's canonical string form.
type Values struct {
	Global map[string]map[string]string            `cbor:"global,omitempty"`
	Guilds map[string]map[string]map[string]string `cbor:"guilds,omitempty"`
}

// ErrUnknownKey is wrapped by errors for keys that are not registered.
var ErrUnknownKey = errors.New("unknown setting")

// ValidationError reports a value rejected by its key's type or scope
// restriction. The store is unchanged when it is returned.
type ValidationError struct {
	Namespace string
	Key       string
	Raw       string
	Reason    string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid value %q for %s.%s: %s", e.Raw, e.Namespace, e.Key, e.Reason)
}

// AsValidationError extracts a *ValidationError from err's chain.
func AsValidationError(err error) (*ValidationError, bool) {
	var validation *ValidationError
	if errors.As(err, &validation) {
		return validation, true
	}
	return nil, false
}

type slot struct {
	value any
	// explicit is true when the value came from Set or Import rather
	// than from default materialization. Only explicit values are
	// exported.
	explicit bool
}

type namespace struct {
	keys  map[string]*Key
	order []string
}

// Store holds every registered key and its materialized values. Safe
// for concurrent use.
type Store struct {
	logger *slog.Logger

	mu         sync.Mutex
	namespaces map[string]*namespace
	global     map[string]map[string]*slot
	guilds     map[string]map[string]map[string]*slot
	notify     Notifier

	// orphans carries imported values whose key is not registered.
	orphans Values
}

// NewStore returns an empty store. A nil logger discards output.
func NewStore(logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Store{
		logger:     logger,
		namespaces: make(map[string]*namespace),
		global:     make(map[string]map[string]*slot),
		guilds:     make(map[string]map[string]map[string]*slot),
	}
}

// SetNotifier installs the change callback. Passing nil disables
// notification.
func (s *Store) SetNotifier(notify Notifier) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notify = notify
}

// RegisterAll registers every key in declarations under ns, stamping
// each key's Restriction from its group.
func (s *Store) RegisterAll(ns string, declarations Declarations) error {
	groups := []struct {
		restriction Restriction
		keys        []Key
	}{
		{PerGuild, declarations.PerGuild},
		{GlobalOnly, declarations.GlobalOnly},
		{GuildOnly, declarations.GuildOnly},
	}
	for _, group := range groups {
		for _, key := range group.keys {
			key.Restriction = group.restriction
			if err := s.Register(ns, key); err != nil {
				return err
			}
		}
	}
	return nil
}

// Register adds one key to ns and materializes its default into every
// scope the store already knows about. The default must pass the key's
// own type.
func (s *Store) Register(ns string, key Key) error {
	if ns == "" {
		return errors.New("settings: empty namespace")
	}
	if key.Name == "" {
		return fmt.Errorf("settings: %s: empty key name", ns)
	}
	if key.Type == nil {
		return fmt.Errorf("settings: %s.%s: no type", ns, key.Name)
	}
	normalized, err := key.Type.Parse(key.Type.Format(key.Default))
	if err != nil {
		return fmt.Errorf("settings: %s.%s: default %v: %w", ns, key.Name, key.Default, err)
	}
	key.Default = normalized

	s.mu.Lock()
	defer s.mu.Unlock()

	space := s.namespaces[ns]
	if space == nil {
		space = &namespace{keys: make(map[string]*Key)}
		s.namespaces[ns] = space
	}
	if _, exists := space.keys[key.Name]; exists {
		return fmt.Errorf("settings: %s.%s registered twice", ns, key.Name)
	}
	registered := key
	space.keys[key.Name] = &registered
	space.order = append(space.order, key.Name)

	if key.Restriction != GuildOnly {
		s.materializeLocked(s.globalSlots(ns), &registered)
	}
	if key.Restriction != GlobalOnly {
		for guild := range s.guilds {
			s.materializeLocked(s.guildSlots(guild, ns), &registered)
		}
	}
	s.adoptOrphansLocked(ns, &registered)
	return nil
}

// Lookup returns the declaration of ns.name.
func (s *Store) Lookup(ns, name string) (Key, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key, err := s.keyLocked(ns, name)
	if err != nil {
		return Key{}, false
	}
	return *key, true
}

// Keys returns the declarations of ns in registration order.
func (s *Store) Keys(ns string) []Key {
	s.mu.Lock()
	defer s.mu.Unlock()
	space := s.namespaces[ns]
	if space == nil {
		return nil
	}
	keys := make([]Key, 0, len(space.order))
	for _, name := range space.order {
		keys = append(keys, *space.keys[name])
	}
	return keys
}

// Namespaces returns every namespace with at least one key, sorted.
func (s *Store) Namespaces() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.namespaces))
	for name := range s.namespaces {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// AddGuild materializes every applicable default for guild. Calling it
// for a known guild is a no-op.
func (s *Store) AddGuild(guild string) {
	if guild == Global {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, known := s.guilds[guild]; known {
		return
	}
	s.materializeGuildLocked(guild)
}

// Get returns the value of ns.name in scope, materializing the default
// if the pair has never been read or written.
func (s *Store) Get(scope, ns, name string) (any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key, err := s.keyLocked(ns, name)
	if err != nil {
		return nil, err
	}
	switch {
	case key.Restriction == GlobalOnly || (scope == Global && key.Restriction == PerGuild):
		return s.materializeLocked(s.globalSlots(ns), key).value, nil
	case scope == Global:
		return key.Default, nil
	}
	if _, known := s.guilds[scope]; !known {
		s.materializeGuildLocked(scope)
	}
	return s.materializeLocked(s.guildSlots(scope, ns), key).value, nil
}

// GetGlobal is Get in the global scope.
func (s *Store) GetGlobal(ns, name string) (any, error) {
	return s.Get(Global, ns, name)
}

// Check reports whether Set(scope, ns, name, raw) would succeed and
// returns the value it would commit. The store is not changed.
func (s *Store) Check(scope, ns, name, raw string) (any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, value, err := s.checkLocked(scope, ns, name, raw)
	return value, err
}

func (s *Store) checkLocked(scope, ns, name, raw string) (*Key, any, error) {
	key, err := s.keyLocked(ns, name)
	if err != nil {
		return nil, nil, err
	}
	invalid := func(reason string) error {
		return &ValidationError{Namespace: ns, Key: name, Raw: raw, Reason: reason}
	}
	if scope != Global && key.Restriction == GlobalOnly {
		return nil, nil, invalid("can only be set globally")
	}
	if scope == Global && key.Restriction == GuildOnly {
		return nil, nil, invalid("can only be set inside a guild")
	}
	value, err := key.Type.Parse(raw)
	if err != nil {
		return nil, nil, invalid(err.Error())
	}
	return key, value, nil
}

// Set parses raw with the key's type and commits it in scope. On any
// error the store is unchanged. The committed value is returned.
func (s *Store) Set(scope, ns, name, raw string) (any, error) {
	s.mu.Lock()
	key, value, err := s.checkLocked(scope, ns, name, raw)
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}

	var slots map[string]*slot
	if scope == Global {
		slots = s.globalSlots(ns)
	} else {
		if _, known := s.guilds[scope]; !known {
			s.materializeGuildLocked(scope)
		}
		slots = s.guildSlots(scope, ns)
	}
	current := s.materializeLocked(slots, key)
	old := current.value
	current.value = value
	current.explicit = true
	notify := s.notify
	s.mu.Unlock()

	s.logger.Info("setting changed",
		"namespace", ns,
		"key", name,
		"scope", scopeLabel(scope),
		"value", key.Type.Format(value),
	)
	if key.Notify && notify != nil {
		notify(Change{Namespace: ns, Key: name, Scope: scope, Old: old, New: value})
	}
	return value, nil
}

// Format renders a value of ns.name for display.
func (s *Store) Format(ns, name string, value any) string {
	key, ok := s.Lookup(ns, name)
	if !ok {
		return fmt.Sprint(value)
	}
	return key.Type.Format(value)
}

// Export returns every explicitly set value, plus any imported values
// whose keys were never registered.
func (s *Store) Export() Values {
	s.mu.Lock()
	defer s.mu.Unlock()

	exported := Values{
		Global: cloneNamespaces(s.orphans.Global),
		Guilds: make(map[string]map[string]map[string]string),
	}
	for guild, spaces := range s.orphans.Guilds {
		exported.Guilds[guild] = cloneNamespaces(spaces)
	}
	exportSlots(s, exported.Global, s.global)
	for guild, spaces := range s.guilds {
		target := exported.Guilds[guild]
		if target == nil {
			target = make(map[string]map[string]string)
		}
		exportSlots(s, target, spaces)
		if len(target) > 0 {
			exported.Guilds[guild] = target
		}
	}
	for guild, spaces := range exported.Guilds {
		if len(spaces) == 0 {
			delete(exported.Guilds, guild)
		}
	}
	if len(exported.Global) == 0 {
		exported.Global = nil
	}
	if len(exported.Guilds) == 0 {
		exported.Guilds = nil
	}
	return exported
}

// Import loads values produced by Export. Values that no longer parse
// under their key's type are dropped with a warning. Values for keys
// not registered yet are held and applied if the key registers later.
// Import does not notify.
func (s *Store) Import(values Values) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for ns, entries := range values.Global {
		for name, raw := range entries {
			s.importLocked(Global, ns, name, raw)
		}
	}
	for guild, spaces := range values.Guilds {
		for ns, entries := range spaces {
			for name, raw := range entries {
				s.importLocked(guild, ns, name, raw)
			}
		}
	}
}

func (s *Store) importLocked(scope, ns, name, raw string) {
	key, err := s.keyLocked(ns, name)
	if err != nil {
		s.holdOrphanLocked(scope, ns, name, raw)
		return
	}
	if (scope == Global && key.Restriction == GuildOnly) || (scope != Global && key.Restriction == GlobalOnly) {
		s.logger.Warn("dropping persisted setting in wrong scope",
			"namespace", ns, "key", name, "scope", scopeLabel(scope))
		return
	}
	value, err := key.Type.Parse(raw)
	if err != nil {
		s.logger.Warn("dropping persisted setting that no longer validates",
			"namespace", ns, "key", name, "scope", scopeLabel(scope), "error", err)
		return
	}
	var slots map[string]*slot
	if scope == Global {
		slots = s.globalSlots(ns)
	} else {
		if _, known := s.guilds[scope]; !known {
			s.materializeGuildLocked(scope)
		}
		slots = s.guildSlots(scope, ns)
	}
	slots[name] = &slot{value: value, explicit: true}
}

func (s *Store) holdOrphanLocked(scope, ns, name, raw string) {
	var target map[string]map[string]string
	if scope == Global {
		if s.orphans.Global == nil {
			s.orphans.Global = make(map[string]map[string]string)
		}
		target = s.orphans.Global
	} else {
		if s.orphans.Guilds == nil {
			s.orphans.Guilds = make(map[string]map[string]map[string]string)
		}
		if s.orphans.Guilds[scope] == nil {
			s.orphans.Guilds[scope] = make(map[string]map[string]string)
		}
		target = s.orphans.Guilds[scope]
	}
	if target[ns] == nil {
		target[ns] = make(map[string]string)
	}
	target[ns][name] = raw
}

// adoptOrphansLocked moves held values for a newly registered key into
// the live store.
func (s *Store) adoptOrphansLocked(ns string, key *Key) {
	if raw, ok := s.orphans.Global[ns][key.Name]; ok {
		delete(s.orphans.Global[ns], key.Name)
		s.importLocked(Global, ns, key.Name, raw)
	}
	for guild, spaces := range s.orphans.Guilds {
		if raw, ok := spaces[ns][key.Name]; ok {
			delete(spaces[ns], key.Name)
			s.importLocked(guild, ns, key.Name, raw)
		}
	}
}

func (s *Store) keyLocked(ns, name string) (*Key, error) {
	space := s.namespaces[ns]
	if space == nil {
		return nil, fmt.Errorf("%w: %s.%s", ErrUnknownKey, ns, name)
	}
	key := space.keys[name]
	if key == nil {
		return nil, fmt.Errorf("%w: %s.%s", ErrUnknownKey, ns, name)
	}
	return key, nil
}

func (s *Store) globalSlots(ns string) map[string]*slot {
	slots := s.global[ns]
	if slots == nil {
		slots = make(map[string]*slot)
		s.global[ns] = slots
	}
	return slots
}

func (s *Store) guildSlots(guild, ns string) map[string]*slot {
	spaces := s.guilds[guild]
	if spaces == nil {
		spaces = make(map[string]map[string]*slot)
		s.guilds[guild] = spaces
	}
	slots := spaces[ns]
	if slots == nil {
		slots = make(map[string]*slot)
		spaces[ns] = slots
	}
	return slots
}

func (s *Store) materializeLocked(slots map[string]*slot, key *Key) *slot {
	current := slots[key.Name]
	if current == nil {
		current = &slot{value: key.Default}
		slots[key.Name] = current
	}
	return current
}

func (s *Store) materializeGuildLocked(guild string) {
	if s.guilds[guild] == nil {
		s.guilds[guild] = make(map[string]map[string]*slot)
	}
	for ns, space := range s.namespaces {
		for _, key := range space.keys {
			if key.Restriction == GlobalOnly {
				continue
			}
			s.materializeLocked(s.guildSlots(guild, ns), key)
		}
	}
}

func exportSlots(s *Store, target map[string]map[string]string, source map[string]map[string]*slot) {
	for ns, slots := range source {
		for name, current := range slots {
			if !current.explicit {
				continue
			}
			key, err := s.keyLocked(ns, name)
			if err != nil {
				continue
			}
			if target[ns] == nil {
				target[ns] = make(map[string]string)
			}
			target[ns][name] = key.Type.Format(current.value)
		}
	}
}

func cloneNamespaces(source map[string]map[string]string) map[string]map[string]string {
	clone := make(map[string]map[string]string, len(source))
	for ns, entries := range source {
		if len(entries) == 0 {
			continue
		}
		copied := make(map[string]string, len(entries))
		for name, raw := range entries {
			copied[name] = raw
		}
		clone[ns] = copied
	}
	return clone
}

func scopeLabel(scope string) string {
	if scope == Global {
		return "global"
	}
	return scope
}
