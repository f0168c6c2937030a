// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package settings

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store := NewStore(nil)
	err := store.RegisterAll("karma", Declarations{
		PerGuild: []Key{
			{Name: "chance", Type: Percent{}, Default: 0.1},
			{Name: "cooldown", Type: IntRange{Min: 0, Max: 3600}, Default: 30, Notify: true},
		},
		GlobalOnly: []Key{
			{Name: "announce", Type: Bool{}, Default: false},
		},
		GuildOnly: []Key{
			{Name: "channel", Type: String{}, Default: "", Confirm: "Move karma announcements?"},
		},
	})
	if err != nil {
		t.Fatalf("RegisterAll: %v", err)
	}
	return store
}

func TestPercentScenario(t *testing.T) {
	store := newTestStore(t)

	_, err := store.Set("100", "karma", "chance", "150%")
	validation, ok := AsValidationError(err)
	if !ok {
		t.Fatalf("Set(150%%) error = %v, want *ValidationError", err)
	}
	if validation.Key != "chance" || validation.Raw != "150%" {
		t.Errorf("ValidationError = %+v", validation)
	}
	value, err := store.Get("100", "karma", "chance")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if value != 0.1 {
		t.Fatalf("value after rejected write = %v, want default 0.1", value)
	}

	committed, err := store.Set("100", "karma", "chance", "50%")
	if err != nil {
		t.Fatalf("Set(50%%): %v", err)
	}
	if committed != 0.5 {
		t.Errorf("Set returned %v, want 0.5", committed)
	}
	value, _ = store.Get("100", "karma", "chance")
	if value != 0.5 {
		t.Errorf("Get after Set = %v, want 0.5", value)
	}
}

func TestGuildValuesAreIndependent(t *testing.T) {
	store := newTestStore(t)

	if _, err := store.Set("100", "karma", "cooldown", "5"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	other, _ := store.Get("200", "karma", "cooldown")
	if other != int64(30) {
		t.Errorf("guild 200 cooldown = %v, want default 30", other)
	}
	global, _ := store.GetGlobal("karma", "cooldown")
	if global != int64(30) {
		t.Errorf("global cooldown = %v, want default 30", global)
	}
}

func TestScopeRestrictions(t *testing.T) {
	store := newTestStore(t)

	if _, err := store.Set("100", "karma", "announce", "yes"); err == nil {
		t.Error("guild write to a global-only key succeeded")
	}
	if _, err := store.Set(Global, "karma", "channel", "#general"); err == nil {
		t.Error("global write to a guild-only key succeeded")
	}

	if _, err := store.Set(Global, "karma", "announce", "yes"); err != nil {
		t.Fatalf("global write to global-only key: %v", err)
	}
	fromGuild, _ := store.Get("100", "karma", "announce")
	if fromGuild != true {
		t.Errorf("guild read of global-only key = %v, want the global value", fromGuild)
	}
}

func TestUnknownKey(t *testing.T) {
	store := newTestStore(t)
	if _, err := store.Get("100", "karma", "missing"); !errors.Is(err, ErrUnknownKey) {
		t.Errorf("Get(missing) = %v, want ErrUnknownKey", err)
	}
	if _, err := store.Set(Global, "nobody", "x", "1"); !errors.Is(err, ErrUnknownKey) {
		t.Errorf("Set(unknown namespace) = %v, want ErrUnknownKey", err)
	}
}

func TestRegisterRejectsInvalidDeclarations(t *testing.T) {
	store := NewStore(nil)
	tests := []struct {
		name string
		key  Key
	}{
		{"no name", Key{Type: Integer{}, Default: 1}},
		{"no type", Key{Name: "x", Default: 1}},
		{"bad default", Key{Name: "x", Type: IntRange{Min: 1, Max: 2}, Default: 5}},
	}
	for _, test := range tests {
		if err := store.Register("module", test.key); err == nil {
			t.Errorf("%s: Register succeeded", test.name)
		}
	}

	if err := store.Register("module", Key{Name: "x", Type: Integer{}, Default: 1}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := store.Register("module", Key{Name: "x", Type: Integer{}, Default: 2}); err == nil {
		t.Error("duplicate Register succeeded")
	}
}

func TestRegisterMaterializesIntoKnownGuilds(t *testing.T) {
	store := newTestStore(t)
	store.AddGuild("100")

	if err := store.Register("karma", Key{Name: "late", Type: Integer{}, Default: 9}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	store.mu.Lock()
	materialized := store.guilds["100"]["karma"]["late"]
	store.mu.Unlock()
	if materialized == nil || materialized.value != int64(9) {
		t.Fatalf("late key not materialized into guild 100: %+v", materialized)
	}
}

func TestCheckDoesNotCommit(t *testing.T) {
	store := newTestStore(t)
	notified := 0
	store.SetNotifier(func(Change) { notified++ })

	tests := []struct {
		scope, name, raw string
		want             any
		reason           string
	}{
		{"100", "cooldown", "60", int64(60), ""},
		{"100", "cooldown", "9999", nil, "must be between 0 and 3600"},
		{"100", "announce", "yes", nil, "can only be set globally"},
		{Global, "channel", "#general", nil, "can only be set inside a guild"},
	}
	for _, test := range tests {
		value, err := store.Check(test.scope, "karma", test.name, test.raw)
		if test.reason == "" {
			if err != nil || value != test.want {
				t.Errorf("Check(%s, %s) = %v, %v; want %v", test.name, test.raw, value, err, test.want)
			}
			continue
		}
		validation, ok := AsValidationError(err)
		if !ok || validation.Reason != test.reason {
			t.Errorf("Check(%s, %s) error = %v, want reason %q", test.name, test.raw, err, test.reason)
		}
	}

	if value, _ := store.Get("100", "karma", "cooldown"); value != int64(30) {
		t.Errorf("cooldown = %v after Check, want the default 30", value)
	}
	if notified != 0 {
		t.Errorf("Check notified %d times", notified)
	}
}

func TestNotifyAfterCommit(t *testing.T) {
	store := newTestStore(t)
	changes := make(chan Change, 1)
	store.SetNotifier(func(change Change) {
		value, _ := store.Get(change.Scope, change.Namespace, change.Key)
		if value != change.New {
			t.Errorf("notified before commit: store has %v, change has %v", value, change.New)
		}
		changes <- change
	})

	if _, err := store.Set("100", "karma", "cooldown", "60"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	var change Change
	select {
	case change = <-changes:
	default:
		t.Fatal("Set returned before notifying")
	}
	want := Change{Namespace: "karma", Key: "cooldown", Scope: "100", Old: int64(30), New: int64(60)}
	if diff := cmp.Diff(want, change); diff != "" {
		t.Errorf("change mismatch (-want +got):\n%s", diff)
	}

	// chance does not ask for notification.
	if _, err := store.Set("100", "karma", "chance", "20%"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if len(changes) != 0 {
		t.Errorf("chance notified: %+v", <-changes)
	}
}

func TestExportImport(t *testing.T) {
	store := newTestStore(t)
	store.AddGuild("300")
	mustSet(t, store, "100", "karma", "chance", "50%")
	mustSet(t, store, Global, "karma", "announce", "on")
	mustSet(t, store, "200", "karma", "channel", "#karma")
	store.Import(Values{Global: map[string]map[string]string{"retired": {"old": "1"}}})

	exported := store.Export()
	want := Values{
		Global: map[string]map[string]string{
			"karma":   {"announce": "true"},
			"retired": {"old": "1"},
		},
		Guilds: map[string]map[string]map[string]string{
			"100": {"karma": {"chance": "0.5"}},
			"200": {"karma": {"channel": "#karma"}},
		},
	}
	if diff := cmp.Diff(want, exported); diff != "" {
		t.Fatalf("Export mismatch (-want +got):\n%s", diff)
	}

	restored := newTestStore(t)
	restored.Import(exported)
	if value, _ := restored.Get("100", "karma", "chance"); value != 0.5 {
		t.Errorf("restored chance = %v, want 0.5", value)
	}
	if value, _ := restored.GetGlobal("karma", "announce"); value != true {
		t.Errorf("restored announce = %v, want true", value)
	}
	if diff := cmp.Diff(exported, restored.Export()); diff != "" {
		t.Errorf("second export differs (-first +second):\n%s", diff)
	}

	// A later registration adopts the held value.
	if err := restored.Register("retired", Key{Name: "old", Type: Integer{}, Default: 0}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if value, _ := restored.GetGlobal("retired", "old"); value != int64(1) {
		t.Errorf("adopted value = %v, want 1", value)
	}
}

func TestImportDropsInvalidValues(t *testing.T) {
	store := newTestStore(t)
	store.Import(Values{Guilds: map[string]map[string]map[string]string{
		"100": {"karma": {"chance": "300%", "announce": "true"}},
	}})
	if value, _ := store.Get("100", "karma", "chance"); value != 0.1 {
		t.Errorf("chance = %v, want default after invalid import", value)
	}
	if value, _ := store.GetGlobal("karma", "announce"); value != false {
		t.Errorf("announce = %v, guild-scoped import of global-only key should be dropped", value)
	}
}

func mustSet(t *testing.T, store *Store, scope, ns, name, raw string) {
	t.Helper()
	if _, err := store.Set(scope, ns, name, raw); err != nil {
		t.Fatalf("Set(%s, %s.%s, %q): %v", scope, ns, name, raw, err)
	}
}
