//go:build !no_automation

package automation

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	m, err := NewManager(t.TempDir())
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	return m
}

func TestSaveAndGet(t *testing.T) {
	m := newTestManager(t)

	s := &Script{
		Meta:    ScriptMeta{Name: "Porch Lights", Enabled: true},
		LuaCode: `lor.log("hello")`,
	}
	saved, err := m.Save(s)
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if saved.ID != "porch_lights" {
		t.Errorf("ID = %q, want porch_lights", saved.ID)
	}

	got, err := m.Get("porch_lights")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Meta.Name != "Porch Lights" || !got.Meta.Enabled {
		t.Errorf("meta = %+v", got.Meta)
	}
	if got.LuaCode != `lor.log("hello")` {
		t.Errorf("LuaCode = %q", got.LuaCode)
	}
}

func TestUniqueIDs(t *testing.T) {
	m := newTestManager(t)

	first, err := m.Save(&Script{Meta: ScriptMeta{Name: "Show"}})
	if err != nil {
		t.Fatal(err)
	}
	second, err := m.Save(&Script{Meta: ScriptMeta{Name: "Show"}})
	if err != nil {
		t.Fatal(err)
	}
	if first.ID == second.ID {
		t.Errorf("both scripts got ID %q", first.ID)
	}
}

func TestListSkipsNonLua(t *testing.T) {
	m := newTestManager(t)

	if _, err := m.Save(&Script{Meta: ScriptMeta{Name: "one"}}); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(m.dir, "notes.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	scripts, err := m.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(scripts) != 1 {
		t.Errorf("len = %d, want 1", len(scripts))
	}
}

func TestDelete(t *testing.T) {
	m := newTestManager(t)

	s, err := m.Save(&Script{Meta: ScriptMeta{Name: "gone"}})
	if err != nil {
		t.Fatal(err)
	}
	if err := m.Delete(s.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := m.Get(s.ID); err == nil {
		t.Error("deleted script still readable")
	}
}

func TestInvalidIDsRejected(t *testing.T) {
	m := newTestManager(t)
	for _, id := range []string{"", ".", "..", "a/b", `a\b`, "../escape"} {
		if _, err := m.Get(id); err == nil {
			t.Errorf("Get(%q) accepted", id)
		}
		if err := m.Delete(id); err == nil {
			t.Errorf("Delete(%q) accepted", id)
		}
	}
}

func TestMetadataSurvivesRoundTrip(t *testing.T) {
	m := newTestManager(t)

	s, err := m.Save(&Script{
		Meta:    ScriptMeta{Name: "desc test", Description: "does things", Enabled: true},
		LuaCode: "-- body comment\nlor.log(\"x\")",
	})
	if err != nil {
		t.Fatal(err)
	}

	got, err := m.Get(s.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Meta.Description != "does things" {
		t.Errorf("Description = %q", got.Meta.Description)
	}
	if !strings.Contains(got.LuaCode, "-- body comment") {
		t.Errorf("body comment lost: %q", got.LuaCode)
	}
}

func TestSlugify(t *testing.T) {
	tests := []struct{ in, want string }{
		{"Porch Lights", "porch_lights"},
		{"  UPPER  ", "upper"},
		{"a!!b??c", "a_b_c"},
		{"___", ""},
	}
	for _, tt := range tests {
		if got := slugify(tt.in); got != tt.want {
			t.Errorf("slugify(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
