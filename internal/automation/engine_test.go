//go:build !no_automation

package automation

import (
	"bytes"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"lor-go-bridge/internal/director"
	"lor-go-bridge/internal/store"
)

type fakeLink struct {
	mu     sync.Mutex
	frames [][]byte
}

func (l *fakeLink) Send(frame []byte) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	cp := make([]byte, len(frame))
	copy(cp, frame)
	l.frames = append(l.frames, cp)
	return nil
}

func (l *fakeLink) Close() error { return nil }

func (l *fakeLink) count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.frames)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestEngine(t *testing.T) (*Engine, *fakeLink, *director.Director) {
	t.Helper()
	fl := &fakeLink{}
	dir, err := director.New(fl, store.NewMemStore(), director.NewEventBus(testLogger()), director.Config{}, testLogger())
	if err != nil {
		t.Fatalf("director.New: %v", err)
	}
	mgr, err := NewManager(t.TempDir())
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	return NewEngine(dir, mgr, testLogger()), fl, dir
}

func TestRunLuaCodeLogs(t *testing.T) {
	e, _, _ := newTestEngine(t)

	res := e.RunLuaCode(`lor.log("first") lor.log("second")`)
	if !res.OK {
		t.Fatalf("error: %s", res.Error)
	}
	if len(res.Logs) != 2 || res.Logs[0] != "first" || res.Logs[1] != "second" {
		t.Errorf("logs = %v", res.Logs)
	}
}

func TestRunLuaCodeError(t *testing.T) {
	e, _, _ := newTestEngine(t)

	res := e.RunLuaCode(`this is not lua`)
	if res.OK {
		t.Error("syntax error accepted")
	}
	if res.Error == "" {
		t.Error("error string empty")
	}
}

func TestRunLuaCodeSandbox(t *testing.T) {
	e, _, _ := newTestEngine(t)

	for _, code := range []string{
		`os.execute("true")`,
		`io.open("/etc/passwd")`,
		`require("socket")`,
	} {
		if res := e.RunLuaCode(code); res.OK {
			t.Errorf("sandboxed global reachable: %s", code)
		}
	}
}

func TestRunLuaCodeSendsFrames(t *testing.T) {
	e, fl, _ := newTestEngine(t)

	res := e.RunLuaCode(`lor.turn_on(1, 7)`)
	if !res.OK {
		t.Fatalf("error: %s", res.Error)
	}
	fl.mu.Lock()
	defer fl.mu.Unlock()
	if len(fl.frames) != 1 {
		t.Fatalf("sent %d frames, want 1", len(fl.frames))
	}
	if want := []byte{0x01, 0x01, 0x87}; !bytes.Equal(fl.frames[0], want) {
		t.Errorf("frame = %X, want %X", fl.frames[0], want)
	}
}

func TestRunLuaCodeInvokesHandlers(t *testing.T) {
	e, _, _ := newTestEngine(t)

	res := e.RunLuaCode(`
lor.on("channel_state", {unit = 1}, function(event)
  lor.log("unit " .. event.unit)
end)
`)
	if !res.OK {
		t.Fatalf("error: %s", res.Error)
	}
	if len(res.Logs) != 1 || res.Logs[0] != "unit 1" {
		t.Errorf("logs = %v", res.Logs)
	}
}

func TestRunLuaCodeExecutesAfterCallbacks(t *testing.T) {
	e, fl, _ := newTestEngine(t)

	res := e.RunLuaCode(`lor.after(0.05, function()
  lor.log("delayed")
  lor.turn_on(2, 3)
end)`)
	if !res.OK {
		t.Fatalf("error: %s", res.Error)
	}
	if len(res.Logs) != 1 || res.Logs[0] != "delayed" {
		t.Errorf("logs = %v", res.Logs)
	}
	fl.mu.Lock()
	defer fl.mu.Unlock()
	if len(fl.frames) != 1 {
		t.Fatalf("sent %d frames, want 1", len(fl.frames))
	}
	if want := []byte{0x02, 0x01, 0x83}; !bytes.Equal(fl.frames[0], want) {
		t.Errorf("frame = %X, want %X", fl.frames[0], want)
	}
}

func TestMatchesHandler(t *testing.T) {
	event := director.Event{
		Type: director.EventChannelState,
		Data: map[string]interface{}{"unit": uint8(2), "channel": uint8(5)},
	}

	tests := []struct {
		name string
		h    luaEventHandler
		want bool
	}{
		{"any", luaEventHandler{eventType: director.EventChannelState, unit: -1, channel: -1}, true},
		{"unit match", luaEventHandler{eventType: director.EventChannelState, unit: 2, channel: -1}, true},
		{"unit mismatch", luaEventHandler{eventType: director.EventChannelState, unit: 3, channel: -1}, false},
		{"channel match", luaEventHandler{eventType: director.EventChannelState, unit: 2, channel: 5}, true},
		{"channel mismatch", luaEventHandler{eventType: director.EventChannelState, unit: 2, channel: 6}, false},
		{"wrong type", luaEventHandler{eventType: director.EventUnitState, unit: -1, channel: -1}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := matchesHandler(tt.h, event); got != tt.want {
				t.Errorf("matchesHandler = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestScriptReactsToEvents(t *testing.T) {
	e, fl, dir := newTestEngine(t)

	script := &Script{
		Meta: ScriptMeta{Name: "follow", Enabled: true},
		LuaCode: `
lor.on("channel_state", {unit = 5, channel = 0}, function(event)
  if event.on then
    lor.turn_on(6, 0)
  end
end)
`,
	}
	if _, err := e.manager.Save(script); err != nil {
		t.Fatal(err)
	}

	e.Start()
	defer e.Stop()

	// Trigger: one frame from this call, a second once the script reacts.
	if err := dir.On(5, 0); err != nil {
		t.Fatalf("On: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for fl.count() < 2 {
		if time.Now().After(deadline) {
			t.Fatalf("script never reacted, %d frames", fl.count())
		}
		time.Sleep(5 * time.Millisecond)
	}

	fl.mu.Lock()
	defer fl.mu.Unlock()
	if want := []byte{0x06, 0x01, 0x80}; !bytes.Equal(fl.frames[1], want) {
		t.Errorf("reaction frame = %X, want %X", fl.frames[1], want)
	}
}

func TestDisabledScriptNotStarted(t *testing.T) {
	e, _, _ := newTestEngine(t)

	if _, err := e.manager.Save(&Script{
		Meta:    ScriptMeta{Name: "off", Enabled: false},
		LuaCode: `lor.log("should not run")`,
	}); err != nil {
		t.Fatal(err)
	}

	e.Start()
	defer e.Stop()

	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.vms) != 0 {
		t.Errorf("%d VMs running, want 0", len(e.vms))
	}
}

func TestReloadScript(t *testing.T) {
	e, _, _ := newTestEngine(t)

	s, err := e.manager.Save(&Script{
		Meta:    ScriptMeta{Name: "reload me", Enabled: true},
		LuaCode: `lor.on("channel_state", {}, function() end)`,
	})
	if err != nil {
		t.Fatal(err)
	}

	e.Start()
	defer e.Stop()

	if err := e.ReloadScript(s.ID); err != nil {
		t.Fatalf("ReloadScript: %v", err)
	}

	e.mu.Lock()
	_, running := e.vms[s.ID]
	e.mu.Unlock()
	if !running {
		t.Error("script not running after reload")
	}

	// Disabling then reloading stops the VM.
	s.Meta.Enabled = false
	if _, err := e.manager.Save(s); err != nil {
		t.Fatal(err)
	}
	if err := e.ReloadScript(s.ID); err != nil {
		t.Fatalf("ReloadScript: %v", err)
	}
	e.mu.Lock()
	_, running = e.vms[s.ID]
	e.mu.Unlock()
	if running {
		t.Error("disabled script still running")
	}
}
