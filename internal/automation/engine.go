//go:build !no_automation

// Package automation runs user Lua scripts that react to channel and unit
// state changes and drive the lighting bus back through the director.
package automation

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	lua "github.com/yuin/gopher-lua"

	"lor-go-bridge/internal/director"
)

// RunResult is the result of a one-shot script execution.
type RunResult struct {
	OK       bool     `json:"ok"`
	Error    string   `json:"error,omitempty"`
	Logs     []string `json:"logs"`
	Duration string   `json:"duration"`
}

// luaEventHandler is a registered Lua callback for a specific event pattern.
type luaEventHandler struct {
	eventType string
	unit      int // filter: only match this unit (-1 = any)
	channel   int // filter: only match this channel (-1 = any)
	fn        *lua.LFunction
}

// scriptVM is a running Lua VM for a single script.
type scriptVM struct {
	state    *lua.LState
	commands chan func(*lua.LState) // serializes Lua access
	handlers []luaEventHandler
	ctx      context.Context
	cancel   context.CancelFunc
	mu       sync.Mutex     // protects handlers
	afterWG  sync.WaitGroup // outstanding lor.after timers
}

// Engine manages Lua VMs and dispatches director events to scripts.
type Engine struct {
	dir     *director.Director
	manager *Manager
	logger  *slog.Logger

	mu    sync.Mutex
	vms   map[string]*scriptVM // script ID -> running VM
	unsub func()
}

// NewEngine creates a new automation engine.
func NewEngine(dir *director.Director, mgr *Manager, logger *slog.Logger) *Engine {
	return &Engine{
		dir:     dir,
		manager: mgr,
		logger:  logger.With("component", "automation"),
		vms:     make(map[string]*scriptVM),
	}
}

// Start subscribes to the event bus and loads all enabled scripts.
func (e *Engine) Start() {
	e.unsub = e.dir.Events().OnAll(func(event director.Event) {
		e.dispatchEvent(event)
	})

	scripts, err := e.manager.List()
	if err != nil {
		e.logger.Error("load scripts", "err", err)
		return
	}

	for _, s := range scripts {
		if !s.Meta.Enabled {
			continue
		}
		if err := e.startScript(s); err != nil {
			e.logger.Error("start script", "id", s.ID, "err", err)
		}
	}

	e.logger.Info("automation engine started", "scripts", len(e.vms))
}

// Stop cancels all VMs and unsubscribes from the event bus.
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()

	for id, vm := range e.vms {
		vm.cancel()
		delete(e.vms, id)
	}

	if e.unsub != nil {
		e.unsub()
	}

	e.logger.Info("automation engine stopped")
}

// ReloadScript stops the old VM (if any) and starts a new one.
func (e *Engine) ReloadScript(id string) error {
	e.stopScript(id)

	s, err := e.manager.Get(id)
	if err != nil {
		return fmt.Errorf("get script: %w", err)
	}

	if !s.Meta.Enabled {
		return nil // disabled, just stop
	}

	return e.startScript(s)
}

// StopScript stops a running script VM.
func (e *Engine) StopScript(id string) {
	e.stopScript(id)
}

// RunScript executes a script in a temporary sandboxed VM for testing.
func (e *Engine) RunScript(id string) *RunResult {
	start := time.Now()

	s, err := e.manager.Get(id)
	if err != nil {
		return &RunResult{OK: false, Error: "script not found: " + err.Error(), Duration: time.Since(start).String()}
	}

	return e.RunLuaCode(s.LuaCode)
}

// RunLuaCode executes arbitrary Lua code in a temporary sandboxed VM. It
// runs the top-level code, invokes any handlers the code registered with a
// synthetic event so their actions execute once, and then waits out the
// run's lor.after timers (up to the 5 s limit) so their callbacks execute
// too. Callbacks that schedule further timers are not waited for.
func (e *Engine) RunLuaCode(code string) *RunResult {
	start := time.Now()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	L := newSandboxedState()
	defer L.Close()
	L.SetContext(ctx)

	vm := &scriptVM{
		state:    L,
		commands: make(chan func(*lua.LState), 64),
		ctx:      ctx,
		cancel:   cancel,
	}

	var logs []string
	var logMu sync.Mutex

	registerLorModule(L, vm, e)

	// Override lor.log to capture output
	if tbl, ok := L.GetGlobal("lor").(*lua.LTable); ok {
		tbl.RawSetString("log", L.NewFunction(func(L *lua.LState) int {
			msg := L.CheckString(1)
			logMu.Lock()
			logs = append(logs, msg)
			logMu.Unlock()
			e.logger.Info("script run log", "msg", msg)
			return 0
		}))
	}

	if err := L.DoString(code); err != nil {
		return &RunResult{OK: false, Error: luaErrString(err), Logs: logs, Duration: time.Since(start).String()}
	}

	vm.mu.Lock()
	handlers := make([]luaEventHandler, len(vm.handlers))
	copy(handlers, vm.handlers)
	vm.mu.Unlock()

	for _, h := range handlers {
		eventTable := L.NewTable()
		eventTable.RawSetString("type", lua.LString(h.eventType))
		if h.unit >= 0 {
			eventTable.RawSetString("unit", lua.LNumber(h.unit))
		}
		if h.channel >= 0 {
			eventTable.RawSetString("channel", lua.LNumber(h.channel))
		}
		eventTable.RawSetString("on", lua.LBool(true))

		if err := L.CallByParam(lua.P{
			Fn:      h.fn,
			NRet:    0,
			Protect: true,
		}, eventTable); err != nil {
			return &RunResult{OK: false, Error: luaErrString(err), Logs: logs, Duration: time.Since(start).String()}
		}
	}

	// One-shot runs have no command loop, so execute the queued lor.after
	// callbacks here. Timers signal afterWG after queueing their callback
	// (or on context cancellation), so once the wait returns everything
	// due is already buffered in vm.commands.
	afterDone := make(chan struct{})
	go func() {
		vm.afterWG.Wait()
		close(afterDone)
	}()

	waiting := true
	for waiting {
		select {
		case fn := <-vm.commands:
			fn(L)
		case <-afterDone:
			waiting = false
		case <-ctx.Done():
			waiting = false
		}
	}
	for {
		select {
		case fn := <-vm.commands:
			fn(L)
		default:
			return &RunResult{OK: true, Logs: logs, Duration: time.Since(start).String()}
		}
	}
}

func luaErrString(err error) string {
	s := err.Error()
	if strings.Contains(s, "context deadline exceeded") {
		return "timeout (5s)"
	}
	return s
}

func newSandboxedState() *lua.LState {
	L := lua.NewState(lua.Options{SkipOpenLibs: false})

	// Sandbox: remove dangerous libs and functions
	L.SetGlobal("os", lua.LNil)
	L.SetGlobal("io", lua.LNil)
	L.SetGlobal("loadfile", lua.LNil)
	L.SetGlobal("dofile", lua.LNil)
	L.SetGlobal("require", lua.LNil)
	L.SetGlobal("load", lua.LNil)
	L.SetGlobal("debug", lua.LNil)
	L.SetGlobal("package", lua.LNil)

	return L
}

func (e *Engine) stopScript(id string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if vm, ok := e.vms[id]; ok {
		vm.cancel()
		delete(e.vms, id)
		e.logger.Info("script stopped", "id", id)
	}
}

func (e *Engine) startScript(s *Script) error {
	ctx, cancel := context.WithCancel(context.Background())

	L := newSandboxedState()

	vm := &scriptVM{
		state:    L,
		commands: make(chan func(*lua.LState), 64),
		ctx:      ctx,
		cancel:   cancel,
	}

	registerLorModule(L, vm, e)

	// Execute the script to register handlers
	if err := L.DoString(s.LuaCode); err != nil {
		cancel()
		L.Close()
		return fmt.Errorf("execute script %s: %w", s.ID, err)
	}

	e.mu.Lock()
	e.vms[s.ID] = vm
	e.mu.Unlock()

	// Command loop goroutine, exits when the context is cancelled.
	go func() {
		defer L.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case fn := <-vm.commands:
				fn(L)
			}
		}
	}()

	e.logger.Info("script started", "id", s.ID, "name", s.Meta.Name)
	return nil
}

// dispatchEvent routes an event bus event to all matching Lua handlers.
func (e *Engine) dispatchEvent(event director.Event) {
	e.mu.Lock()
	vmsCopy := make(map[string]*scriptVM, len(e.vms))
	for k, v := range e.vms {
		vmsCopy[k] = v
	}
	e.mu.Unlock()

	for _, vm := range vmsCopy {
		vm.mu.Lock()
		handlers := make([]luaEventHandler, len(vm.handlers))
		copy(handlers, vm.handlers)
		vm.mu.Unlock()

		for _, h := range handlers {
			if !matchesHandler(h, event) {
				continue
			}

			fn := h.fn
			// Send to the VM's command channel for thread-safe Lua execution.
			select {
			case <-vm.ctx.Done():
			case vm.commands <- func(L *lua.LState) {
				e.callHandler(L, fn, event)
			}:
			default:
				e.logger.Warn("script command channel full, dropping event")
			}
		}
	}
}

func matchesHandler(h luaEventHandler, event director.Event) bool {
	if h.eventType != event.Type {
		return false
	}

	data, ok := event.Data.(map[string]interface{})
	if !ok {
		return h.unit < 0 && h.channel < 0
	}

	if h.unit >= 0 {
		if unit, _ := data["unit"].(uint8); int(unit) != h.unit {
			return false
		}
	}

	if h.channel >= 0 {
		if channel, _ := data["channel"].(uint8); int(channel) != h.channel {
			return false
		}
	}

	return true
}

func (e *Engine) callHandler(L *lua.LState, fn *lua.LFunction, event director.Event) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("lua handler panic", "err", r)
		}
	}()

	eventTable := L.NewTable()
	eventTable.RawSetString("type", lua.LString(event.Type))

	if data, ok := event.Data.(map[string]interface{}); ok {
		for k, v := range data {
			eventTable.RawSetString(k, goToLua(L, v))
		}
	}

	if err := L.CallByParam(lua.P{
		Fn:      fn,
		NRet:    0,
		Protect: true,
	}, eventTable); err != nil {
		e.logger.Error("lua handler error", "err", err)
	}
}

// goToLua converts a Go value to a Lua value.
func goToLua(L *lua.LState, v interface{}) lua.LValue {
	switch val := v.(type) {
	case nil:
		return lua.LNil
	case bool:
		return lua.LBool(val)
	case string:
		return lua.LString(val)
	case int:
		return lua.LNumber(val)
	case int64:
		return lua.LNumber(val)
	case float64:
		return lua.LNumber(val)
	case uint8:
		return lua.LNumber(val)
	case uint16:
		return lua.LNumber(val)
	case uint32:
		return lua.LNumber(val)
	case float32:
		return lua.LNumber(val)
	case map[string]interface{}:
		t := L.NewTable()
		for k, vv := range val {
			t.RawSetString(k, goToLua(L, vv))
		}
		return t
	case []interface{}:
		t := L.NewTable()
		for i, vv := range val {
			t.RawSetInt(i+1, goToLua(L, vv))
		}
		return t
	default:
		return lua.LString(fmt.Sprintf("%v", val))
	}
}
