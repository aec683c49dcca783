//go:build !no_automation

package automation

import (
	"time"

	lua "github.com/yuin/gopher-lua"

	"lor-go-bridge/internal/lor"
)

// registerLorModule registers the `lor` global table in a Lua state.
func registerLorModule(L *lua.LState, vm *scriptVM, e *Engine) {
	mod := L.NewTable()

	mod.RawSetString("on", L.NewFunction(func(L *lua.LState) int {
		return lorOn(L, vm)
	}))

	mod.RawSetString("turn_on", L.NewFunction(func(L *lua.LState) int {
		unit, channel, ok := checkUnitChannel(L)
		if !ok {
			return 0
		}
		if err := e.dir.On(unit, channel); err != nil {
			e.logger.Warn("lua turn_on", "err", err, "unit", unit, "channel", channel)
		}
		return 0
	}))

	mod.RawSetString("turn_off", L.NewFunction(func(L *lua.LState) int {
		unit, channel, ok := checkUnitChannel(L)
		if !ok {
			return 0
		}
		if err := e.dir.Off(unit, channel); err != nil {
			e.logger.Warn("lua turn_off", "err", err, "unit", unit, "channel", channel)
		}
		return 0
	}))

	mod.RawSetString("set_brightness", L.NewFunction(func(L *lua.LState) int {
		unit, channel, ok := checkUnitChannel(L)
		if !ok {
			return 0
		}
		normal := float64(L.CheckNumber(3))
		if err := e.dir.SetBrightness(unit, channel, normal); err != nil {
			e.logger.Warn("lua set_brightness", "err", err, "unit", unit, "channel", channel)
		}
		return 0
	}))

	mod.RawSetString("fade", L.NewFunction(func(L *lua.LState) int {
		unit, channel, ok := checkUnitChannel(L)
		if !ok {
			return 0
		}
		from := float64(L.CheckNumber(3))
		to := float64(L.CheckNumber(4))
		seconds := float64(L.CheckNumber(5))
		if err := e.dir.Fade(unit, channel, from, to, seconds); err != nil {
			e.logger.Warn("lua fade", "err", err, "unit", unit, "channel", channel)
		}
		return 0
	}))

	mod.RawSetString("transition", L.NewFunction(func(L *lua.LState) int {
		unit, channel, ok := checkUnitChannel(L)
		if !ok {
			return 0
		}
		to := float64(L.CheckNumber(3))
		seconds := float64(L.CheckNumber(4))
		if err := e.dir.Transition(unit, channel, to, seconds); err != nil {
			e.logger.Warn("lua transition", "err", err, "unit", unit, "channel", channel)
		}
		return 0
	}))

	mod.RawSetString("twinkle", L.NewFunction(func(L *lua.LState) int {
		unit, channel, ok := checkUnitChannel(L)
		if !ok {
			return 0
		}
		if err := e.dir.Twinkle(unit, channel); err != nil {
			e.logger.Warn("lua twinkle", "err", err, "unit", unit, "channel", channel)
		}
		return 0
	}))

	mod.RawSetString("shimmer", L.NewFunction(func(L *lua.LState) int {
		unit, channel, ok := checkUnitChannel(L)
		if !ok {
			return 0
		}
		if err := e.dir.Shimmer(unit, channel); err != nil {
			e.logger.Warn("lua shimmer", "err", err, "unit", unit, "channel", channel)
		}
		return 0
	}))

	mod.RawSetString("unit_on", L.NewFunction(func(L *lua.LState) int {
		unit, ok := checkUnit(L, 1)
		if !ok {
			return 0
		}
		if err := e.dir.UnitPower(unit, true); err != nil {
			e.logger.Warn("lua unit_on", "err", err, "unit", unit)
		}
		return 0
	}))

	mod.RawSetString("unit_off", L.NewFunction(func(L *lua.LState) int {
		unit, ok := checkUnit(L, 1)
		if !ok {
			return 0
		}
		if err := e.dir.UnitPower(unit, false); err != nil {
			e.logger.Warn("lua unit_off", "err", err, "unit", unit)
		}
		return 0
	}))

	mod.RawSetString("channels", L.NewFunction(func(L *lua.LState) int {
		return lorChannels(L, e)
	}))

	mod.RawSetString("after", L.NewFunction(func(L *lua.LState) int {
		return lorAfter(L, vm, e)
	}))

	mod.RawSetString("log", L.NewFunction(func(L *lua.LState) int {
		msg := L.CheckString(1)
		e.logger.Info("script log", "msg", msg)
		return 0
	}))

	mod.RawSetString("BROADCAST", lua.LNumber(lor.UnitBroadcast))

	L.SetGlobal("lor", mod)
}

const maxHandlersPerScript = 100

// lor.on(type, filter, callback)
func lorOn(L *lua.LState, vm *scriptVM) int {
	eventType := L.CheckString(1)
	filterTable := L.CheckTable(2)
	fn := L.CheckFunction(3)

	h := luaEventHandler{
		eventType: eventType,
		unit:      -1,
		channel:   -1,
		fn:        fn,
	}

	if v := filterTable.RawGetString("unit"); v != lua.LNil {
		if n, ok := v.(lua.LNumber); ok {
			h.unit = int(n)
		}
	}
	if v := filterTable.RawGetString("channel"); v != lua.LNil {
		if n, ok := v.(lua.LNumber); ok {
			h.channel = int(n)
		}
	}

	vm.mu.Lock()
	if len(vm.handlers) >= maxHandlersPerScript {
		vm.mu.Unlock()
		L.RaiseError("too many handlers (max %d)", maxHandlersPerScript)
		return 0
	}
	vm.handlers = append(vm.handlers, h)
	vm.mu.Unlock()

	return 0
}

// lor.channels() returns a table of all persisted channel states.
func lorChannels(L *lua.LState, e *Engine) int {
	states, err := e.dir.Channels()
	if err != nil {
		L.Push(L.NewTable())
		return 1
	}

	tbl := L.NewTable()
	for i, st := range states {
		c := L.NewTable()
		c.RawSetString("unit", lua.LNumber(st.Unit))
		c.RawSetString("channel", lua.LNumber(st.Channel))
		c.RawSetString("on", lua.LBool(st.On))
		c.RawSetString("brightness", lua.LNumber(st.Brightness))
		tbl.RawSetInt(i+1, c)
	}

	L.Push(tbl)
	return 1
}

// lor.after(seconds, callback) delays a callback on the script's VM.
func lorAfter(L *lua.LState, vm *scriptVM, e *Engine) int {
	seconds := L.CheckNumber(1)
	fn := L.CheckFunction(2)

	vm.afterWG.Add(1)
	go func() {
		defer vm.afterWG.Done()

		timer := time.NewTimer(time.Duration(float64(seconds) * float64(time.Second)))
		defer timer.Stop()

		select {
		case <-timer.C:
		case <-vm.ctx.Done():
			return
		}

		select {
		case vm.commands <- func(L *lua.LState) {
			if err := L.CallByParam(lua.P{
				Fn:      fn,
				NRet:    0,
				Protect: true,
			}); err != nil {
				e.logger.Error("after callback error", "err", err)
			}
		}:
		default:
			e.logger.Warn("after: command channel full")
		}
	}()

	return 0
}

func checkUnit(L *lua.LState, arg int) (lor.Unit, bool) {
	n := L.CheckInt(arg)
	if n < 0 || n > 255 {
		L.ArgError(arg, "unit must be 0-255")
		return 0, false
	}
	return lor.Unit(n), true
}

func checkUnitChannel(L *lua.LState) (lor.Unit, uint8, bool) {
	unit, ok := checkUnit(L, 1)
	if !ok {
		return 0, 0, false
	}
	c := L.CheckInt(2)
	if c < 0 || c > 255 {
		L.ArgError(2, "channel must be 0-255")
		return 0, 0, false
	}
	return unit, uint8(c), true
}
