package filters

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	lua "github.com/yuin/gopher-lua"
)

// DefaultCallTimeout bounds a single filter invocation.
const DefaultCallTimeout = 5 * time.Second

// state is one sandboxed Lua interpreter. gopher-lua states are not safe for
// concurrent use, so every entry point takes the mutex.
type state struct {
	mu      sync.Mutex
	L       *lua.LState
	timeout time.Duration
	closed  bool
}

func newState(timeout time.Duration) *state {
	L := lua.NewState(lua.Options{SkipOpenLibs: true})
	lua.OpenBase(L)
	lua.OpenTable(L)
	lua.OpenString(L)
	lua.OpenMath(L)
	L.SetTop(0)
	for _, name := range []string{"dofile", "loadfile", "load", "loadstring", "require", "module", "collectgarbage"} {
		L.SetGlobal(name, lua.LNil)
	}
	L.SetGlobal("print", L.NewFunction(luaPrint))
	registerSafeHTML(L)
	return &state{L: L, timeout: timeout}
}

// luaPrint routes print output to the debug log.
func luaPrint(L *lua.LState) int {
	parts := make([]string, 0, L.GetTop())
	for i := 1; i <= L.GetTop(); i++ {
		parts = append(parts, luaString(L.Get(i)))
	}
	slog.Debug("lua print", "message", strings.Join(parts, "\t"))
	return 0
}

// exec compiles and runs a chunk, returning its first result.
func (s *state) exec(name, src string) (lv lua.LValue, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}
	fn, err := s.L.Load(strings.NewReader(src), name)
	if err != nil {
		return nil, err
	}
	return s.pcall(fn, nil)
}

// call invokes fn with Go arguments and converts the result.
func (s *state) call(fn *lua.LFunction, args []any) (any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}
	lvs := make([]lua.LValue, len(args))
	for i, a := range args {
		lvs[i] = toLua(s.L, a)
	}
	ret, err := s.pcall(fn, lvs)
	if err != nil {
		return nil, err
	}
	return toGo(ret), nil
}

func (s *state) pcall(fn *lua.LFunction, args []lua.LValue) (ret lua.LValue, err error) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	s.L.SetContext(ctx)
	defer s.L.RemoveContext()

	top := s.L.GetTop()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("lua panic: %v", r)
		}
		s.L.SetTop(top)
	}()

	s.L.Push(fn)
	for _, a := range args {
		s.L.Push(a)
	}
	if err := s.L.PCall(len(args), 1, nil); err != nil {
		return nil, err
	}
	return s.L.Get(-1), nil
}

func (s *state) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		s.L.Close()
	}
}
