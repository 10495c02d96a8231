package filters

import (
	"fmt"
	"html/template"
	"math"
	"reflect"
	"time"

	lua "github.com/yuin/gopher-lua"
)

const safeHTMLTypeName = "safe_html"

// toLua converts a template value into a Lua value.
// template.HTML arrives as a plain string.
func toLua(L *lua.LState, v any) lua.LValue {
	switch val := v.(type) {
	case nil:
		return lua.LNil
	case lua.LValue:
		return val
	case bool:
		return lua.LBool(val)
	case string:
		return lua.LString(val)
	case template.HTML:
		return lua.LString(val)
	case []byte:
		return lua.LString(val)
	case int:
		return lua.LNumber(val)
	case int64:
		return lua.LNumber(val)
	case float64:
		return lua.LNumber(val)
	case time.Time:
		return lua.LString(val.Format(time.RFC3339))
	case []any:
		t := L.CreateTable(len(val), 0)
		for i, item := range val {
			t.RawSetInt(i+1, toLua(L, item))
		}
		return t
	case map[string]any:
		t := L.CreateTable(0, len(val))
		for k, item := range val {
			t.RawSetString(k, toLua(L, item))
		}
		return t
	case fmt.Stringer:
		return lua.LString(val.String())
	}
	return reflectToLua(L, reflect.ValueOf(v))
}

func reflectToLua(L *lua.LState, rv reflect.Value) lua.LValue {
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			return lua.LNil
		}
		return toLua(L, rv.Elem().Interface())
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return lua.LNumber(rv.Int())
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return lua.LNumber(rv.Uint())
	case reflect.Float32, reflect.Float64:
		return lua.LNumber(rv.Float())
	case reflect.String:
		return lua.LString(rv.String())
	case reflect.Slice, reflect.Array:
		t := L.CreateTable(rv.Len(), 0)
		for i := range rv.Len() {
			t.RawSetInt(i+1, toLua(L, rv.Index(i).Interface()))
		}
		return t
	case reflect.Map:
		t := L.CreateTable(0, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			t.RawSet(lua.LString(fmt.Sprint(iter.Key().Interface())), toLua(L, iter.Value().Interface()))
		}
		return t
	}
	return lua.LString(fmt.Sprint(rv.Interface()))
}

// toGo converts a Lua value returned by a filter into a template value.
// Integral numbers become int; tables with contiguous integer keys from 1
// become []any, other tables map[string]any.
func toGo(lv lua.LValue) any {
	return toGoVisited(lv, map[*lua.LTable]bool{})
}

func toGoVisited(lv lua.LValue, visited map[*lua.LTable]bool) any {
	switch v := lv.(type) {
	case lua.LBool:
		return bool(v)
	case lua.LNumber:
		f := float64(v)
		if f == math.Trunc(f) && math.Abs(f) < 1<<53 {
			return int(f)
		}
		return f
	case lua.LString:
		return string(v)
	case *lua.LUserData:
		return v.Value
	case *lua.LTable:
		if visited[v] {
			return nil
		}
		visited[v] = true
		defer delete(visited, v)
		return tableToGo(v, visited)
	default:
		return nil
	}
}

func tableToGo(t *lua.LTable, visited map[*lua.LTable]bool) any {
	n := t.Len()
	count := 0
	t.ForEach(func(_, _ lua.LValue) { count++ })

	if n > 0 && n == count {
		arr := make([]any, n)
		for i := 1; i <= n; i++ {
			arr[i-1] = toGoVisited(t.RawGetInt(i), visited)
		}
		return arr
	}

	m := make(map[string]any, count)
	t.ForEach(func(k, v lua.LValue) {
		m[k.String()] = toGoVisited(v, visited)
	})
	return m
}

// newSafeHTML wraps s so that it reaches templates as template.HTML.
func newSafeHTML(L *lua.LState, s string) *lua.LUserData {
	ud := L.NewUserData()
	ud.Value = template.HTML(s)
	L.SetMetatable(ud, L.GetTypeMetatable(safeHTMLTypeName))
	return ud
}

func registerSafeHTML(L *lua.LState) {
	mt := L.NewTypeMetatable(safeHTMLTypeName)
	L.SetField(mt, "__tostring", L.NewFunction(func(L *lua.LState) int {
		ud := L.CheckUserData(1)
		L.Push(lua.LString(fmt.Sprint(ud.Value)))
		return 1
	}))
	L.SetField(mt, "__concat", L.NewFunction(func(L *lua.LState) int {
		L.Push(lua.LString(luaString(L.Get(1)) + luaString(L.Get(2))))
		return 1
	}))
	L.SetGlobal("safe", L.NewFunction(func(L *lua.LState) int {
		L.Push(newSafeHTML(L, luaString(L.Get(1))))
		return 1
	}))
}

func luaString(v lua.LValue) string {
	if ud, ok := v.(*lua.LUserData); ok {
		return fmt.Sprint(ud.Value)
	}
	if v == lua.LNil {
		return ""
	}
	return v.String()
}
