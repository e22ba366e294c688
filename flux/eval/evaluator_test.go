package eval

import (
	"testing"
)

func TestCompileNumeric(t *testing.T) {
	ev := New()

	t.Run("arithmetic over scope variables", func(t *testing.T) {
		fn, err := ev.CompileNumeric("x * 2 + y")
		if err != nil {
			t.Fatal(err)
		}
		v, err := fn.Eval(MapScope{"x": 3, "y": 1})
		if err != nil {
			t.Fatal(err)
		}
		if v != 7 {
			t.Errorf("v = %v, want 7", v)
		}
	})

	t.Run("assignment writes the scope", func(t *testing.T) {
		fn, err := ev.CompileNumeric("y = x * 2; y + 1")
		if err != nil {
			t.Fatal(err)
		}
		scope := MapScope{"x": 3}
		v, err := fn.Eval(scope)
		if err != nil {
			t.Fatal(err)
		}
		if v != 7 {
			t.Errorf("v = %v, want 7", v)
		}
		if scope["y"] != 6 {
			t.Errorf("scope y = %v, want 6", scope["y"])
		}
	})

	t.Run("newline separates statements", func(t *testing.T) {
		fn, err := ev.CompileNumeric("a = 2\nb = a + 3\na * b")
		if err != nil {
			t.Fatal(err)
		}
		v, err := fn.Eval(MapScope{})
		if err != nil {
			t.Fatal(err)
		}
		if v != 10 {
			t.Errorf("v = %v, want 10", v)
		}
	})

	t.Run("comparison chars do not parse as assignment", func(t *testing.T) {
		fn, err := ev.CompileNumeric("x >= 2")
		if err != nil {
			t.Fatal(err)
		}
		v, err := fn.Eval(MapScope{"x": 3})
		if err != nil {
			t.Fatal(err)
		}
		if v != 1 { // booleans coerce to 1/0
			t.Errorf("v = %v, want 1", v)
		}
	})

	t.Run("empty source rejected", func(t *testing.T) {
		if _, err := ev.CompileNumeric("   \n;  "); err == nil {
			t.Error("empty program should fail to compile")
		}
	})

	t.Run("syntax error surfaces at compile", func(t *testing.T) {
		if _, err := ev.CompileNumeric("x +* 2"); err == nil {
			t.Error("bad syntax should fail to compile")
		}
	})
}

func TestCompileBoolean(t *testing.T) {
	ev := New()

	t.Run("comparisons", func(t *testing.T) {
		fn, err := ev.CompileBoolean("x > 2 && x < 10")
		if err != nil {
			t.Fatal(err)
		}
		for _, tc := range []struct {
			x    float64
			want bool
		}{{5, true}, {1, false}, {12, false}} {
			v, err := fn.Eval(MapScope{"x": tc.x})
			if err != nil {
				t.Fatal(err)
			}
			if v != tc.want {
				t.Errorf("x=%v: %v, want %v", tc.x, v, tc.want)
			}
		}
	})

	t.Run("numeric result coerces nonzero to true", func(t *testing.T) {
		fn, err := ev.CompileBoolean("x - 2")
		if err != nil {
			t.Fatal(err)
		}
		if v, _ := fn.Eval(MapScope{"x": 5}); !v {
			t.Error("3 should coerce true")
		}
		if v, _ := fn.Eval(MapScope{"x": 2}); v {
			t.Error("0 should coerce false")
		}
	})

	t.Run("equality is not assignment", func(t *testing.T) {
		fn, err := ev.CompileBoolean("x == 4")
		if err != nil {
			t.Fatal(err)
		}
		scope := MapScope{"x": 4}
		v, err := fn.Eval(scope)
		if err != nil {
			t.Fatal(err)
		}
		if !v {
			t.Error("x == 4 should hold")
		}
		if scope["x"] != 4 {
			t.Errorf("scope x = %v, equality must not assign", scope["x"])
		}
	})
}

func TestMapScope(t *testing.T) {
	scope := MapScope{"b": 2, "a": 1}
	if v, ok := scope.Get("a"); !ok || v != 1 {
		t.Errorf("Get(a) = %v %v", v, ok)
	}
	if _, ok := scope.Get("z"); ok {
		t.Error("Get(z) should miss")
	}
	scope.Set("z", 3)
	if !scope.Has("z") {
		t.Error("Has(z) after Set")
	}
	keys := scope.Keys()
	if len(keys) != 3 || keys[0] != "a" || keys[1] != "b" || keys[2] != "z" {
		t.Errorf("keys = %v, want [a b z]", keys)
	}
}
