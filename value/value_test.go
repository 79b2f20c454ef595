package value

import "testing"

func TestBoolSingletons(t *testing.T) {
	if Bool_(true) != True {
		t.Fatalf("Bool_(true) did not return the True singleton")
	}
	if Bool_(false) != False {
		t.Fatalf("Bool_(false) did not return the False singleton")
	}
}

func TestIntEquals(t *testing.T) {
	a := NewInt(7)
	b := NewInt(7)
	c := NewInt(8)
	if !a.Equals(b) {
		t.Fatalf("equal ints compared unequal")
	}
	if a.Equals(c) {
		t.Fatalf("unequal ints compared equal")
	}
	if a.Equals(NewString("7")) {
		t.Fatalf("Int compared equal to a String")
	}
}

func TestListEquals(t *testing.T) {
	a := NewList([]Value{NewInt(1), NewInt(2)})
	b := NewList([]Value{NewInt(1), NewInt(2)})
	c := NewList([]Value{NewInt(1)})
	if !a.Equals(b) {
		t.Fatalf("equal lists compared unequal")
	}
	if a.Equals(c) {
		t.Fatalf("lists of different length compared equal")
	}
}

func TestClassify(t *testing.T) {
	y := Classify(AsEffect(Get{Key: "x"}))
	if y.Kind != YieldedEffect {
		t.Fatalf("Classify(AsEffect(...)) kind = %v, want YieldedEffect", y.Kind)
	}
	if y.Effect.EffectType() != EffectGet {
		t.Fatalf("classified effect type = %v, want EffectGet", y.Effect.EffectType())
	}

	y = Classify(AsPrimitive(GetContinuation{}))
	if y.Kind != YieldedPrimitive {
		t.Fatalf("Classify(AsPrimitive(...)) kind = %v, want YieldedPrimitive", y.Kind)
	}

	y = Classify(NewInt(1))
	if y.Kind != YieldedUnknown {
		t.Fatalf("Classify(plain value) kind = %v, want YieldedUnknown", y.Kind)
	}
}

func TestHostVsHostEffectAreDistinctTypes(t *testing.T) {
	var v Value = &Host{Tag: "abc", Object: 1}
	if v.Type() != TypeHost {
		t.Fatalf("Host value Type() = %v, want TypeHost", v.Type())
	}
	var e Effect = HostEffect{Name: "Thing"}
	if e.EffectType() != EffectHost {
		t.Fatalf("HostEffect EffectType() = %v, want EffectHost", e.EffectType())
	}
}
