package parameter

import (
	"testing"
)

func TestListeners(tst *testing.T) {
	p := New("p", 1, 2, 3)
	var indices []int
	var types []ChangeType
	p.AddListener(func(par *Parameter, i int, ct ChangeType) {
		if par != p {
			tst.Error("wrong parameter passed to listener")
		}
		indices = append(indices, i)
		types = append(types, ct)
	})

	p.SetValue(1, 2)
	if len(indices) != 0 {
		tst.Error("listener called for unchanged value")
	}
	p.SetValue(1, 5)
	if err := p.SetValues([]float64{0, 0, 0}); err != nil {
		tst.Error("Error: ", err)
	}
	if len(indices) != 2 || indices[0] != 1 || indices[1] != -1 {
		tst.Errorf("unexpected indices: %v", indices)
	}
	if types[0] != ValueChanged || types[1] != AllValuesChanged {
		tst.Errorf("unexpected change types: %v", types)
	}
	if err := p.SetValues([]float64{1}); err == nil {
		tst.Error("expected dimension error")
	}
}

func TestStoreRestore(tst *testing.T) {
	p := New("lambda", 4.4)
	p.Store()
	p.SetValue(0, 8.8)
	p.Restore()
	if p.Value(0) != 4.4 {
		tst.Error("expected 4.4 after restore, got", p.Value(0))
	}
	p.Store()
	p.SetValue(0, 1)
	p.Restore()
	if p.Value(0) != 4.4 {
		tst.Error("expected 4.4 after second restore, got", p.Value(0))
	}
}

func TestDimension(tst *testing.T) {
	p := New("prop", 0.1)
	called := false
	p.AddListener(func(*Parameter, int, ChangeType) { called = true })
	p.SetDimension(4)
	if called {
		tst.Error("resizing should not notify listeners")
	}
	if p.Dimension() != 4 {
		tst.Error("expected dimension 4, got", p.Dimension())
	}
	for i, v := range p.Values() {
		if v != 0.1 {
			tst.Errorf("value %d: expected 0.1, got %v", i, v)
		}
	}
}

func TestRange(tst *testing.T) {
	p := New("freq", 0.5, 0.5, 0.5)
	p.SetMin(0)
	p.SetMax(1)
	if !p.InRange() {
		tst.Error("values should be in range")
	}
	if p.GetMin() != 0 || p.GetMax() != 1 {
		tst.Error("wrong bounds", p.GetMin(), p.GetMax())
	}
	p.SetValue(2, 1.5)
	if p.InRange() {
		tst.Error("value 1.5 should be out of range")
	}
	if p.String() != "0.500000\t0.500000\t1.500000" {
		tst.Error("unexpected string:", p.String())
	}
}
