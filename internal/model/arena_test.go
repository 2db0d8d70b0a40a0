package model

import "testing"

func TestArenaPutGetOrder(t *testing.T) {
	a := NewArena[Block]()
	a.Put(1, &Block{ID: 1, InputFrameID: 100})
	a.Put(2, &Block{ID: 2, InputFrameID: 101})

	got, ok := a.Get(1)
	if !ok || got.InputFrameID != 100 {
		t.Fatalf("Get(1) = %+v, %v", got, ok)
	}

	if _, ok := a.Get(99); ok {
		t.Fatalf("Get(99) should not exist")
	}

	if want := []int64{1, 2}; !int64SliceEqual(a.Order(), want) {
		t.Fatalf("Order() = %v, want %v", a.Order(), want)
	}

	if a.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", a.Len())
	}
}

func TestArenaResetClearsEverything(t *testing.T) {
	a := NewArena[Feature]()
	a.Put(1, &Feature{ID: 1})
	a.Reset()

	if a.Len() != 0 {
		t.Fatalf("Len() after Reset() = %d, want 0", a.Len())
	}
	if _, ok := a.Get(1); ok {
		t.Fatalf("Get(1) after Reset() should not exist")
	}
}

func TestCatalogReset(t *testing.T) {
	c := NewCatalog()
	c.Blocks.Put(1, &Block{ID: 1})
	c.Features.Put(1, &Feature{ID: 1})
	c.Objects.Put(1, &Object{ID: 1})
	c.Spans.Put(1, &Span{ID: 1})

	c.Reset()

	if c.Blocks.Len() != 0 || c.Features.Len() != 0 || c.Objects.Len() != 0 || c.Spans.Len() != 0 {
		t.Fatalf("Catalog.Reset() left non-empty arenas")
	}
}

func int64SliceEqual(a, b []int64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
