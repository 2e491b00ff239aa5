package buffer

import (
	"testing"
)

func TestWriteRead(t *testing.T) {
	buf, err := NewRing[int](4)
	if err != nil {
		t.Fatalf("NewRing: %v", err)
	}

	for i := 1; i <= 3; i++ {
		if err := buf.Write(i); err != nil {
			t.Fatalf("Write(%d): %v", i, err)
		}
	}

	if got := buf.Size(); got != 3 {
		t.Errorf("Size = %d, want 3", got)
	}

	for want := 1; want <= 3; want++ {
		got, ok := buf.Read()
		if !ok || got != want {
			t.Errorf("Read = (%d, %v), want (%d, true)", got, ok, want)
		}
	}

	if _, ok := buf.Read(); ok {
		t.Error("Read on empty buffer should return false")
	}
}

func TestDropOldest(t *testing.T) {
	buf, _ := NewRing[int](2)

	_ = buf.Write(1)
	_ = buf.Write(2)
	_ = buf.Write(3) // evicts 1

	got, ok := buf.Read()
	if !ok || got != 2 {
		t.Errorf("Read = (%d, %v), want (2, true)", got, ok)
	}
	got, _ = buf.Read()
	if got != 3 {
		t.Errorf("Read = %d, want 3", got)
	}

	stats := buf.Stats()
	if stats.Dropped != 1 {
		t.Errorf("Dropped = %d, want 1", stats.Dropped)
	}
}

func TestDropNewest(t *testing.T) {
	buf, _ := NewRing[int](2, WithOverflowPolicy[int](DropNewest))

	_ = buf.Write(1)
	_ = buf.Write(2)
	_ = buf.Write(3) // dropped

	got, _ := buf.Read()
	if got != 1 {
		t.Errorf("Read = %d, want 1", got)
	}
	if buf.Stats().Dropped != 1 {
		t.Errorf("Dropped = %d, want 1", buf.Stats().Dropped)
	}
}

func TestReadBatch(t *testing.T) {
	buf, _ := NewRing[int](8)
	for i := 0; i < 5; i++ {
		_ = buf.Write(i)
	}

	batch := buf.ReadBatch(3)
	if len(batch) != 3 {
		t.Fatalf("len(batch) = %d, want 3", len(batch))
	}
	for i, v := range batch {
		if v != i {
			t.Errorf("batch[%d] = %d, want %d", i, v, i)
		}
	}

	// Batch larger than contents drains the buffer
	batch = buf.ReadBatch(100)
	if len(batch) != 2 {
		t.Errorf("len(batch) = %d, want 2", len(batch))
	}
	if buf.Size() != 0 {
		t.Errorf("Size = %d, want 0", buf.Size())
	}
}

func TestPeekAndClear(t *testing.T) {
	buf, _ := NewRing[string](2)
	_ = buf.Write("a")

	got, ok := buf.Peek()
	if !ok || got != "a" {
		t.Errorf("Peek = (%q, %v), want (a, true)", got, ok)
	}
	if buf.Size() != 1 {
		t.Errorf("Peek must not consume, Size = %d", buf.Size())
	}

	buf.Clear()
	if buf.Size() != 0 {
		t.Errorf("Size after Clear = %d, want 0", buf.Size())
	}
}

func TestWraparound(t *testing.T) {
	buf, _ := NewRing[int](3)

	for round := 0; round < 10; round++ {
		_ = buf.Write(round)
		got, ok := buf.Read()
		if !ok || got != round {
			t.Fatalf("round %d: Read = (%d, %v)", round, got, ok)
		}
	}
}
