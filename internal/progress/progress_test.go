package progress

import "testing"

func TestChannelIsMonotonicAndClamped(t *testing.T) {
	c := NewChannel(16)
	for _, p := range []int{-5, 10, 40, 20, 150, 90} {
		c.Report(p, "step")
	}
	c.Close()

	var got []int
	for ev := range c.Events() {
		got = append(got, ev.Percent)
	}
	want := []int{0, 10, 40, 40, 100, 100}
	if len(got) != len(want) {
		t.Fatalf("events = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("events = %v, want %v", got, want)
		}
	}
}

func TestChannelDropsWhenFull(t *testing.T) {
	c := NewChannel(2)
	for i := 0; i < 5; i++ {
		c.Report(i*10, "x")
	}
	if c.Dropped() != 3 {
		t.Fatalf("Dropped() = %d, want 3", c.Dropped())
	}
	if c.Last() != 40 {
		t.Fatalf("Last() = %d, want 40", c.Last())
	}
	c.Close()
	c.Close()
	c.Report(99, "after close")
}

func TestScale(t *testing.T) {
	var rec Recorder
	sub := Scale(&rec, 30, 90)
	sub.Report(0, "start")
	sub.Report(50, "half")
	sub.Report(100, "done")

	ev := rec.Events()
	if ev[0].Percent != 30 || ev[1].Percent != 60 || ev[2].Percent != 90 {
		t.Fatalf("scaled events = %+v", ev)
	}
	nested := Scale(Scale(&rec, 0, 50), 50, 100)
	nested.Report(100, "nested")
	if last := rec.Events()[3].Percent; last != 50 {
		t.Fatalf("nested scale = %d, want 50", last)
	}
}

func TestOrNop(t *testing.T) {
	OrNop(nil).Report(10, "ignored")
	Scale(nil, 0, 10).Report(10, "ignored")
}
