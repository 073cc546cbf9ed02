package debounce

import (
	"testing"
	"time"

	"github.com/alfredjeanlab/corkboard/internal/clock"
)

func newTestScheduler() (*Scheduler, *clock.Fake) {
	c := clock.NewFake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	return New(c), c
}

func TestSchedule_ReplacesPending(t *testing.T) {
	s, c := newTestScheduler()
	var ran []int
	for i := 1; i <= 5; i++ {
		s.Schedule("note-1", 300*time.Millisecond, func() { ran = append(ran, i) })
		c.Advance(100 * time.Millisecond)
	}
	if len(ran) != 0 {
		t.Fatalf("ran early: %v", ran)
	}
	c.Advance(300 * time.Millisecond)
	if len(ran) != 1 || ran[0] != 5 {
		t.Fatalf("ran = %v, want [5]", ran)
	}
	if s.Armed("note-1") {
		t.Error("key still armed after firing")
	}
}

func TestSchedule_KeysIndependent(t *testing.T) {
	s, c := newTestScheduler()
	var a, b int
	s.Schedule("a", 100*time.Millisecond, func() { a++ })
	s.Schedule("b", 200*time.Millisecond, func() { b++ })
	if s.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", s.Len())
	}
	c.Advance(150 * time.Millisecond)
	if a != 1 || b != 0 {
		t.Fatalf("a=%d b=%d after 150ms", a, b)
	}
	c.Advance(100 * time.Millisecond)
	if b != 1 {
		t.Fatalf("b=%d after 250ms", b)
	}
}

func TestCancel(t *testing.T) {
	s, c := newTestScheduler()
	ran := false
	s.Schedule("k", time.Second, func() { ran = true })
	if !s.Cancel("k") {
		t.Fatal("Cancel() = false for armed key")
	}
	if s.Cancel("k") {
		t.Error("Cancel() = true for unarmed key")
	}
	c.Advance(2 * time.Second)
	if ran {
		t.Error("cancelled task ran")
	}
}

func TestCancelAll(t *testing.T) {
	s, c := newTestScheduler()
	ran := 0
	for _, k := range []string{"a", "b", "c"} {
		s.Schedule(k, time.Second, func() { ran++ })
	}
	s.CancelAll()
	c.Advance(2 * time.Second)
	if ran != 0 || s.Len() != 0 {
		t.Errorf("ran=%d len=%d after CancelAll", ran, s.Len())
	}
}

func TestSchedule_FromWithinTask(t *testing.T) {
	s, c := newTestScheduler()
	count := 0
	var again func()
	again = func() {
		count++
		if count == 1 {
			s.Schedule("k", time.Second, again)
		}
	}
	s.Schedule("k", time.Second, again)
	c.Advance(3 * time.Second)
	if count != 2 {
		t.Errorf("count = %d, want 2", count)
	}
}

func TestFlush_RunsInDeadlineOrder(t *testing.T) {
	s, c := newTestScheduler()
	var ran []string
	s.Schedule("late", 300*time.Millisecond, func() { ran = append(ran, "late") })
	s.Schedule("early", 100*time.Millisecond, func() { ran = append(ran, "early") })
	s.Schedule("mid", 200*time.Millisecond, func() {
		ran = append(ran, "mid")
		if !s.Armed("late") {
			t.Error("later task no longer armed while mid runs")
		}
	})

	if n := s.Flush(); n != 3 {
		t.Fatalf("Flush() = %d, want 3", n)
	}
	want := []string{"early", "mid", "late"}
	for i := range want {
		if i >= len(ran) || ran[i] != want[i] {
			t.Fatalf("ran = %v, want %v", ran, want)
		}
	}

	c.Advance(time.Second)
	if len(ran) != 3 {
		t.Errorf("flushed task ran again from its timer: %v", ran)
	}
}

func TestFlush_IncludesRescheduled(t *testing.T) {
	s, _ := newTestScheduler()
	var order []string
	var create func()
	create = func() {
		// Wait for "clear" like a create deferring to a pending bulk delete.
		if s.Armed("clear") {
			s.Schedule("create", 100*time.Millisecond, create)
			return
		}
		order = append(order, "create")
	}
	s.Schedule("create", 100*time.Millisecond, create)
	s.Schedule("clear", 400*time.Millisecond, func() { order = append(order, "clear") })

	s.Flush()
	if len(order) != 2 || order[0] != "clear" || order[1] != "create" {
		t.Fatalf("order = %v, want [clear create]", order)
	}
	if s.Len() != 0 {
		t.Errorf("Len() = %d after Flush", s.Len())
	}
}

func TestFlush_WaitsForRunningTask(t *testing.T) {
	s := New(nil)
	started := make(chan struct{})
	release := make(chan struct{})
	done := make(chan struct{})
	s.Schedule("slow", time.Millisecond, func() {
		close(started)
		<-release
		close(done)
	})
	<-started

	flushed := make(chan struct{})
	go func() {
		s.Flush()
		close(flushed)
	}()
	select {
	case <-flushed:
		t.Fatal("Flush returned while a task was running")
	case <-time.After(50 * time.Millisecond):
	}
	close(release)
	select {
	case <-flushed:
	case <-time.After(2 * time.Second):
		t.Fatal("Flush did not return after the task finished")
	}
	<-done
}
