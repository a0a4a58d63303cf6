package index

import (
	"sync"
	"testing"

	"github.com/MrSnakeDoc/restreamer/internal/domain"
)

func views(ids ...string) []domain.RelayView {
	out := make([]domain.RelayView, 0, len(ids))
	for _, id := range ids {
		out = append(out, domain.RelayView{ID: id, Source: "rtsp://" + id, Enabled: true, State: domain.Running})
	}
	return out
}

func TestNewRelayIndex(t *testing.T) {
	idx := NewRelayIndex()
	if idx == nil {
		t.Fatal("NewRelayIndex() returned nil")
	}
	if n := idx.Count(); n != 0 {
		t.Errorf("NewRelayIndex() should start empty, got %d", n)
	}
	if !idx.GetLastUpdate().IsZero() {
		t.Error("GetLastUpdate() should be zero before the first update")
	}
}

func TestUpdateKeepsOrder(t *testing.T) {
	idx := NewRelayIndex()
	idx.Update(views("c", "a", "b"))

	got := idx.List()
	want := []string{"c", "a", "b"}
	if len(got) != len(want) {
		t.Fatalf("List() = %d rows, want %d", len(got), len(want))
	}
	for i, id := range want {
		if got[i].ID != id {
			t.Errorf("List()[%d] = %q, want %q", i, got[i].ID, id)
		}
	}
}

func TestUpdateOverwrites(t *testing.T) {
	idx := NewRelayIndex()
	idx.Update(views("one"))
	idx.Update(views("two", "three"))

	if idx.Has("one") {
		t.Error("stale relay still indexed")
	}
	if !idx.Has("three") {
		t.Error("new relay missing")
	}
	if n := idx.Count(); n != 2 {
		t.Errorf("Count() = %d, want 2", n)
	}
	if idx.GetLastUpdate().IsZero() {
		t.Error("GetLastUpdate() not set")
	}
}

func TestGet(t *testing.T) {
	idx := NewRelayIndex()
	idx.Update(views("a", "b"))

	v, ok := idx.Get("b")
	if !ok || v.Source != "rtsp://b" {
		t.Errorf("Get(b) = %+v, %v", v, ok)
	}
	if _, ok := idx.Get("missing"); ok {
		t.Error("Get(missing) should report false")
	}
}

func TestCountByState(t *testing.T) {
	idx := NewRelayIndex()
	rows := views("a", "b", "c")
	rows[1].State = domain.RestartPending
	rows[2].State = domain.Stopped
	rows[2].Enabled = false
	idx.Update(rows)

	for state, want := range map[domain.SessionState]int{
		domain.Running:        1,
		domain.RestartPending: 1,
		domain.Stopped:        1,
	} {
		if got := idx.CountByState(state); got != want {
			t.Errorf("CountByState(%s) = %d, want %d", state, got, want)
		}
	}
}

func TestListIsACopy(t *testing.T) {
	idx := NewRelayIndex()
	idx.Update(views("a"))

	rows := idx.List()
	rows[0].ID = "mutated"

	if !idx.Has("a") || idx.List()[0].ID != "a" {
		t.Error("List() exposed internal storage")
	}
}

func TestConcurrentAccess(t *testing.T) {
	idx := NewRelayIndex()
	var wg sync.WaitGroup

	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			idx.Update(views("a", "b"))
		}()
		go func() {
			defer wg.Done()
			_ = idx.List()
			_, _ = idx.Get("a")
			_ = idx.CountByState(domain.Running)
		}()
	}
	wg.Wait()

	if n := idx.Count(); n != 2 {
		t.Errorf("Count() = %d, want 2", n)
	}
}
