package history

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/use-agent/slotwatch/models"
)

func run(id string) *models.RunResult {
	return models.NewRunResult(id, "https://ceo.baemin.com", time.Now())
}

func TestStore_EvictsOldest(t *testing.T) {
	s := New(3)
	for i := 1; i <= 5; i++ {
		s.Add(run(fmt.Sprintf("r%d", i)))
	}
	if s.Len() != 3 {
		t.Fatalf("Len = %d, want 3", s.Len())
	}
	if _, ok := s.Get("r2"); ok {
		t.Error("r2 should have been evicted")
	}
	latest, ok := s.Latest()
	if !ok || latest.ID != "r5" {
		t.Errorf("Latest = %v, want r5", latest)
	}
	list := s.List()
	want := []string{"r5", "r4", "r3"}
	for i, r := range list {
		if r.ID != want[i] {
			t.Errorf("List[%d] = %s, want %s", i, r.ID, want[i])
		}
	}
}

func TestStore_ReplaceSameID(t *testing.T) {
	s := New(2)
	first := run("a")
	s.Add(first)
	second := run("a")
	second.Status = models.StatusSuccess
	s.Add(second)

	if s.Len() != 1 {
		t.Errorf("Len = %d, want 1", s.Len())
	}
	got, _ := s.Get("a")
	if got.Status != models.StatusSuccess {
		t.Errorf("Get returned stale run")
	}
}

func TestStore_Empty(t *testing.T) {
	s := New(0)
	if _, ok := s.Latest(); ok {
		t.Error("empty store has no latest")
	}
	if len(s.List()) != 0 {
		t.Error("empty store lists nothing")
	}
}

func TestStore_Concurrent(t *testing.T) {
	s := New(10)
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s.Add(run(fmt.Sprintf("r%d", i)))
			s.Latest()
			s.List()
		}(i)
	}
	wg.Wait()
	if s.Len() != 10 {
		t.Errorf("Len = %d, want 10", s.Len())
	}
}
