package session

import (
	"testing"

	"github.com/testply/guestexam-backend/internal/model"
)

func TestRegistry(t *testing.T) {
	r := NewRegistry()

	if r.Get("g-1") != nil {
		t.Fatal("empty registry returned a controller")
	}

	c1 := &Controller{}
	c2 := &Controller{}
	r.Put("g-1", c1)
	if r.Get("g-1") != c1 {
		t.Fatal("Get did not return the stored controller")
	}

	// Replacement wins.
	r.Put("g-1", c2)
	if r.Get("g-1") != c2 {
		t.Fatal("Put did not replace the controller")
	}

	// Removing a stale controller is a no-op.
	r.Remove("g-1", c1)
	if r.Get("g-1") != c2 {
		t.Fatal("Remove dropped someone else's controller")
	}

	r.Remove("g-1", c2)
	if r.Get("g-1") != nil {
		t.Fatal("Remove left the controller registered")
	}
}

func TestRegistryReplace(t *testing.T) {
	r := NewRegistry()
	c1 := &Controller{}
	c2 := &Controller{}
	c3 := &Controller{}

	// An empty slot is claimed with prev == nil.
	if !r.Replace("g-1", nil, c1) {
		t.Fatal("Replace into empty slot failed")
	}
	if r.Get("g-1") != c1 {
		t.Fatal("Replace did not install the controller")
	}

	// A second claim against the now-stale nil loses.
	if r.Replace("g-1", nil, c2) {
		t.Fatal("Replace with stale prev should fail")
	}
	if r.Get("g-1") != c1 {
		t.Fatal("losing Replace must not evict the winner")
	}

	// Swapping against the current occupant wins.
	if !r.Replace("g-1", c1, c3) {
		t.Fatal("Replace with current prev failed")
	}
	if r.Get("g-1") != c3 {
		t.Fatal("Replace did not swap the controller")
	}
}

func TestLocalGrader(t *testing.T) {
	f := newFakeCatalog(1)
	def := f.defs[f.exams[0].ID]

	answers := map[string]string{
		def.Questions[0].ID.String(): "a",
		def.Questions[1].ID.String(): "b",
	}

	score, err := LocalGrader{}.Score(def, answers)
	if err != nil {
		t.Fatalf("Score: %v", err)
	}
	// One correct out of three.
	want := 100.0 / 3
	if diff := score - want; diff > 0.001 || diff < -0.001 {
		t.Errorf("score = %v, want %v", score, want)
	}

	empty, err := LocalGrader{}.Score(&model.ExamDefinition{}, nil)
	if err != nil {
		t.Fatalf("Score empty: %v", err)
	}
	if empty != 0 {
		t.Errorf("empty exam score = %v, want 0", empty)
	}
}
