package catalog

import (
	"errors"
	"fmt"
	"testing"
)

func testCatalog() Catalog {
	return New(map[Category][]string{
		ReadingComprehension: {"rc-1", "rc-2", "rc-3"},
		SentenceCorrection:   {"sc-1", "sc-2"},
		CriticalReasoning:    {"cr-1"},
		ProblemSolving:       {"ps-1", "ps-2", "ps-3", "ps-4", "ps-5"},
		DataSufficiency:      {"ds-1", "ds-2"},
	})
}

func TestSelectAnyNeverEmitsExcludedCategory(t *testing.T) {
	c := testCatalog()
	s := NewSelector()

	for i := 0; i < 200; i++ {
		refs, err := s.Select(c, Any, 10)
		if err != nil {
			t.Fatalf("Select returned error: %v", err)
		}
		for _, ref := range refs {
			if ref.Category == ReadingComprehension {
				t.Fatalf("excluded category selected: %+v", ref)
			}
		}
	}
}

func TestSelectExcludedCategoryIsUnsupported(t *testing.T) {
	refs, err := NewSelector().Select(testCatalog(), ReadingComprehension, 3)
	if !errors.Is(err, ErrUnsupportedCategory) {
		t.Fatalf("expected ErrUnsupportedCategory, got %v", err)
	}
	if len(refs) != 0 {
		t.Fatalf("expected no refs, got %v", refs)
	}
}

func TestSelectSizeAndUniqueness(t *testing.T) {
	c := testCatalog()
	tests := []struct {
		name   string
		filter Category
		count  int
		want   int
	}{
		{name: "fewer than pool", filter: ProblemSolving, count: 2, want: 2},
		{name: "exact pool", filter: ProblemSolving, count: 5, want: 5},
		{name: "more than pool", filter: SentenceCorrection, count: 9, want: 2},
		{name: "any fewer than union", filter: Any, count: 4, want: 4},
		{name: "any more than union", filter: Any, count: 100, want: 10},
		{name: "zero count", filter: Any, count: 0, want: 0},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			for seed := uint64(0); seed < 25; seed++ {
				refs, err := NewSeededSelector(seed).Select(c, tc.filter, tc.count)
				if err != nil {
					t.Fatalf("Select returned error: %v", err)
				}
				if len(refs) != tc.want {
					t.Fatalf("len = %d, want %d", len(refs), tc.want)
				}
				seen := make(map[string]struct{})
				for _, ref := range refs {
					if _, dup := seen[ref.ID]; dup {
						t.Fatalf("duplicate id %q in %v", ref.ID, refs)
					}
					seen[ref.ID] = struct{}{}
					if tc.filter != Any && ref.Category != tc.filter {
						t.Fatalf("ref %+v outside filter %s", ref, tc.filter)
					}
				}
			}
		})
	}
}

func TestSelectProblemSolvingDrawsFromPSPool(t *testing.T) {
	c := testCatalog()
	pool := map[string]struct{}{}
	for _, id := range c.IDs(ProblemSolving) {
		pool[id] = struct{}{}
	}

	refs, err := NewSelector().Select(c, ProblemSolving, 2)
	if err != nil {
		t.Fatalf("Select returned error: %v", err)
	}
	if len(refs) != 2 || refs[0].ID == refs[1].ID {
		t.Fatalf("expected 2 distinct refs, got %v", refs)
	}
	for _, ref := range refs {
		if _, ok := pool[ref.ID]; !ok {
			t.Fatalf("ref %q not from PS pool", ref.ID)
		}
	}
}

func TestSelectAnyIsUniformAcrossUnion(t *testing.T) {
	// CR has one question and PS five; an item-uniform draw picks cr-1 about
	// as often as any single PS item.
	c := testCatalog()
	s := NewSeededSelector(7)
	counts := map[string]int{}
	const draws = 20000
	for i := 0; i < draws; i++ {
		refs, _ := s.Select(c, Any, 1)
		counts[refs[0].ID]++
	}
	expected := draws / 10
	for id, n := range counts {
		if n < expected/2 || n > expected*3/2 {
			t.Fatalf("id %s drawn %d times, expected about %d", id, n, expected)
		}
	}
}

func TestSelectDedupesRepeatedIdentifiers(t *testing.T) {
	c := New(map[Category][]string{ProblemSolving: {"a", "a", "b"}})
	refs, err := NewSelector().Select(c, ProblemSolving, 5)
	if err != nil {
		t.Fatalf("Select returned error: %v", err)
	}
	if len(refs) != 2 {
		t.Fatalf("expected 2 refs, got %v", refs)
	}
}

func TestLookupAndParseCategory(t *testing.T) {
	tests := []struct {
		input string
		want  Category
		ok    bool
	}{
		{input: "PS", want: ProblemSolving, ok: true},
		{input: " ps ", want: ProblemSolving, ok: true},
		{input: "Data Sufficiency", want: DataSufficiency, ok: true},
		{input: "critical-reasoning", want: CriticalReasoning, ok: true},
		{input: "rc", want: ReadingComprehension, ok: true},
		{input: "xyz", ok: false},
	}
	for _, tc := range tests {
		t.Run(fmt.Sprintf("lookup %q", tc.input), func(t *testing.T) {
			got, ok := Lookup(tc.input)
			if ok != tc.ok || (ok && got != tc.want) {
				t.Fatalf("Lookup(%q) = %v, %t; want %v, %t", tc.input, got, ok, tc.want, tc.ok)
			}
		})
	}

	if c, err := ParseCategory(""); err != nil || c != Any {
		t.Fatalf("ParseCategory(\"\") = %v, %v", c, err)
	}
	if _, err := ParseCategory("nope"); err == nil {
		t.Fatalf("expected error for unknown category")
	}
}

func TestCatalogFindAndStats(t *testing.T) {
	c := testCatalog()
	if cat, ok := c.Find("ds-2"); !ok || cat != DataSufficiency {
		t.Fatalf("Find(ds-2) = %v, %t", cat, ok)
	}
	if _, ok := c.Find("missing"); ok {
		t.Fatalf("expected missing id to be absent")
	}
	if c.Total() != 13 {
		t.Fatalf("Total = %d, want 13", c.Total())
	}
	for _, st := range c.Stats() {
		if st.Category == ReadingComprehension && st.Supported {
			t.Fatalf("RC must be reported unsupported")
		}
	}
}
