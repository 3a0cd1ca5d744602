package catalog

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnsupportedCategory is returned when selection is asked for the
// excluded category.
var ErrUnsupportedCategory = errors.New("category is not supported for selection")

type Category int

const (
	// Any means no category filter.
	Any Category = iota
	ReadingComprehension
	SentenceCorrection
	CriticalReasoning
	ProblemSolving
	DataSufficiency
)

// All lists every concrete category in display order.
var All = []Category{
	ReadingComprehension,
	SentenceCorrection,
	CriticalReasoning,
	ProblemSolving,
	DataSufficiency,
}

// Excluded is never emitted by random selection; its content records use an
// incompatible shape.
const Excluded = ReadingComprehension

func (c Category) String() string {
	switch c {
	case ReadingComprehension:
		return "Reading Comprehension"
	case SentenceCorrection:
		return "Sentence Correction"
	case CriticalReasoning:
		return "Critical Reasoning"
	case ProblemSolving:
		return "Problem Solving"
	case DataSufficiency:
		return "Data Sufficiency"
	case Any:
		return "Any"
	default:
		return "Unknown"
	}
}

// Label is String for display, where no category means it is not known.
func (c Category) Label() string {
	if c == Any {
		return "Unknown"
	}
	return c.String()
}

// Code returns the short abbreviation used in the content index.
func (c Category) Code() string {
	switch c {
	case ReadingComprehension:
		return "RC"
	case SentenceCorrection:
		return "SC"
	case CriticalReasoning:
		return "CR"
	case ProblemSolving:
		return "PS"
	case DataSufficiency:
		return "DS"
	default:
		return ""
	}
}

func (c Category) Supported() bool {
	return c != Excluded && c.Code() != ""
}

var keywords = buildKeywords()

func buildKeywords() map[string]Category {
	out := make(map[string]Category, len(All)*3)
	for _, c := range All {
		for _, kw := range Keywords(c) {
			out[kw] = c
		}
	}
	return out
}

// Keywords lists the lower-case spellings that name c: its abbreviation, its
// full name, and the full name hyphenated.
func Keywords(c Category) []string {
	if c.Code() == "" {
		return nil
	}
	name := strings.ToLower(c.String())
	return []string{strings.ToLower(c.Code()), name, strings.ReplaceAll(name, " ", "-")}
}

// Lookup matches an abbreviation or full category name, ignoring case and
// surrounding whitespace.
func Lookup(raw string) (Category, bool) {
	c, ok := keywords[strings.ToLower(strings.TrimSpace(raw))]
	return c, ok
}

// ParseCategory is Lookup for configuration values: empty, "any" and "all"
// mean no filter.
func ParseCategory(raw string) (Category, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "any", "all":
		return Any, nil
	}
	c, ok := Lookup(raw)
	if !ok {
		return Any, fmt.Errorf("unknown question category %q", raw)
	}
	return c, nil
}

type QuestionRef struct {
	Category Category
	ID       string
}

// Catalog maps each category to its ordered question identifiers. It is
// never mutated after construction.
type Catalog struct {
	byCategory map[Category][]string
}

func New(byCategory map[Category][]string) Catalog {
	out := make(map[Category][]string, len(byCategory))
	for c, ids := range byCategory {
		out[c] = append([]string(nil), ids...)
	}
	return Catalog{byCategory: out}
}

// IDs returns a copy of the category's identifiers.
func (c Catalog) IDs(cat Category) []string {
	return append([]string(nil), c.byCategory[cat]...)
}

func (c Catalog) Count(cat Category) int {
	return len(c.byCategory[cat])
}

func (c Catalog) Total() int {
	total := 0
	for _, ids := range c.byCategory {
		total += len(ids)
	}
	return total
}

// Find reports which category holds id.
func (c Catalog) Find(id string) (Category, bool) {
	for _, cat := range All {
		for _, candidate := range c.byCategory[cat] {
			if candidate == id {
				return cat, true
			}
		}
	}
	return Any, false
}

type Stat struct {
	Category  Category
	Count     int
	Supported bool
}

func (c Catalog) Stats() []Stat {
	out := make([]Stat, 0, len(All))
	for _, cat := range All {
		out = append(out, Stat{Category: cat, Count: c.Count(cat), Supported: cat.Supported()})
	}
	return out
}
