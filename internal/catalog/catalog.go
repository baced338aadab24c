// Package catalog holds the course week table the classifiers match
// against: article titles, author surnames and topic vocabulary per week.
package catalog

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

var ErrInvalidTable = errors.New("invalid week table")

type WeekEntry struct {
	Week    int      `yaml:"week" json:"week"`
	Title   string   `yaml:"title" json:"title"`
	Authors []string `yaml:"authors" json:"authors"`
	Topics  []string `yaml:"topics" json:"topics"`
}

type Table struct {
	CourseWeeks int         `yaml:"courseWeeks" json:"courseWeeks"`
	MidtermWeek int         `yaml:"midtermWeek" json:"midtermWeek"`
	FinalWeek   int         `yaml:"finalWeek" json:"finalWeek"`
	Entries     []WeekEntry `yaml:"entries" json:"entries"`
}

// Default returns the built-in speech science reading list.
func Default() *Table {
	return &Table{
		CourseWeeks: 17,
		MidtermWeek: 9,
		FinalWeek:   17,
		Entries: []WeekEntry{
			{Week: 2, Title: "Speech motor control and the coordination of articulatory movements", Authors: []string{"Kent"}, Topics: []string{"motor control", "speech motor"}},
			{Week: 3, Title: "Acoustic phonetics and the measurement of vowel formants", Authors: []string{"Ladefoged"}, Topics: []string{"formant", "acoustic phonetics"}},
			{Week: 4, Title: "Vocal fold vibration and the myoelastic aerodynamic theory of phonation", Authors: []string{"Titze"}, Topics: []string{"vocal fold", "phonation"}},
			{Week: 5, Title: "Speech breathing across the lifespan", Authors: []string{"Hixon"}, Topics: []string{"speech breathing", "lung volume"}},
			{Week: 6, Title: "Quantal theory and categorical speech perception", Authors: []string{"Stevens"}, Topics: []string{"categorical perception", "speech perception"}},
			{Week: 7, Title: "The DIVA model of speech production and auditory feedback", Authors: []string{"Guenther"}, Topics: []string{"diva", "feedback control"}},
			{Week: 8, Title: "Acoustic theory of speech production and the source filter model", Authors: []string{"Fant"}, Topics: []string{"source-filter", "resonance"}},
			{Week: 10, Title: "Clinical measurement of speech and voice", Authors: []string{"Baken"}, Topics: []string{"jitter", "shimmer"}},
			{Week: 11, Title: "Laryngeal control mechanisms in speech and swallowing", Authors: []string{"Ludlow"}, Topics: []string{"laryngeal", "larynx"}},
			{Week: 12, Title: "Infant speech perception and the native language magnet", Authors: []string{"Kuhl"}, Topics: []string{"infant", "perceptual magnet"}},
			{Week: 13, Title: "Motor speech disorders: substrates and differential diagnosis", Authors: []string{"Duffy"}, Topics: []string{"dysarthria", "apraxia"}},
			{Week: 14, Title: "Hyper and hypo articulation theory of phonetic variation", Authors: []string{"Lindblom"}, Topics: []string{"coarticulation", "hyperarticulation"}},
			{Week: 15, Title: "Vocal tract area functions from magnetic resonance imaging", Authors: []string{"Narayanan"}, Topics: []string{"vocal tract", "mri"}},
			{Week: 16, Title: "Evidence based treatment of stuttering in adults", Authors: []string{"Ingham"}, Topics: []string{"stuttering", "fluency"}},
		},
	}
}

// LoadFile reads a YAML week table and validates it.
func LoadFile(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog file: %w", err)
	}
	return Parse(data)
}

func Parse(data []byte) (*Table, error) {
	var t Table
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("failed to parse catalog: %w", err)
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return &t, nil
}

func (t *Table) Validate() error {
	if t.CourseWeeks < 1 {
		return fmt.Errorf("%w: courseWeeks must be positive", ErrInvalidTable)
	}
	if len(t.Entries) == 0 {
		return fmt.Errorf("%w: no entries", ErrInvalidTable)
	}
	seen := make(map[int]bool, len(t.Entries))
	for _, e := range t.Entries {
		if e.Week < 1 || e.Week > t.CourseWeeks {
			return fmt.Errorf("%w: week %d outside 1..%d", ErrInvalidTable, e.Week, t.CourseWeeks)
		}
		if seen[e.Week] {
			return fmt.Errorf("%w: duplicate week %d", ErrInvalidTable, e.Week)
		}
		seen[e.Week] = true
		if strings.TrimSpace(e.Title) == "" {
			return fmt.Errorf("%w: week %d has no title", ErrInvalidTable, e.Week)
		}
	}
	return nil
}

func (t *Table) HasWeek(week int) bool {
	_, ok := t.Entry(week)
	return ok
}

func (t *Table) Entry(week int) (WeekEntry, bool) {
	for _, e := range t.Entries {
		if e.Week == week {
			return e, true
		}
	}
	return WeekEntry{}, false
}

// Weeks lists the article weeks in table order.
func (t *Table) Weeks() []int {
	weeks := make([]int, len(t.Entries))
	for i, e := range t.Entries {
		weeks[i] = e.Week
	}
	return weeks
}

// Keyed is one lookup row: a lower-cased phrase and the week it points to.
type Keyed struct {
	Key  string
	Week int
}

// AuthorIndex returns lower-cased author surnames in table order.
func (t *Table) AuthorIndex() []Keyed {
	var out []Keyed
	for _, e := range t.Entries {
		for _, a := range e.Authors {
			out = append(out, Keyed{Key: strings.ToLower(strings.TrimSpace(a)), Week: e.Week})
		}
	}
	return out
}

// TopicIndex returns lower-cased topic phrases in table order.
func (t *Table) TopicIndex() []Keyed {
	var out []Keyed
	for _, e := range t.Entries {
		for _, topic := range e.Topics {
			out = append(out, Keyed{Key: strings.ToLower(strings.TrimSpace(topic)), Week: e.Week})
		}
	}
	return out
}
