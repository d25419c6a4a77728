package models

import (
	"sort"
	"time"
)

// Catalog is a prompt collection keyed by topic -> language -> stance.
// Prompt order within a stance is significant: it determines the sample index.
type Catalog struct {
	Metadata any                                       `json:"metadata" yaml:"metadata"`
	Prompts  map[string]map[string]map[string][]string `json:"prompts" yaml:"prompts"`
}

// Total returns the number of prompts across every (topic, language, stance) leaf.
func (c *Catalog) Total() int {
	total := 0
	for _, languages := range c.Prompts {
		for _, stances := range languages {
			for _, prompts := range stances {
				total += len(prompts)
			}
		}
	}
	return total
}

// Tasks enumerates one StanceTask per leaf, ordered by topic, language and stance.
func (c *Catalog) Tasks() []StanceTask {
	var tasks []StanceTask
	for _, topic := range sortedKeys(c.Prompts) {
		languages := c.Prompts[topic]
		for _, language := range sortedKeys(languages) {
			stances := languages[language]
			for _, stance := range sortedKeys(stances) {
				tasks = append(tasks, StanceTask{
					Topic:    topic,
					Language: language,
					Stance:   stance,
					Prompts:  stances[stance],
				})
			}
		}
	}
	return tasks
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// StanceTask owns the ordered prompt list of a single (topic, language, stance) leaf.
type StanceTask struct {
	Topic    string
	Language string
	Stance   string
	Prompts  []string
}

// Units expands the task into its generation units. Index is 1-based.
func (t StanceTask) Units() []GenerationUnit {
	units := make([]GenerationUnit, len(t.Prompts))
	for i, prompt := range t.Prompts {
		units[i] = GenerationUnit{
			Topic:    t.Topic,
			Language: t.Language,
			Stance:   t.Stance,
			Index:    i + 1,
			Prompt:   prompt,
		}
	}
	return units
}

// GenerationUnit is one prompt's generation request.
type GenerationUnit struct {
	Topic    string `json:"topic"`
	Language string `json:"language"`
	Stance   string `json:"stance"`
	Index    int    `json:"index"`
	Prompt   string `json:"-"`
}

// GenerationResult pairs a unit with the provider's response.
type GenerationResult struct {
	Unit GenerationUnit
	Text string
}

// UnitFailure describes a unit that did not produce a sample.
type UnitFailure struct {
	Unit  GenerationUnit `json:"unit"`
	Stage string         `json:"stage"`
	Error string         `json:"error"`
}

// RunSummary is what a dispatch run leaves behind besides the output tree.
type RunSummary struct {
	RunID      string        `json:"run_id"`
	Provider   string        `json:"provider"`
	Model      string        `json:"model"`
	OutputDir  string        `json:"output_dir"`
	Total      int           `json:"total"`
	Written    int           `json:"written"`
	Tasks      int           `json:"tasks"`
	Failures   []UnitFailure `json:"failures,omitempty"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at"`
}

// SampleStatus is the ledger outcome of a single unit.
type SampleStatus string

const (
	SampleWritten SampleStatus = "written"
	SampleFailed  SampleStatus = "failed"
)

// LedgerEntry is one row of the run ledger.
type LedgerEntry struct {
	RunID    string
	Unit     GenerationUnit
	Provider string
	Model    string
	Path     string
	Status   SampleStatus
	Error    string
}
