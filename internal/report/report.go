// Package report produces the machine-readable run report and the markdown
// change summary of a documentation run.
package report

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// Signal severities.
const (
	SeverityCritical = "critical"
	SeverityWarning  = "warning"
	SeverityInfo     = "info"
)

type Signal struct {
	Code     string  `json:"code"`
	Stage    string  `json:"stage"`
	Severity string  `json:"severity"`
	Message  string  `json:"message"`
	Value    float64 `json:"value,omitempty"`
}

type StageMetric struct {
	Name       string             `json:"name"`
	Status     string             `json:"status"`
	StartedAt  string             `json:"started_at"`
	FinishedAt string             `json:"finished_at"`
	DurationMS int64              `json:"duration_ms"`
	Counters   map[string]float64 `json:"counters,omitempty"`
	Notes      []string           `json:"notes,omitempty"`
	Error      string             `json:"error,omitempty"`
}

// SectionOutcome is one row of the per-section change table.
type SectionOutcome struct {
	Key    string `json:"key"`
	Status string `json:"status"`
	Failed bool   `json:"failed,omitempty"`
	Error  string `json:"error,omitempty"`
}

type Summary struct {
	StageCount        int            `json:"stage_count"`
	SectionCount      int            `json:"section_count"`
	FailedStages      int            `json:"failed_stages"`
	FailedSections    int            `json:"failed_sections"`
	SectionsByStatus  map[string]int `json:"sections_by_status"`
	SignalsBySeverity map[string]int `json:"signals_by_severity"`
}

// RunReport collects stage timings, per-section outcomes and signals for one
// run. A nil *RunReport is valid and records nothing.
type RunReport struct {
	Version     string           `json:"version"`
	Project     string           `json:"project"`
	GeneratedAt string           `json:"generated_at"`
	Output      string           `json:"output"`
	Stages      []StageMetric    `json:"stages"`
	Sections    []SectionOutcome `json:"sections,omitempty"`
	Signals     []Signal         `json:"signals,omitempty"`
	Summary     Summary          `json:"summary"`

	now func() time.Time
}

type StageHandle struct {
	name    string
	started time.Time
}

func NewRunReport(project, output string) *RunReport {
	r := &RunReport{
		Version:  "v1",
		Project:  project,
		Output:   output,
		Stages:   []StageMetric{},
		Sections: []SectionOutcome{},
		Signals:  []Signal{},
		now:      time.Now,
	}
	r.GeneratedAt = r.clock().Format(time.RFC3339)
	return r
}

func (r *RunReport) clock() time.Time {
	if r.now == nil {
		return time.Now().UTC()
	}
	return r.now().UTC()
}

func (r *RunReport) BeginStage(name string) StageHandle {
	if r == nil {
		return StageHandle{name: strings.TrimSpace(name), started: time.Now().UTC()}
	}
	return StageHandle{name: strings.TrimSpace(name), started: r.clock()}
}

func (r *RunReport) EndStage(h StageHandle, status string, counters map[string]float64, notes []string, err error) {
	if r == nil || strings.TrimSpace(h.name) == "" {
		return
	}
	if strings.TrimSpace(status) == "" {
		status = "ok"
	}
	finished := r.clock()
	m := StageMetric{
		Name:       h.name,
		Status:     status,
		StartedAt:  h.started.Format(time.RFC3339Nano),
		FinishedAt: finished.Format(time.RFC3339Nano),
		DurationMS: finished.Sub(h.started).Milliseconds(),
		Counters:   cleanCounters(counters),
		Notes:      cleanNotes(notes),
	}
	if err != nil {
		m.Error = err.Error()
		if status == "ok" {
			m.Status = "error"
		}
	}
	r.Stages = append(r.Stages, m)
}

func (r *RunReport) AddSignal(code, stage, severity, message string, value float64) {
	if r == nil {
		return
	}
	s := Signal{
		Code:     strings.TrimSpace(code),
		Stage:    strings.TrimSpace(stage),
		Severity: strings.ToLower(strings.TrimSpace(severity)),
		Message:  strings.TrimSpace(message),
		Value:    value,
	}
	if s.Code == "" || s.Stage == "" || s.Severity == "" || s.Message == "" {
		return
	}
	r.Signals = append(r.Signals, s)
}

func (r *RunReport) AddSections(rows []SectionOutcome) {
	if r == nil {
		return
	}
	for _, row := range rows {
		if strings.TrimSpace(row.Key) == "" {
			continue
		}
		r.Sections = append(r.Sections, row)
	}
}

func (r *RunReport) Finalize() {
	if r == nil {
		return
	}
	r.GeneratedAt = r.clock().Format(time.RFC3339)
	severityCount := map[string]int{
		SeverityCritical: 0,
		SeverityWarning:  0,
		SeverityInfo:     0,
	}
	sort.SliceStable(r.Signals, func(i, j int) bool {
		pi := signalPriority(r.Signals[i].Severity)
		pj := signalPriority(r.Signals[j].Severity)
		if pi == pj {
			if r.Signals[i].Stage == r.Signals[j].Stage {
				return r.Signals[i].Code < r.Signals[j].Code
			}
			return r.Signals[i].Stage < r.Signals[j].Stage
		}
		return pi > pj
	})
	for _, s := range r.Signals {
		severityCount[s.Severity]++
	}

	failedStages := 0
	for _, st := range r.Stages {
		if st.Status != "ok" {
			failedStages++
		}
	}

	byStatus := map[string]int{}
	failedSections := 0
	for _, sec := range r.Sections {
		byStatus[sec.Status]++
		if sec.Failed {
			failedSections++
		}
	}

	r.Summary = Summary{
		StageCount:        len(r.Stages),
		SectionCount:      len(r.Sections),
		FailedStages:      failedStages,
		FailedSections:    failedSections,
		SectionsByStatus:  byStatus,
		SignalsBySeverity: severityCount,
	}
}

func (r *RunReport) Save(path string) error {
	if r == nil {
		return nil
	}
	r.Finalize()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return os.WriteFile(path, data, 0644)
}

func cleanCounters(raw map[string]float64) map[string]float64 {
	if len(raw) == 0 {
		return nil
	}
	out := make(map[string]float64, len(raw))
	for k, v := range raw {
		key := strings.TrimSpace(k)
		if key == "" {
			continue
		}
		out[key] = v
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func cleanNotes(raw []string) []string {
	if len(raw) == 0 {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, n := range raw {
		n = strings.TrimSpace(n)
		if n == "" {
			continue
		}
		out = append(out, n)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func signalPriority(severity string) int {
	switch severity {
	case SeverityCritical:
		return 3
	case SeverityWarning:
		return 2
	default:
		return 1
	}
}
