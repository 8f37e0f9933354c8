package telemetry

import (
	"strings"
	"sync"
)

type Report struct {
	Level  string
	ID     string
	Params []any
}

// Recorder is an in-memory API used by tests to assert on what was reported.
type Recorder struct {
	mu      sync.Mutex
	reports []Report
	counts  map[string]int64
}

func NewRecorder() *Recorder {
	return &Recorder{counts: map[string]int64{}}
}

func (r *Recorder) push(level, id string, params []any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reports = append(r.reports, Report{Level: level, ID: id, Params: params})
}

func (r *Recorder) ReportBroken(id string, params ...any) {
	r.push("broken", id, params)
}

func (r *Recorder) ReportWarning(id string, params ...any) {
	r.push("warning", id, params)
}

func (r *Recorder) ReportDebug(msg string, params ...any) {}

func (r *Recorder) ReportCount(id string, count int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.counts[id] = count
}

// Reports returns every broken/warning report whose id contains substr.
func (r *Recorder) Reports(substr string) []Report {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Report
	for _, rep := range r.reports {
		if strings.Contains(rep.ID, substr) {
			out = append(out, rep)
		}
	}
	return out
}

func (r *Recorder) Count(id string) int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.counts[id]
}
