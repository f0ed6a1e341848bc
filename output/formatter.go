// Package output prints what fleet commands did, as styled text for people or
// as JSON for scripts.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"time"

	"fleet-admin/coordinator"
	"fleet-admin/fleet"
)

// Formatter handles result output formatting
type Formatter struct {
	jsonOutput bool
	w          io.Writer
	st         styles
}

// NewFormatter creates a new output formatter writing to w
func NewFormatter(jsonOutput bool, w io.Writer) *Formatter {
	return &Formatter{
		jsonOutput: jsonOutput,
		w:          w,
		st:         newStyles(w),
	}
}

// ReplicaStatus groups the partition states of one replica
type ReplicaStatus struct {
	Replica    int                       `json:"replica"`
	Partitions []coordinator.StatusEntry `json:"partitions"`
}

// GroupByReplica groups entries by replica, keeping their order
func GroupByReplica(entries []coordinator.StatusEntry) []ReplicaStatus {
	var groups []ReplicaStatus
	for _, e := range entries {
		if len(groups) == 0 || groups[len(groups)-1].Replica != e.Replica {
			groups = append(groups, ReplicaStatus{Replica: e.Replica})
		}
		last := &groups[len(groups)-1]
		last.Partitions = append(last.Partitions, e)
	}
	return groups
}

// OutputStatus prints the state of every partition, grouped by replica
func (f *Formatter) OutputStatus(entries []coordinator.StatusEntry) error {
	groups := GroupByReplica(entries)
	if f.jsonOutput {
		return f.outputJSON(map[string]interface{}{"replicas": groups})
	}

	for _, g := range groups {
		fmt.Fprintln(f.w, f.st.title.Render(fmt.Sprintf("Replica %d:", g.Replica)))
		for _, e := range g.Partitions {
			fmt.Fprintf(f.w, "\tPartition %d (%s): %s\n", e.Partition, e.Address, f.statusString(e.Status))
		}
	}
	return nil
}

func (f *Formatter) statusString(status string) string {
	switch status {
	case "running":
		return f.st.success.Render(status)
	case coordinator.StatusUnreachable, coordinator.StatusUnknown:
		return f.st.err.Render(status)
	case coordinator.StatusNotStarted:
		return f.st.subtle.Render(status)
	default:
		return f.st.warn.Render(status)
	}
}

// OutputResults prints the summary of one fan-out command
func (f *Formatter) OutputResults(command string, results []fleet.Result, totalDuration time.Duration) error {
	s := Summarize(command, results, totalDuration)
	if f.jsonOutput {
		return f.outputJSON(s)
	}
	f.outputSummary(s)
	return nil
}

// OutputBenchmark prints the summary of a benchmark run
func (f *Formatter) OutputBenchmark(res *coordinator.BenchmarkResult, totalDuration time.Duration) error {
	s := Summarize("benchmark", res.Results(), totalDuration)
	if f.jsonOutput {
		return f.outputJSON(map[string]interface{}{
			"tag":     res.Tag,
			"out_dir": res.OutDir,
			"summary": s,
		})
	}

	fmt.Fprintf(f.w, "%s %s\n", f.st.label.Render("Tag:"), res.Tag)
	fmt.Fprintf(f.w, "%s %s\n", f.st.label.Render("Output:"), res.OutDir)
	if res.Summary != nil && res.Summary.Plan != nil {
		fmt.Fprintf(f.w, "%s %d of %d\n", f.st.label.Render("Steps:"), res.Summary.StepsDone, len(res.Summary.Plan.Steps))
		fmt.Fprintf(f.w, "%s %d\n", f.st.label.Render("Clients launched:"), len(res.Summary.Launched))
	}
	f.outputSummary(s)
	return nil
}

func (f *Formatter) outputSummary(s *Summary) {
	fmt.Fprintf(f.w, "\n%s\n", f.st.title.Render(fmt.Sprintf("=== %s ===", s.Command)))
	fmt.Fprintf(f.w, "Total Duration: %v\n", s.Duration.Round(time.Millisecond))
	fmt.Fprintf(f.w, "Targets: %d\n", s.Total)
	fmt.Fprintf(f.w, "Succeeded: %s\n", f.st.value.Render(fmt.Sprint(s.Succeeded)))

	failed := fmt.Sprint(s.Failed)
	if s.Failed > 0 {
		failed = f.st.err.Render(failed)
	}
	fmt.Fprintf(f.w, "Failed: %s\n", failed)

	kinds := make([]string, 0, len(s.ByKind))
	for k := range s.ByKind {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	for _, k := range kinds {
		fmt.Fprintf(f.w, "  %s: %d\n", k, s.ByKind[k])
	}

	if s.Latency != nil {
		fmt.Fprintf(f.w, "%s p50=%v p90=%v p99=%v max=%v\n", f.st.label.Render("Latency:"),
			s.Latency.P50, s.Latency.P90, s.Latency.P99, s.Latency.Max)
	}

	for _, fl := range s.Failures {
		fmt.Fprintf(f.w, "  %s %s (%s): %s\n", f.st.err.Render("✗"), fl.Target, fl.Kind, f.st.subtle.Render(fl.Error))
	}
}

// OutputInfo prints the facts collected from each host
func (f *Formatter) OutputInfo(res *coordinator.InfoResult) error {
	if f.jsonOutput {
		return f.outputJSON(res)
	}

	for _, r := range res.Reports {
		fmt.Fprintln(f.w, f.st.title.Render(r.Address))
		names := make([]string, 0, len(r.Modules))
		for name := range r.Modules {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			data, err := json.Marshal(r.Modules[name])
			if err != nil {
				return err
			}
			fmt.Fprintf(f.w, "  %s %s\n", f.st.label.Render(name+":"), data)
		}
	}
	for _, fl := range res.Failed {
		fmt.Fprintf(f.w, "%s %s: %v\n", f.st.err.Render("✗"), fl.Target.Address, fl.Err)
	}
	return nil
}

func (f *Formatter) outputJSON(v interface{}) error {
	encoder := json.NewEncoder(f.w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}
