package bench

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"
)

const runIndexFile = "run_index.json"

// RunConfig records the knobs one benchmarking run was started with.
type RunConfig struct {
	RunID       string   `json:"run_id"`
	SourceHash  string   `json:"source_hash"`
	Sizes       []uint64 `json:"sizes"`
	Rounds      int      `json:"rounds"`
	Iters       int      `json:"iters"`
	Exploration float64  `json:"exploration"`
}

// RunArtifacts is everything a run leaves on disk: its configuration, the
// learned model, and the per-bucket winners.
type RunArtifacts struct {
	Config RunConfig
	Report Report
}

// RunIndexEntry is one line of the run index, enough to list runs without
// opening their directories.
type RunIndexEntry struct {
	RunID        string `json:"run_id"`
	SourceHash   string `json:"source_hash"`
	Rounds       int    `json:"rounds"`
	Buckets      int    `json:"buckets"`
	CreatedAtUTC string `json:"created_at_utc"`
}

// WriteRunArtifacts persists one run under baseDir/<run id> and returns the
// run directory.
func WriteRunArtifacts(baseDir string, artifacts RunArtifacts) (string, error) {
	if artifacts.Config.RunID == "" {
		return "", fmt.Errorf("run id is required")
	}

	runDir := filepath.Join(baseDir, artifacts.Config.RunID)
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return "", err
	}

	if err := writeJSON(filepath.Join(runDir, "config.json"), artifacts.Config); err != nil {
		return "", err
	}
	if err := writeJSON(filepath.Join(runDir, "model.json"), artifacts.Report.Model); err != nil {
		return "", err
	}
	if err := writeJSON(filepath.Join(runDir, "winners.json"), artifacts.Report.Winners); err != nil {
		return "", err
	}

	entry := RunIndexEntry{
		RunID:        artifacts.Config.RunID,
		SourceHash:   artifacts.Config.SourceHash,
		Rounds:       artifacts.Report.Rounds,
		Buckets:      len(artifacts.Report.Model.Buckets),
		CreatedAtUTC: time.Now().UTC().Format(time.RFC3339),
	}
	if err := appendRunIndex(baseDir, entry); err != nil {
		return "", err
	}
	return runDir, nil
}

func appendRunIndex(baseDir string, entry RunIndexEntry) error {
	index, err := ListRunIndex(baseDir)
	if err != nil {
		return err
	}
	for i := range index {
		if index[i].RunID == entry.RunID {
			index[i] = entry
			return writeJSON(filepath.Join(baseDir, runIndexFile), index)
		}
	}
	index = append(index, entry)
	return writeJSON(filepath.Join(baseDir, runIndexFile), index)
}

// ListRunIndex returns the recorded runs, newest first.
func ListRunIndex(baseDir string) ([]RunIndexEntry, error) {
	data, err := os.ReadFile(filepath.Join(baseDir, runIndexFile))
	if err != nil {
		if os.IsNotExist(err) {
			return []RunIndexEntry{}, nil
		}
		return nil, err
	}

	var entries []RunIndexEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, err
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].CreatedAtUTC > entries[j].CreatedAtUTC
	})
	return entries, nil
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}
