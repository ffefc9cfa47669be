package storage

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"nanoforge/internal/model"
)

func sampleModel() model.OptimizerModel {
	return model.OptimizerModel{
		Exploration: 2.0,
		Buckets: []model.BucketStats{
			{Bucket: 3, Arms: []model.ArmStats{
				{Variant: 0, Pulls: 12, MeanReward: 0.8},
				{Variant: 2, Pulls: 4, MeanReward: 0.95},
			}},
			{Bucket: 11, Arms: []model.ArmStats{
				{Variant: 1, Pulls: 7, MeanReward: 0.5},
			}},
		},
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model.json")
	in := sampleModel()
	if err := SaveModel(path, in); err != nil {
		t.Fatalf("save: %v", err)
	}

	out, found, err := LoadModel(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !found {
		t.Fatal("expected persisted model")
	}
	if out.Exploration != in.Exploration {
		t.Fatalf("exploration = %v, want %v", out.Exploration, in.Exploration)
	}
	if len(out.Buckets) != 2 || len(out.Buckets[0].Arms) != 2 {
		t.Fatalf("unexpected buckets: %+v", out.Buckets)
	}
	if out.Buckets[0].Arms[1] != in.Buckets[0].Arms[1] {
		t.Fatalf("arm stats changed in round trip: %+v", out.Buckets[0].Arms[1])
	}
	if out.SchemaVersion != CurrentSchemaVersion || out.CodecVersion != CurrentCodecVersion {
		t.Fatalf("versions not stamped: %+v", out.VersionedRecord)
	}
}

func TestLoadMissingFileIsNotAnError(t *testing.T) {
	m, found, err := LoadModel(filepath.Join(t.TempDir(), "absent.json"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if found {
		t.Fatal("absent file reported found")
	}
	if len(m.Buckets) != 0 {
		t.Fatalf("absent file yielded non-empty model: %+v", m)
	}
}

func TestLoadCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	_, _, err := LoadModel(path)
	if !errors.Is(err, ErrCorruptModel) {
		t.Fatalf("expected ErrCorruptModel, got %v", err)
	}
}

func TestLoadVersionMismatchIsCorrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model.json")
	payload := []byte(`{"schema_version":99,"codec_version":1,"exploration":2,"buckets":[]}`)
	if err := os.WriteFile(path, payload, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	_, _, err := LoadModel(path)
	if !errors.Is(err, ErrCorruptModel) {
		t.Fatalf("expected ErrCorruptModel, got %v", err)
	}
}

func TestSaveOverwritesAtomically(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "model.json")
	if err := SaveModel(path, sampleModel()); err != nil {
		t.Fatalf("first save: %v", err)
	}
	second := sampleModel()
	second.Buckets = second.Buckets[:1]
	if err := SaveModel(path, second); err != nil {
		t.Fatalf("second save: %v", err)
	}

	out, _, err := LoadModel(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(out.Buckets) != 1 {
		t.Fatalf("bucket count = %d, want 1", len(out.Buckets))
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("readdir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("temp files left behind: %v", entries)
	}
}
