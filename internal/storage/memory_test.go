package storage

import (
	"context"
	"testing"

	"nanoforge/internal/model"
)

func TestMemoryStoreModelRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	if err := store.Init(ctx); err != nil {
		t.Fatalf("init: %v", err)
	}

	input := model.OptimizerModel{
		Exploration: 1.5,
		Buckets: []model.BucketStats{{
			Bucket: 5,
			Arms:   []model.ArmStats{{Variant: 1, Pulls: 3, MeanReward: 0.7}},
		}},
	}
	if err := store.SaveModel(ctx, "default", input); err != nil {
		t.Fatalf("save model: %v", err)
	}

	output, ok, err := store.GetModel(ctx, "default")
	if err != nil {
		t.Fatalf("get model: %v", err)
	}
	if !ok {
		t.Fatal("expected persisted model")
	}
	if output.Exploration != input.Exploration {
		t.Fatalf("unexpected exploration: %v", output.Exploration)
	}
	if len(output.Buckets) != 1 || output.Buckets[0].Arms[0].Pulls != 3 {
		t.Fatalf("unexpected model: %+v", output)
	}
}

func TestMemoryStoreMissingModel(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	if err := store.Init(ctx); err != nil {
		t.Fatalf("init: %v", err)
	}

	_, ok, err := store.GetModel(ctx, "missing")
	if err != nil {
		t.Fatalf("get model: %v", err)
	}
	if ok {
		t.Fatal("missing model reported present")
	}
}

func TestMemoryStoreOverwrite(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	if err := store.Init(ctx); err != nil {
		t.Fatalf("init: %v", err)
	}

	first := model.OptimizerModel{Exploration: 1.0}
	second := model.OptimizerModel{Exploration: 2.5}
	if err := store.SaveModel(ctx, "default", first); err != nil {
		t.Fatalf("save first: %v", err)
	}
	if err := store.SaveModel(ctx, "default", second); err != nil {
		t.Fatalf("save second: %v", err)
	}

	output, ok, err := store.GetModel(ctx, "default")
	if err != nil || !ok {
		t.Fatalf("get model: ok=%v err=%v", ok, err)
	}
	if output.Exploration != 2.5 {
		t.Fatalf("overwrite lost: %v", output.Exploration)
	}
}

func TestNewStoreRejectsUnknownKind(t *testing.T) {
	if _, err := NewStore("etcd", ""); err == nil {
		t.Fatal("expected error for unknown backend")
	}
}
