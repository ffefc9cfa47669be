package model

// VersionedRecord captures schema and codec evolution for persistent data.
type VersionedRecord struct {
	SchemaVersion int `json:"schema_version"`
	CodecVersion  int `json:"codec_version"`
}

// ArmStats is the learned state of one (bucket, variant) pair.
type ArmStats struct {
	Variant    int     `json:"variant"`
	Pulls      uint64  `json:"pulls"`
	MeanReward float64 `json:"mean_reward"`
}

// BucketStats groups the arms observed in one input-size bucket.
type BucketStats struct {
	Bucket int        `json:"bucket"`
	Arms   []ArmStats `json:"arms"`
}

// OptimizerModel is the durable snapshot of a contextual bandit: every
// bucket's arm statistics plus the fixed configuration the scores depend
// on. It reconstructs select/update behavior exactly on load.
type OptimizerModel struct {
	VersionedRecord
	Exploration float64       `json:"exploration"`
	Buckets     []BucketStats `json:"buckets"`
}
