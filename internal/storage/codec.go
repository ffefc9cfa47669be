package storage

import (
	"encoding/json"
	"errors"

	"nanoforge/internal/model"
)

const (
	CurrentSchemaVersion = 1
	CurrentCodecVersion  = 1
)

var ErrVersionMismatch = errors.New("record version mismatch")

func EncodeModel(m model.OptimizerModel) ([]byte, error) {
	m.SchemaVersion = CurrentSchemaVersion
	m.CodecVersion = CurrentCodecVersion
	return json.Marshal(m)
}

func DecodeModel(data []byte) (model.OptimizerModel, error) {
	var m model.OptimizerModel
	if err := json.Unmarshal(data, &m); err != nil {
		return model.OptimizerModel{}, err
	}
	if err := checkVersion(m.VersionedRecord); err != nil {
		return model.OptimizerModel{}, err
	}
	return m, nil
}

func checkVersion(v model.VersionedRecord) error {
	if v.SchemaVersion != CurrentSchemaVersion || v.CodecVersion != CurrentCodecVersion {
		return ErrVersionMismatch
	}
	return nil
}
