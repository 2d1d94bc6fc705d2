package repo

import (
	"encoding/json"
	"fmt"
)

func encodeVector(vec []float32) ([]byte, error) {
	blob, err := json.Marshal(vec)
	if err != nil {
		return nil, fmt.Errorf("encode embedding: %w", err)
	}
	return blob, nil
}

func decodeVector(blob []byte) ([]float32, error) {
	var vec []float32
	if err := json.Unmarshal(blob, &vec); err != nil {
		return nil, fmt.Errorf("decode embedding: %w", err)
	}
	return vec, nil
}
