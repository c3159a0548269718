// Package queue defines the write-behind persistence task: a successful
// transform is enqueued here and a worker writes the bytes to the object
// store so later identical requests can be served as a cache hit.
package queue

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
)

const TypeStoreResult = "image:store_result"

// StoreResultPayload carries one transformed output to the worker.
type StoreResultPayload struct {
	CacheKey    string    `json:"cache_key"`
	ObjectURI   string    `json:"object_uri"`
	Instruction string    `json:"instruction"`
	ContentType string    `json:"content_type"`
	Bytes       []byte    `json:"bytes"`
	ProducedAt  time.Time `json:"produced_at"`
}

// CacheKey derives the object-store key a transformed result is persisted
// under. Identical (objectURI, instruction) pairs always map to the same
// key.
func CacheKey(objectURI, instruction string) string {
	sum := sha256.Sum256([]byte(objectURI + "\n" + instruction))
	return "cache/" + hex.EncodeToString(sum[:])
}

func NewStoreResultTask(payload StoreResultPayload) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal store-result payload: %w", err)
	}
	return asynq.NewTask(TypeStoreResult, body), nil
}

func ParseStoreResultPayload(task *asynq.Task) (StoreResultPayload, error) {
	var payload StoreResultPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return StoreResultPayload{}, fmt.Errorf("unmarshal store-result payload: %w", err)
	}
	return payload, nil
}
