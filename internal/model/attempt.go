package model

import "time"

// AttemptRecord is the durable trace of one guest finishing (or having
// started) one exam. The JSON field names are the wire format of the
// persisted ledger namespace and must stay stable across releases.
type AttemptRecord struct {
	ExamID      string    `json:"examId"`
	Completed   bool      `json:"completed"`
	Score       *float64  `json:"score,omitempty"`
	QuestionIDs []string  `json:"questionIds"`
	CompletedAt time.Time `json:"completedAt"`
}

// LedgerNamespace maps a guest identity to its ordered attempt history.
// The whole namespace is serialized as one value in the key-value store;
// writers read-modify-write it in full so one guest's commit cannot drop
// another guest's records.
type LedgerNamespace map[string][]AttemptRecord
