package config

import (
	"fmt"
)

type CacheKeyStruct struct{}

func NewCacheKeyStruct() *CacheKeyStruct {
	return &CacheKeyStruct{}
}

// AttemptLedgerKey returns the single key holding the serialized attempt
// ledger namespace (guest id → attempt records).
func (r *CacheKeyStruct) AttemptLedgerKey() string {
	return "guest_exam:ledger"
}

// GuestIdentityKey returns the registration key for a guest identity.
func (r *CacheKeyStruct) GuestIdentityKey(guestID string) string {
	return fmt.Sprintf("guest_exam:identity:%s", guestID)
}

// ExamPayloadKey returns the cache key for a published exam's payload.
func (r *CacheKeyStruct) ExamPayloadKey(examID string) string {
	return fmt.Sprintf("exam:%s:payload", examID)
}

// ExamCatalogKey returns the cache key for the guest exam catalog.
func (r *CacheKeyStruct) ExamCatalogKey() string {
	return "exam:catalog"
}

// GuestAnswersKey returns the cache key for a guest's autosaved answers.
func (r *CacheKeyStruct) GuestAnswersKey(examID, guestID string) string {
	return fmt.Sprintf("guest:%s:exam:%s:answers", guestID, examID)
}

var CacheKey = NewCacheKeyStruct()
