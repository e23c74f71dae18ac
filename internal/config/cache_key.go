package config

import (
	"fmt"
)

type CacheKeyStruct struct{}

func NewCacheKeyStruct() *CacheKeyStruct {
	return &CacheKeyStruct{}
}

// ExamQuestionsKey holds the candidate-facing question payload (no answers).
func (r *CacheKeyStruct) ExamQuestionsKey(examID string) string {
	return fmt.Sprintf("exam:%s:questions", examID)
}

// ExamAnswerKey holds the question id -> correct option hash.
func (r *CacheKeyStruct) ExamAnswerKey(examID string) string {
	return fmt.Sprintf("exam:%s:key", examID)
}

// AssignmentKey caches the assignment resolved from a candidate token.
func (r *CacheKeyStruct) AssignmentKey(token string) string {
	return fmt.Sprintf("assignment:%s", token)
}

// AssignmentSubmittedKey is the at-most-once submission guard.
func (r *CacheKeyStruct) AssignmentSubmittedKey(token string) string {
	return fmt.Sprintf("assignment:%s:submitted", token)
}

// AssignmentReloadKey flags a page unload so the next attach auto-submits.
func (r *CacheKeyStruct) AssignmentReloadKey(token string) string {
	return fmt.Sprintf("assignment:%s:reload", token)
}

// NotificationUnreadKey counts unread notifications for an admin.
func (r *CacheKeyStruct) NotificationUnreadKey(adminID int) string {
	return fmt.Sprintf("notifications:%d:unread", adminID)
}

// NotificationChannel is the Redis PubSub channel for an admin's notifications.
func (r *CacheKeyStruct) NotificationChannel(adminID int) string {
	return fmt.Sprintf("notifications:%d", adminID)
}

// AdminRevokedKey marks a signed-out admin token by its JWT id.
func (r *CacheKeyStruct) AdminRevokedKey(jti string) string {
	return fmt.Sprintf("admin:revoked:%s", jti)
}

var CacheKey = NewCacheKeyStruct()
