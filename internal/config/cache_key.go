package config

import (
	"fmt"
)

type CacheKeyStruct struct{}

func NewCacheKeyStruct() *CacheKeyStruct {
	return &CacheKeyStruct{}
}

// RegradeLockKey returns the key of the lock serializing regrade batches of a quiz
func (r *CacheKeyStruct) RegradeLockKey(quizID int64) string {
	return fmt.Sprintf("quiz:%d:regrade:lock", quizID)
}

// RegradeProgressChannel returns the Redis PubSub channel carrying a quiz's regrade progress
func (r *CacheKeyStruct) RegradeProgressChannel(quizID int64) string {
	return fmt.Sprintf("quiz:%d:regrade:progress", quizID)
}

// RegradeRunKey returns the key of a regrade run's status record
func (r *CacheKeyStruct) RegradeRunKey(runID string) string {
	return fmt.Sprintf("regrade:run:%s", runID)
}

// QuizLatestRunKey returns the key holding the id of the most recent run of a quiz
func (r *CacheKeyStruct) QuizLatestRunKey(quizID int64) string {
	return fmt.Sprintf("quiz:%d:regrade:latest_run", quizID)
}

var CacheKey = NewCacheKeyStruct()
