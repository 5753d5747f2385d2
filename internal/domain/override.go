package domain

import "time"

// Override is a learned (owner, normalized label) -> category rule.
// It takes precedence over every other classification source.
type Override struct {
	Owner           string
	NormalizedLabel string
	Category        string
	Version         int64
	LearnedAt       time.Time
}
