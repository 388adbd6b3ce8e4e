// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package probe

import "time"

// Tier is a coarse classification of measured throughput.
type Tier string

const (
	TierFast    Tier = "fast"
	TierMedium  Tier = "medium"
	TierSlow    Tier = "slow"
	TierUnknown Tier = "unknown"
)

// Tier thresholds in MiB/s.
const (
	FastThreshold   = 4.0
	MediumThreshold = 2.0
)

// TierFor classifies a throughput in MiB/s.
func TierFor(mibps float64) Tier {
	switch {
	case mibps >= FastThreshold:
		return TierFast
	case mibps >= MediumThreshold:
		return TierMedium
	default:
		return TierSlow
	}
}

// Result is the outcome of one probe. A failed result never carries a
// throughput.
type Result struct {
	ThroughputMBps float64 `json:"throughputMBps"`
	Tier           Tier    `json:"tier"`
	Failed         bool    `json:"failed"`
	Reason         string  `json:"reason,omitempty"`
	Detail         string  `json:"detail,omitempty"`
	SampledURL     string  `json:"sampledUrl,omitempty"`
	Bytes          int64   `json:"bytes,omitempty"`
	ElapsedMS      int64   `json:"elapsedMs,omitempty"`
}

// Succeeded builds a successful result for bytes read in elapsed.
func Succeeded(bytes int64, elapsed time.Duration) (Result, error) {
	if bytes <= 0 || elapsed <= 0 {
		return Result{}, ErrInvalidSample
	}
	mibps := float64(bytes) / elapsed.Seconds() / (1024 * 1024)
	return Result{
		ThroughputMBps: mibps,
		Tier:           TierFor(mibps),
		Bytes:          bytes,
		ElapsedMS:      elapsed.Milliseconds(),
	}, nil
}

// Failure builds a failed result for err.
func Failure(err error) Result {
	r := Result{Tier: TierUnknown, Failed: true, Reason: ReasonFor(err)}
	if err != nil {
		r.Detail = err.Error()
	}
	return r
}
