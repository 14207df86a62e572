package models

import "math"

// JobStats is the aggregate returned by GET /api/v1/jobs/stats.
// Averages are nil when no job contributes a value, matching SQL AVG over NULLs.
type JobStats struct {
	Total             int      `json:"total"`
	Successful        int      `json:"successful"`
	Failed            int      `json:"failed"`
	Pending           int      `json:"pending"`
	Processing        int      `json:"processing"`
	Completed         int      `json:"completed"`
	AvgConfidence     *float64 `json:"avg_confidence"`
	AvgProcessingTime *float64 `json:"avg_processing_time"`
}

// RoundStat rounds an average to three decimals so backends agree despite
// floating point summation order.
func RoundStat(v *float64) *float64 {
	if v == nil {
		return nil
	}
	r := math.Round(*v*1000) / 1000
	return &r
}

// ComputeStats aggregates jobs in memory with the same rules the SQL backend uses.
func ComputeStats(jobs []*Job) *JobStats {
	stats := &JobStats{}
	var confSum, confN int
	var timeSum float64
	var timeN int
	for _, j := range jobs {
		stats.Total++
		if j.Success {
			stats.Successful++
		}
		switch j.Status {
		case JobStatusPending:
			stats.Pending++
		case JobStatusProcessing:
			stats.Processing++
		case JobStatusCompleted:
			stats.Completed++
		case JobStatusFailed:
			stats.Failed++
		}
		if j.ConfidenceScore != nil {
			confSum += *j.ConfidenceScore
			confN++
		}
		if j.ProcessingTimeSeconds != nil {
			timeSum += *j.ProcessingTimeSeconds
			timeN++
		}
	}
	if confN > 0 {
		avg := float64(confSum) / float64(confN)
		stats.AvgConfidence = RoundStat(&avg)
	}
	if timeN > 0 {
		avg := timeSum / float64(timeN)
		stats.AvgProcessingTime = RoundStat(&avg)
	}
	return stats
}
