package main

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRunBenchmark(t *testing.T) {
	q := func(r *rand.Rand) int {
		time.Sleep(time.Duration(r.Intn(100)) * time.Microsecond)
		return 2
	}

	result := runBenchmark("test", q, 200, 4)
	assert.Equal(t, "test", result.QueryType)
	assert.Equal(t, 200, result.TotalQueries)
	assert.Equal(t, int64(400), result.TotalResults)
	assert.Equal(t, 2.0, result.AvgResults)
	assert.LessOrEqual(t, result.MinDuration, result.AvgDuration)
	assert.LessOrEqual(t, result.AvgDuration, result.MaxDuration)
	assert.LessOrEqual(t, result.P99Duration, result.MaxDuration)
	assert.Positive(t, result.QueriesPerSec)
}

func TestRunBenchmarkEmpty(t *testing.T) {
	result := runBenchmark("empty", func(r *rand.Rand) int { return 1 }, 0, 0)
	assert.Equal(t, 0, result.TotalQueries)
	assert.Zero(t, result.AvgResults)
}
