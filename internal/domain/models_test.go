package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChangeRate(t *testing.T) {
	tests := []struct {
		name     string
		current  int64
		previous int64
		expected float64
	}{
		{name: "rise", current: 11000, previous: 10000, expected: 10},
		{name: "fall", current: 9000, previous: 10000, expected: -10},
		{name: "unchanged", current: 10000, previous: 10000, expected: 0},
		{name: "zero previous price", current: 5000, previous: 0, expected: 0},
		{name: "negative previous price", current: 5000, previous: -1, expected: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.expected, ChangeRate(tt.current, tt.previous), 1e-9)
		})
	}
}

func TestMarketSnapshot_Validate(t *testing.T) {
	ok := MarketSnapshot{Records: []StockRecord{
		NewStockRecord("005930", "삼성전자", 70000, 69000, 100),
		NewStockRecord("000660", "SK하이닉스", 150000, 140000, 100),
	}}
	require.NoError(t, ok.Validate())

	dup := MarketSnapshot{Records: []StockRecord{
		NewStockRecord("005930", "삼성전자", 70000, 69000, 100),
		NewStockRecord("005930", "삼성전자", 70000, 69000, 100),
	}}
	err := dup.Validate()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDuplicateTicker))

	assert.NoError(t, MarketSnapshot{}.Validate())
}

func TestMood_Label(t *testing.T) {
	assert.Equal(t, "강세", MoodStrongBull.Label())
	assert.Equal(t, "보합강세", MoodMildBull.Label())
	assert.Equal(t, "약세", MoodStrongBear.Label())
	assert.Equal(t, "보합약세", MoodMildBear.Label())
	assert.Equal(t, "보합", MoodFlat.Label())
}

func TestRound(t *testing.T) {
	assert.Equal(t, 10.0, Round(10.004, 2))
	assert.Equal(t, 10.01, Round(10.005001, 2))
	assert.Equal(t, 66.7, Round(66.6666, 1))
	assert.Equal(t, -3.33, Round(-3.3333, 2))
}

func TestNetBuying_Normalize(t *testing.T) {
	n := NetBuying{InvestorForeign: 120.5, "보험": 3}
	out := n.Normalize()

	assert.Equal(t, 120.5, out[InvestorForeign])
	assert.Equal(t, 3.0, out["보험"])
	for _, it := range StandardInvestorTypes {
		_, ok := out[it]
		assert.True(t, ok, "missing %s", it)
	}
	assert.Len(t, n, 2, "input must not be mutated")
}

func TestReportRun_Advance(t *testing.T) {
	run := &ReportRun{ID: "r1", Status: RunStatusPending}

	for _, next := range []RunStatus{RunStatusCollecting, RunStatusAnalyzing, RunStatusRendering, RunStatusCompleted} {
		require.NoError(t, run.Advance(next))
	}
	assert.Equal(t, RunStatusCompleted, run.Status)
	assert.Error(t, run.Advance(RunStatusFailed), "terminal runs cannot change")

	backwards := &ReportRun{ID: "r2", Status: RunStatusAnalyzing}
	assert.Error(t, backwards.Advance(RunStatusCollecting))

	failing := &ReportRun{ID: "r3", Status: RunStatusCollecting}
	require.NoError(t, failing.Advance(RunStatusFailed))
	assert.True(t, failing.Status.IsTerminal())
}

func TestGateRejection(t *testing.T) {
	var err error = &GateRejection{Date: "2024-06-08", Reason: "not a trading day"}
	wrapped := fmt.Errorf("trigger: %w", err)

	assert.True(t, IsGateRejection(wrapped))
	assert.False(t, IsGateRejection(ErrRunInProgress))
	assert.Contains(t, err.Error(), "not a trading day")
}
