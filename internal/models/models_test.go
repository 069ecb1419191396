package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTranscriptStatusTerminal(t *testing.T) {
	tests := []struct {
		status   TranscriptStatus
		terminal bool
		inFlight bool
	}{
		{TranscriptPending, false, true},
		{TranscriptProcessing, false, true},
		{TranscriptCompleted, true, false},
		{TranscriptCompletedEmpty, true, false},
		{TranscriptFailed, true, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			assert.Equal(t, tt.terminal, tt.status.IsTerminal())
			assert.Equal(t, tt.inFlight, tt.status.InFlight())
		})
	}
}

func TestParseTranscriptStatus(t *testing.T) {
	st, ok := ParseTranscriptStatus(" Completed_Empty ")
	require.True(t, ok)
	assert.Equal(t, TranscriptCompletedEmpty, st)

	_, ok = ParseTranscriptStatus("done")
	assert.False(t, ok)
}

func TestTestimonyBeforeCreateClearsDerivedFields(t *testing.T) {
	text := "transcript"
	promptID := uint(3)
	tm := &Testimony{
		TranscriptStatus: TranscriptPending,
		Transcript:       &text,
		Summary:          &text,
		SummaryPromptID:  &promptID,
	}

	require.NoError(t, tm.BeforeCreate(nil))
	assert.Nil(t, tm.Transcript)
	assert.Nil(t, tm.Summary)
	assert.Nil(t, tm.SummaryPromptID)
	assert.NotNil(t, tm.Tags)
}

func TestTestimonyTextHelpers(t *testing.T) {
	tm := &Testimony{}
	assert.False(t, tm.HasTranscript())
	assert.Equal(t, "", tm.SummaryText())

	blank := "   "
	tm.Transcript = &blank
	assert.False(t, tm.HasTranscript())

	body := "Gloria a Dios"
	tm.Transcript = &body
	tm.Summary = &body
	assert.True(t, tm.HasTranscript())
	assert.True(t, tm.HasSummary())
	assert.Equal(t, body, tm.TranscriptText())
}

func TestJobPollState(t *testing.T) {
	tests := []struct {
		status JobStatus
		want   PollState
	}{
		{JobStatusPending, PollPending},
		{JobStatusProcessing, PollStarted},
		{JobStatusRetrying, PollRetry},
		{JobStatusCompleted, PollSuccess},
		{JobStatusFailed, PollFailure},
	}

	for _, tt := range tests {
		job := &Job{Status: tt.status}
		assert.Equal(t, tt.want, job.PollState(), tt.status)
	}
}

func TestJobPayloadRoundTripThroughDriver(t *testing.T) {
	p := JobPayload{PayloadTestimonyID: 12, PayloadAudioURL: "file:///tmp/a.mp3"}
	v, err := p.Value()
	require.NoError(t, err)

	var back JobPayload
	require.NoError(t, back.Scan(v))

	job := &Job{Payload: back}
	id, ok := job.GetPayloadUint(PayloadTestimonyID)
	require.True(t, ok)
	assert.Equal(t, uint(12), id)

	url, ok := job.GetPayloadString(PayloadAudioURL)
	require.True(t, ok)
	assert.Equal(t, "file:///tmp/a.mp3", url)
}

func TestJobPayloadScanRejectsUnknownType(t *testing.T) {
	var p JobPayload
	assert.Error(t, p.Scan(42))
	assert.NoError(t, p.Scan(nil))
}

func TestGetPayloadUintRejectsNegativeAndFractional(t *testing.T) {
	job := &Job{Payload: JobPayload{"a": float64(-1), "b": 1.5, "c": "7"}}
	_, ok := job.GetPayloadUint("a")
	assert.False(t, ok)
	_, ok = job.GetPayloadUint("b")
	assert.False(t, ok)
	_, ok = job.GetPayloadUint("c")
	assert.False(t, ok)
}

func TestStructuredJobErrorUnwraps(t *testing.T) {
	base := assert.AnError
	err := NewJobError(ErrorTypeTransient, "rate_limit", "provider rate limited", base)
	assert.ErrorIs(t, err, base)
	assert.Equal(t, base.Error(), err.Details)
}
