package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestWriteBackFor(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	wb, ok := WriteBackFor(Sent("id-1"), now)
	assert.True(t, ok)
	assert.Equal(t, WriteBack{Sent: true, SentAt: now}, wb)
	assert.Empty(t, wb.Error)

	wb, ok = WriteBackFor(Failed(errors.New("boom")), now)
	assert.True(t, ok)
	assert.Equal(t, WriteBack{Sent: false, Error: "boom"}, wb)

	for _, o := range []DispatchOutcome{
		Pending(),
		Skipped(SkipReasonAlreadyDispatched),
		Skipped(SkipReasonMissingTarget),
		Skipped(SkipReasonInFlight),
	} {
		_, ok := WriteBackFor(o, now)
		assert.False(t, ok, o.Label())
	}
}

func TestDispatchOutcome_Label(t *testing.T) {
	assert.Equal(t, "sent", Sent("x").Label())
	assert.Equal(t, "failed", Failed(errors.New("x")).Label())
	assert.Equal(t, "skipped_missing-target", Skipped(SkipReasonMissingTarget).Label())
}
