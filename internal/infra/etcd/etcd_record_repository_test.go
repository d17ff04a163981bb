package etcd

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"taskchain-dispatcher/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyWriteBack_Sent(t *testing.T) {
	raw := []byte(`{"groupId":"g1","message":"Time!","sent":false,"error":"previous","custom":{"keep":true}}`)
	at := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

	out, err := applyWriteBack(raw, domain.WriteBack{Sent: true, SentAt: at})
	require.NoError(t, err)

	var fields map[string]any
	require.NoError(t, json.Unmarshal(out, &fields))
	assert.Equal(t, true, fields["sent"])
	assert.Equal(t, "2026-03-14T09:30:00Z", fields["sentAt"])
	assert.NotContains(t, fields, "error")
	assert.Equal(t, "Time!", fields["message"])
	assert.Equal(t, map[string]any{"keep": true}, fields["custom"])

	var doc domain.ReminderDocument
	require.NoError(t, json.Unmarshal(out, &doc))
	require.NotNil(t, doc.SentAt)
	assert.True(t, doc.SentAt.Equal(at))
}

func TestApplyWriteBack_Failed(t *testing.T) {
	raw := []byte(`{"groupId":"g1","sent":false}`)

	out, err := applyWriteBack(raw, domain.WriteBack{Error: "push provider returned 404 Not Found"})
	require.NoError(t, err)

	var doc domain.ReminderDocument
	require.NoError(t, json.Unmarshal(out, &doc))
	assert.False(t, doc.Sent)
	assert.Nil(t, doc.SentAt)
	assert.Equal(t, "push provider returned 404 Not Found", doc.Error)
	assert.Equal(t, "g1", doc.GroupID)
}

func TestApplyWriteBack_NotAnObject(t *testing.T) {
	_, err := applyWriteBack([]byte(`["not","an","object"]`), domain.WriteBack{Sent: true})
	assert.Error(t, err)
}

func TestPageBounds(t *testing.T) {
	tests := []struct {
		page, pageSize, total int
		start, end            int
	}{
		{page: 1, pageSize: 20, total: 5, start: 0, end: 5},
		{page: 2, pageSize: 2, total: 5, start: 2, end: 4},
		{page: 3, pageSize: 2, total: 5, start: 4, end: 5},
		{page: 4, pageSize: 2, total: 5, start: 5, end: 5},
		{page: 0, pageSize: 0, total: 3, start: 0, end: 1},
		{page: 184467440737095517, pageSize: 100, total: 3, start: 3, end: 3},
		{page: math.MaxInt, pageSize: math.MaxInt, total: 3, start: 3, end: 3},
		{page: 1, pageSize: math.MaxInt, total: 3, start: 0, end: 3},
		{page: 1, pageSize: 10, total: 0, start: 0, end: 0},
	}
	for _, tt := range tests {
		start, end := pageBounds(tt.page, tt.pageSize, tt.total)
		assert.Equal(t, tt.start, start, "%+v", tt)
		assert.Equal(t, tt.end, end, "%+v", tt)
	}
}
