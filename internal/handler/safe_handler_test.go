package handler

import (
	"testing"
	"time"

	"safe-core/internal/state"
	"safe-core/pkg/safetx"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// 等待方和结果应用方并发时，不管结果在订阅前还是订阅后被应用，
// waitForSeq 都必须在超时之前看到它
func TestWaitForSeqDoesNotMissConcurrentApply(t *testing.T) {
	store := state.NewStore()
	h := NewSafeHandler(nil, store, nil, nil)

	tx := &safetx.Transaction{To: "0x1111", Value: "1", Data: "0x", Signatures: []safetx.Signature{}}

	var snap state.Snapshot
	var ok bool
	done := make(chan struct{})
	go func() {
		snap, ok = h.waitForSeq(1, 2*time.Second)
		close(done)
	}()

	store.ApplyParseResult(1, tx, nil)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("waitForSeq stalled although the result was already applied")
	}

	require.True(t, ok)
	assert.Equal(t, uint64(1), snap.ParseSeq)
	require.NotNil(t, snap.CurrentTx)
	assert.Equal(t, "0x1111", snap.CurrentTx.To)
}

// 已经被更新序号超越的等待立即返回，不吃满超时
func TestWaitForSeqSuperseded(t *testing.T) {
	store := state.NewStore()
	h := NewSafeHandler(nil, store, nil, nil)

	tx := &safetx.Transaction{To: "0x2222", Value: "2", Data: "0x", Signatures: []safetx.Signature{}}
	store.ApplyParseResult(2, tx, nil)

	start := time.Now()
	snap, ok := h.waitForSeq(1, 2*time.Second)
	assert.False(t, ok)
	assert.Equal(t, uint64(2), snap.ParseSeq)
	assert.Less(t, time.Since(start), time.Second, "superseded wait must return immediately")
}
