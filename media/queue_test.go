package media

import (
	"strconv"
	"testing"

	"github.com/pion/webrtc/v4"
	"github.com/stretchr/testify/assert"
)

func candidate(i int) webrtc.ICECandidateInit {
	return webrtc.ICECandidateInit{Candidate: "candidate:" + strconv.Itoa(i)}
}

func TestCandidateQueue(t *testing.T) {
	tests := []struct {
		name        string
		beforeDrain int
		afterDrain  int
	}{
		{name: "given no candidates when drained then return nothing", beforeDrain: 0, afterDrain: 2},
		{name: "given buffered candidates when drained then return them in order", beforeDrain: 3, afterDrain: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var q candidateQueue
			for i := 0; i < tt.beforeDrain; i++ {
				assert.True(t, q.push(candidate(i)))
			}

			drained := q.drain()
			assert.Len(t, drained, tt.beforeDrain)
			for i, c := range drained {
				assert.Equal(t, candidate(i), c)
			}

			for i := 0; i < tt.afterDrain; i++ {
				assert.False(t, q.push(candidate(i)))
			}
			assert.Nil(t, q.drain())
		})
	}
}

func TestWorkerRunsTasksInOrder(t *testing.T) {
	w := newWorker()

	var order []int
	for i := 0; i < 50; i++ {
		i := i
		assert.True(t, w.execute(func() { order = append(order, i) }))
	}
	lastRan := false
	assert.True(t, w.shutdown(func() { lastRan = true }))
	<-w.done

	assert.Len(t, order, 50)
	for i, v := range order {
		assert.Equal(t, i, v)
	}
	assert.True(t, lastRan)
	assert.False(t, w.execute(func() {}))
	assert.False(t, w.shutdown(nil))
	assert.ErrorIs(t, w.call(func() error { return nil }), ErrWorkerClosed)
}

func TestWorkerCallReturnsResult(t *testing.T) {
	w := newWorker()
	defer w.shutdown(nil)

	assert.NoError(t, w.call(func() error { return nil }))
	assert.ErrorIs(t, w.call(func() error { return ErrAlreadySetup }), ErrAlreadySetup)
}

func TestWorkerAcceptsTasksFromTasks(t *testing.T) {
	w := newWorker()
	done := make(chan struct{})
	w.execute(func() {
		w.execute(func() { close(done) })
	})
	<-done
	w.shutdown(nil)
	<-w.done
}
