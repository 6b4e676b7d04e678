package media

import "github.com/pion/webrtc/v4"

type queueState int

const (
	queueBuffering queueState = iota
	queueDrained
)

// candidateQueue holds remote candidates until both session descriptions
// are set. It drains once; afterwards candidates bypass it.
type candidateQueue struct {
	state   queueState
	pending []webrtc.ICECandidateInit
}

// push buffers the candidate and reports whether it was buffered.
func (q *candidateQueue) push(c webrtc.ICECandidateInit) bool {
	if q.state == queueDrained {
		return false
	}
	q.pending = append(q.pending, c)
	return true
}

// drain returns the buffered candidates in arrival order. Only the first call
// returns candidates.
func (q *candidateQueue) drain() []webrtc.ICECandidateInit {
	if q.state == queueDrained {
		return nil
	}
	q.state = queueDrained
	pending := q.pending
	q.pending = nil
	return pending
}
