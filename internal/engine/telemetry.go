package engine

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"hash"
	"math"
)

// subscriberBuffer is the number of ticks a slow subscriber may fall behind
// before ticks are dropped for it.
const subscriberBuffer = 16

// retain appends logs to the history, trimming to the log limit.
// Callers hold s.mu.
func (s *System) retain(logs []DecisionLog) {
	s.logs = append(s.logs, logs...)
	if s.logLimit > 0 && len(s.logs) > s.logLimit {
		drop := len(s.logs) - s.logLimit
		s.logs = append(s.logs[:0:0], s.logs[drop:]...)
	}
}

// Logs returns a copy of the retained decision history, oldest first.
func (s *System) Logs() []DecisionLog {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]DecisionLog(nil), s.logs...)
}

// ClearLogs drops the retained history. World state is untouched.
func (s *System) ClearLogs() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logs = nil
}

// Subscribe returns a channel that receives every subsequent tick's logs.
// Sends never block the tick; a subscriber that falls behind misses ticks.
func (s *System) Subscribe() (int, <-chan []DecisionLog) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	id := s.nextSub
	s.nextSub++
	ch := make(chan []DecisionLog, subscriberBuffer)
	s.subs[id] = ch
	return id, ch
}

// Unsubscribe closes and removes a subscription.
func (s *System) Unsubscribe(id int) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	if ch, ok := s.subs[id]; ok {
		close(ch)
		delete(s.subs, id)
	}
}

func (s *System) publish(logs []DecisionLog) {
	if len(logs) == 0 {
		return
	}
	s.subMu.Lock()
	defer s.subMu.Unlock()
	for id, ch := range s.subs {
		select {
		case ch <- logs:
		default:
			s.log.Warn("subscriber lagging, tick dropped", "sub_id", id, "tick", logs[0].Tick)
		}
	}
}

// Digest is a hex SHA-256 over every field of logs in order. Two runs fed
// the same setup and tick count produce the same digest.
func Digest(logs []DecisionLog) string {
	h := sha256.New()
	var tmp [8]byte
	for _, l := range logs {
		digestU64(h, &tmp, l.Tick)
		digestU64(h, &tmp, uint64(l.CountryID))
		digestString(h, &tmp, l.Action)
		digestF64(h, &tmp, l.Score)
		c := l.Components
		for _, v := range [...]float64{c.DeltaRes, c.DeltaSec, c.DeltaGrowth, c.DeltaPos, c.Cost, c.Risk} {
			digestF64(h, &tmp, v)
		}
		w := l.Weights
		for _, v := range [...]int{w.Alpha, w.Beta, w.Gamma, w.Delta, w.Kappa, w.Rho} {
			digestU64(h, &tmp, uint64(v))
		}
		digestU64(h, &tmp, uint64(len(l.Rejected)))
		for _, r := range l.Rejected {
			digestString(h, &tmp, r.Action)
			digestF64(h, &tmp, r.Score)
		}
	}
	return hex.EncodeToString(h.Sum(nil))
}

func digestU64(h hash.Hash, tmp *[8]byte, v uint64) {
	binary.LittleEndian.PutUint64(tmp[:], v)
	h.Write(tmp[:])
}

func digestF64(h hash.Hash, tmp *[8]byte, v float64) {
	digestU64(h, tmp, math.Float64bits(v))
}

func digestString(h hash.Hash, tmp *[8]byte, s string) {
	digestU64(h, tmp, uint64(len(s)))
	h.Write([]byte(s))
}
