package progress

import "time"

// sampleWindow is the minimum time between two speed updates. Progress
// callbacks fire many times per second and would make the number jump.
const sampleWindow = 500 * time.Millisecond

// SpeedSample keeps the last observation used to compute throughput.
// The transfer keeps one for downloads and one for uploads.
type SpeedSample struct {
	at    time.Time
	bytes int64
}

// Reset starts a new measurement at now with zero bytes.
func (s *SpeedSample) Reset(now time.Time) {
	s.at = now
	s.bytes = 0
}

// Observe records that current bytes have been transferred at now.
// It returns the new speed in bytes/sec and true when more than the
// sample window elapsed; otherwise the sample is left alone and ok is false.
// A clock going backwards is ignored the same way.
func (s *SpeedSample) Observe(current int64, now time.Time) (speed float64, ok bool) {
	elapsed := now.Sub(s.at)
	if elapsed <= sampleWindow {
		return 0, false
	}

	delta := current - s.bytes
	if delta > 0 {
		speed = float64(delta) / elapsed.Seconds()
	}

	s.at = now
	s.bytes = current
	return speed, true
}
