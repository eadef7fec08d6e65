// File: stats/delta.go
// Author: momentics <momentics@gmail.com>

package stats

// wrapThreshold is 2^63: a larger forward distance means the counter rolled over.
const wrapThreshold = uint64(1) << 63

// Delta returns the round-trip distance from recvd (the echoed send-time
// reading) to cur (the reading at receive). A naive difference above 2^63 is
// recomputed as the forward distance through the wrap point,
// recvd + ((2^64-1) - cur).
func Delta(recvd, cur uint64) uint64 {
	d := cur - recvd
	if d > wrapThreshold {
		d = recvd + (^uint64(0) - cur)
	}
	return d
}
