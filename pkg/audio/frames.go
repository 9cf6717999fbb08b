package audio

// TelephonyFrameBytes is the size of one 20 ms playback frame of 8 kHz μ-law
// audio (8000 samples/s × 0.020 s × 1 byte). Replies are streamed back to the
// caller in frames of this size to avoid overrunning the gateway's playback
// buffer.
const TelephonyFrameBytes = 160

// Frames splits buf into chunks of at most size bytes, preserving order.
// The final chunk may be shorter. A nil or empty buf yields no chunks.
func Frames(buf []byte, size int) [][]byte {
	if size <= 0 || len(buf) == 0 {
		return nil
	}
	out := make([][]byte, 0, (len(buf)+size-1)/size)
	for len(buf) > size {
		out = append(out, buf[:size])
		buf = buf[size:]
	}
	out = append(out, buf)
	return out
}
