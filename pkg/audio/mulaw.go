// Package audio provides the telephony audio transcoder: G.711 μ-law
// encode/decode, sample-rate conversion, WAV file handling, and playback
// frame chunking.
//
// Inbound call audio arrives as 8 kHz 8-bit μ-law mono; speech recognition
// wants 16 kHz 16-bit PCM, and synthesis providers return 16 kHz or 24 kHz
// PCM that must go back out as 8 kHz μ-law. All PCM in this package is
// little-endian signed 16-bit mono.
package audio

// μ-law constants per ITU-T G.711.
const (
	mulawBias = 0x84
	mulawClip = 32635
)

// DecodeMulaw converts 8-bit μ-law samples to 16-bit little-endian PCM.
// The output is exactly twice the length of the input.
func DecodeMulaw(in []byte) []byte {
	out := make([]byte, len(in)*2)
	for i, b := range in {
		s := decodeMulawSample(b)
		out[i*2] = byte(s)
		out[i*2+1] = byte(s >> 8)
	}
	return out
}

// EncodeMulaw converts 16-bit little-endian PCM to 8-bit μ-law samples.
// A trailing odd byte is ignored.
func EncodeMulaw(pcm []byte) []byte {
	out := make([]byte, len(pcm)/2)
	for i := range out {
		s := int16(pcm[i*2]) | int16(pcm[i*2+1])<<8
		out[i] = encodeMulawSample(s)
	}
	return out
}

func decodeMulawSample(b byte) int16 {
	b = ^b
	sign := int16(b & 0x80)
	exponent := (b >> 4) & 0x07
	mantissa := b & 0x0F
	sample := (int16(mantissa)<<3 + mulawBias) << exponent
	sample -= mulawBias
	if sign != 0 {
		return -sample
	}
	return sample
}

func encodeMulawSample(s int16) byte {
	sign := byte(0)
	sample := int32(s)
	if sample < 0 {
		sign = 0x80
		sample = -sample
	}
	if sample > mulawClip {
		sample = mulawClip
	}
	sample += mulawBias

	exponent := byte(7)
	for mask := int32(0x4000); exponent > 0 && sample&mask == 0; mask >>= 1 {
		exponent--
	}
	mantissa := byte((sample >> (exponent + 3)) & 0x0F)
	return ^(sign | exponent<<4 | mantissa)
}

// MulawSilence returns n bytes of μ-law silence (0xFF is the μ-law encoding
// of zero amplitude).
func MulawSilence(n int) []byte {
	out := make([]byte, n)
	for i := range out {
		out[i] = 0xFF
	}
	return out
}
