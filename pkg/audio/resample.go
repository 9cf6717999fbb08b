package audio

// Sample rates on the two sides of the bridge.
const (
	// TelephonyRate is the narrowband rate on the media connection.
	TelephonyRate = 8000

	// RecognitionRate is what the speech-to-text providers expect.
	RecognitionRate = 16000
)

// ResampleMono16 resamples 16-bit mono PCM from srcRate to dstRate using
// linear interpolation. The input must be little-endian int16 samples.
// If srcRate == dstRate, the input is returned unchanged.
func ResampleMono16(pcm []byte, srcRate, dstRate int) []byte {
	if srcRate <= 0 || dstRate <= 0 {
		return pcm
	}
	if srcRate == dstRate || len(pcm) < 2 {
		return pcm
	}
	srcSamples := len(pcm) / 2
	dstSamples := int(int64(srcSamples) * int64(dstRate) / int64(srcRate))
	if dstSamples == 0 {
		return nil
	}

	out := make([]byte, dstSamples*2)
	ratio := float64(srcRate) / float64(dstRate)

	for i := range dstSamples {
		srcPos := float64(i) * ratio
		srcIdx := int(srcPos)
		frac := srcPos - float64(srcIdx)

		s0 := int16(pcm[srcIdx*2]) | int16(pcm[srcIdx*2+1])<<8
		var s1 int16
		if srcIdx+1 < srcSamples {
			s1 = int16(pcm[(srcIdx+1)*2]) | int16(pcm[(srcIdx+1)*2+1])<<8
		} else {
			s1 = s0
		}

		interpolated := int16(float64(s0)*(1-frac) + float64(s1)*frac)
		out[i*2] = byte(interpolated)
		out[i*2+1] = byte(interpolated >> 8)
	}
	return out
}

// TelephonyToRecognition converts an 8 kHz μ-law buffer into 16 kHz 16-bit
// PCM suitable for speech recognition.
func TelephonyToRecognition(mulaw []byte) []byte {
	return ResampleMono16(DecodeMulaw(mulaw), TelephonyRate, RecognitionRate)
}

// SynthesisToTelephony converts provider PCM at srcRate into 8 kHz μ-law for
// the media connection.
func SynthesisToTelephony(pcm []byte, srcRate int) []byte {
	return EncodeMulaw(ResampleMono16(pcm, srcRate, TelephonyRate))
}
