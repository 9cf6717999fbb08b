package audio

import (
	"bytes"
	"testing"
)

func TestDecodeMulaw_Silence(t *testing.T) {
	pcm := DecodeMulaw([]byte{0xFF, 0xFF})
	if len(pcm) != 4 {
		t.Fatalf("len = %d, want 4", len(pcm))
	}
	for i, b := range pcm {
		if b != 0 {
			t.Errorf("pcm[%d] = %#x, want 0 (μ-law 0xFF is silence)", i, b)
		}
	}
}

func TestEncodeDecodeMulaw_RoundTripSign(t *testing.T) {
	// μ-law is lossy, but sign and rough magnitude must survive a round trip.
	cases := []int16{0, 100, -100, 1000, -1000, 8000, -8000, 30000, -30000}
	for _, want := range cases {
		b := encodeMulawSample(want)
		got := decodeMulawSample(b)
		if (want > 0 && got < 0) || (want < 0 && got > 0) {
			t.Errorf("sample %d: sign flipped to %d", want, got)
		}
		diff := int32(got) - int32(want)
		if diff < 0 {
			diff = -diff
		}
		// Quantisation error grows with magnitude; 1/8 of full scale is a
		// generous bound that still catches table/shift bugs.
		if diff > 4096 {
			t.Errorf("sample %d: decoded %d, error %d too large", want, got, diff)
		}
	}
}

func TestEncodeMulaw_HalvesLength(t *testing.T) {
	pcm := make([]byte, 320)
	if got := len(EncodeMulaw(pcm)); got != 160 {
		t.Errorf("len = %d, want 160", got)
	}
}

func TestMulawSilence(t *testing.T) {
	if !bytes.Equal(MulawSilence(3), []byte{0xFF, 0xFF, 0xFF}) {
		t.Error("MulawSilence should be all 0xFF")
	}
}

func TestResampleMono16_DoublesSamples(t *testing.T) {
	in := make([]byte, 160*2) // 160 samples at 8kHz = 20ms
	out := ResampleMono16(in, 8000, 16000)
	if len(out) != 320*2 {
		t.Errorf("len = %d, want %d", len(out), 320*2)
	}
}

func TestResampleMono16_SameRateUnchanged(t *testing.T) {
	in := []byte{1, 2, 3, 4}
	out := ResampleMono16(in, 8000, 8000)
	if !bytes.Equal(in, out) {
		t.Error("same-rate resample should return input unchanged")
	}
}

func TestFrames(t *testing.T) {
	buf := make([]byte, 410)
	frames := Frames(buf, TelephonyFrameBytes)
	if len(frames) != 3 {
		t.Fatalf("frames = %d, want 3", len(frames))
	}
	if len(frames[0]) != 160 || len(frames[1]) != 160 || len(frames[2]) != 90 {
		t.Errorf("frame sizes = %d/%d/%d, want 160/160/90",
			len(frames[0]), len(frames[1]), len(frames[2]))
	}
	if Frames(nil, 160) != nil {
		t.Error("nil buf should yield no frames")
	}
}

func TestWAVHeader(t *testing.T) {
	h := WAVHeader(320, 16000)
	if len(h) != wavHeaderSize {
		t.Fatalf("header len = %d, want %d", len(h), wavHeaderSize)
	}
	if string(h[0:4]) != "RIFF" || string(h[8:12]) != "WAVE" {
		t.Error("missing RIFF/WAVE magic")
	}
}

func TestStripWAVHeader(t *testing.T) {
	pcm := []byte{1, 2, 3, 4}
	wav := append(WAVHeader(len(pcm), 16000), pcm...)
	if !bytes.Equal(StripWAVHeader(wav), pcm) {
		t.Error("StripWAVHeader did not return the PCM payload")
	}
	raw := []byte{9, 8, 7}
	if !bytes.Equal(StripWAVHeader(raw), raw) {
		t.Error("non-WAV buffer should pass through unchanged")
	}
}
