package call

import (
	"bytes"
	"testing"
)

func TestAudioFrameRoundTrip(t *testing.T) {
	cases := []struct {
		name     string
		metadata []byte
		pcm      []byte
	}{
		{"typical", []byte(`{"sampleRate":16000}`), []byte{1, 2, 3, 4, 5}},
		{"empty metadata", []byte{}, []byte{9, 9, 9}},
		{"empty audio", []byte(`{"end":true}`), []byte{}},
		{"both empty", []byte{}, []byte{}},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			frame := EncodeAudioFrame(c.metadata, c.pcm)
			meta, pcm, err := DecodeAudioFrame(frame)
			if err != nil {
				t.Fatalf("DecodeAudioFrame: %v", err)
			}
			if !bytes.Equal(meta, c.metadata) {
				t.Errorf("metadata = %q, want %q", meta, c.metadata)
			}
			if !bytes.Equal(pcm, c.pcm) {
				t.Errorf("pcm = %v, want %v", pcm, c.pcm)
			}
		})
	}
}

func TestDecodeAudioFrameMalformed(t *testing.T) {
	if _, _, err := DecodeAudioFrame([]byte{1, 2}); err == nil {
		t.Error("expected error for truncated header")
	}

	// Header claims more metadata than the frame holds.
	frame := []byte{0xFF, 0x00, 0x00, 0x00, 'a', 'b'}
	if _, _, err := DecodeAudioFrame(frame); err == nil {
		t.Error("expected error for oversized metadata length")
	}
}
