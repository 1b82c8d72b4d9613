package call

import (
	"encoding/binary"
	"fmt"
)

// Binary audio frames from the client use a fixed envelope:
// a 4-byte little-endian metadata length, that many bytes of UTF-8 JSON
// metadata, then raw PCM audio. The bridge only needs the boundary; the
// metadata itself is opaque to it.

const frameHeaderSize = 4

// DecodeAudioFrame splits a binary frame into its metadata and audio
// parts. Malformed envelopes are a protocol error.
func DecodeAudioFrame(data []byte) (metadata, pcm []byte, err error) {
	if len(data) < frameHeaderSize {
		return nil, nil, fmt.Errorf("audio frame too short: %d bytes", len(data))
	}
	metaLen := binary.LittleEndian.Uint32(data)
	if int(metaLen) > len(data)-frameHeaderSize {
		return nil, nil, fmt.Errorf("audio frame metadata length %d exceeds frame size %d", metaLen, len(data))
	}
	metadata = data[frameHeaderSize : frameHeaderSize+int(metaLen)]
	pcm = data[frameHeaderSize+int(metaLen):]
	return metadata, pcm, nil
}

// EncodeAudioFrame builds the wire envelope from metadata and audio.
func EncodeAudioFrame(metadata, pcm []byte) []byte {
	buf := make([]byte, frameHeaderSize+len(metadata)+len(pcm))
	binary.LittleEndian.PutUint32(buf, uint32(len(metadata)))
	copy(buf[frameHeaderSize:], metadata)
	copy(buf[frameHeaderSize+len(metadata):], pcm)
	return buf
}
