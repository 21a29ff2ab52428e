// Package agnssfeed provides an optional RTCM3 frame-shape check for bytes
// the host stages via WriteAgnssChunk before EndAgnss hands them to the
// A-GNSS Injector. It never decodes RTCM3 semantics — the core's A-GNSS
// payloads are vendor binary frames (§4.3), not RTCM — it only confirms the
// staged bytes are shaped like valid RTCM3 frames when a caller opts into
// that sanity check. Grounded on the same rtcm3.NewParser/NextFrame usage
// as internal/rtk.Processor.parseRTCMData, generalized from accumulating
// messages to a pass/fail frame count.
package agnssfeed

import (
	"github.com/go-gnss/rtcm/rtcm3"
)

// CheckFrameShape runs data through an RTCM3 frame parser and reports how
// many complete, checksum-valid frames it found. It never returns an error:
// a count of zero simply means none of the staged bytes parsed as RTCM3.
func CheckFrameShape(data []byte) (frameCount int) {
	parser := rtcm3.NewParser()
	parser.Write(data)

	for {
		_, err := parser.NextFrame()
		if err != nil {
			break
		}
		frameCount++
	}
	return frameCount
}
