package video

import "bytes"

// H264 NAL unit types used for keyframe assembly.
const (
	nalSlice = 1
	nalIDR   = 5
	nalSPS   = 7
	nalPPS   = 8
)

var startCode = []byte{0, 0, 0, 1}

// splitNALs splits an Annex-B byte stream into NAL units without start
// codes.
func splitNALs(b []byte) [][]byte {
	var nals [][]byte
	start := -1
	for i := 0; i+2 < len(b); {
		if b[i] == 0 && b[i+1] == 0 && b[i+2] == 1 {
			if start >= 0 {
				end := i
				if end > start && b[end-1] == 0 {
					end--
				}
				if end > start {
					nals = append(nals, b[start:end])
				}
			}
			i += 3
			start = i
			continue
		}
		i++
	}
	if start >= 0 && start < len(b) {
		nals = append(nals, b[start:])
	}
	return nals
}

func nalType(nal []byte) byte {
	if len(nal) == 0 {
		return 0
	}
	return nal[0] & 0x1f
}

func joinNALs(nals ...[]byte) []byte {
	var buf bytes.Buffer
	for _, n := range nals {
		if len(n) == 0 {
			continue
		}
		buf.Write(startCode)
		buf.Write(n)
	}
	return buf.Bytes()
}

// keyframer tracks SPS/PPS across samples so an IDR access unit can be
// decoded on its own even when the sender only repeats parameter sets
// occasionally.
type keyframer struct {
	sps []byte
	pps []byte
}

// accessUnit returns a self-contained Annex-B keyframe when sample holds
// an IDR slice and parameter sets are known.
func (k *keyframer) accessUnit(sample []byte) ([]byte, bool) {
	var idr [][]byte
	for _, nal := range splitNALs(sample) {
		switch nalType(nal) {
		case nalSPS:
			k.sps = append(k.sps[:0], nal...)
		case nalPPS:
			k.pps = append(k.pps[:0], nal...)
		case nalIDR:
			idr = append(idr, nal)
		}
	}
	if len(idr) == 0 || k.sps == nil || k.pps == nil {
		return nil, false
	}
	return joinNALs(append([][]byte{k.sps, k.pps}, idr...)...), true
}
