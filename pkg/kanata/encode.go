package kanata

import (
	"fmt"
	"strconv"
)

// Encode returns the canonical line for ev, without a line terminator.
func Encode(ev Event) string {
	return string(AppendEvent(nil, ev))
}

// AppendEvent appends the canonical line for ev to buf. Decoding a
// canonical line and encoding the result reproduces it byte for byte.
func AppendEvent(buf []byte, ev Event) []byte {
	switch e := ev.(type) {
	case Cycle:
		buf = append(buf, string(e.Tag())...)
		buf = appendUint(buf, e.Value)
	case Begin:
		buf = append(buf, string(TagBegin)...)
		buf = appendUint(buf, e.ID)
		buf = appendUint(buf, e.SimID)
		buf = appendUint(buf, e.ThreadID)
	case Label:
		buf = append(buf, string(TagLabel)...)
		buf = appendUint(buf, e.ID)
		buf = appendUint(buf, uint64(e.Kind))
		buf = append(buf, '\t')
		buf = append(buf, e.Text...)
	case StageStart:
		buf = append(buf, string(TagStageStart)...)
		buf = appendUint(buf, e.ID)
		buf = appendUint(buf, e.Lane)
		buf = append(buf, '\t')
		buf = append(buf, e.Stage.String()...)
	case StageEnd:
		buf = append(buf, string(TagStageEnd)...)
		buf = appendUint(buf, e.ID)
		buf = appendUint(buf, e.Lane)
		buf = append(buf, '\t')
		buf = append(buf, e.Stage.String()...)
	case Retire:
		buf = append(buf, string(TagRetire)...)
		buf = appendUint(buf, e.ID)
		buf = appendUint(buf, e.RetireID)
		buf = appendUint(buf, uint64(e.Kind))
	case Dependency:
		buf = append(buf, string(TagDependency)...)
		buf = appendUint(buf, e.Consumer)
		buf = appendUint(buf, e.Producer)
		buf = appendUint(buf, uint64(e.Kind))
	default:
		panic(fmt.Sprintf("kanata: cannot encode %T", ev))
	}
	return buf
}

// appendUint appends a tab and the decimal form of v.
func appendUint(buf []byte, v uint64) []byte {
	buf = append(buf, '\t')
	return strconv.AppendUint(buf, v, 10)
}
