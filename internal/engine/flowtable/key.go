package flowtable

import (
	"net"
	"strconv"
)

// Key identifies a bidirectional flow. Both directions of a conversation map to the same Key.
type Key string

// NewKey renders both directions of the endpoint pair as "ip:port-ip:port-proto" and keeps the
// lexicographically smaller one.
func NewKey(srcIP, dstIP net.IP, srcPort, dstPort uint16, proto uint8) Key {
	fwd := render(srcIP, srcPort, dstIP, dstPort, proto)
	rev := render(dstIP, dstPort, srcIP, srcPort, proto)
	if rev < fwd {
		return Key(rev)
	}
	return Key(fwd)
}

func render(aIP net.IP, aPort uint16, bIP net.IP, bPort uint16, proto uint8) string {
	buf := make([]byte, 0, 64)
	buf = append(buf, aIP.String()...)
	buf = append(buf, ':')
	buf = strconv.AppendUint(buf, uint64(aPort), 10)
	buf = append(buf, '-')
	buf = append(buf, bIP.String()...)
	buf = append(buf, ':')
	buf = strconv.AppendUint(buf, uint64(bPort), 10)
	buf = append(buf, '-')
	buf = strconv.AppendUint(buf, uint64(proto), 10)
	return string(buf)
}
