package model

import (
	"net"
	"time"
)

// Transport identifies the transport layer found in a packet.
type Transport uint8

const (
	TransportOther Transport = iota
	TransportTCP
	TransportUDP
	TransportICMP
)

// FiveTuple represents the 5-tuple of a network packet.
type FiveTuple struct {
	SrcIP    net.IP
	DstIP    net.IP
	SrcPort  uint16
	DstPort  uint16
	Protocol uint8
}

// TCPFlags holds the control bits of a TCP segment.
type TCPFlags struct {
	FIN, SYN, RST, PSH, ACK, URG, ECE, CWR bool
}

// PacketInfo is the minimal header view of a single captured packet.
type PacketInfo struct {
	Timestamp time.Time
	FiveTuple FiveTuple
	// Length is the captured frame length in bytes.
	Length int
	// HeaderLength is the network header length plus the transport header length.
	HeaderLength int
	Transport    Transport
	Flags        TCPFlags
	// Window is the advertised TCP window; only meaningful when Transport is TransportTCP.
	Window uint16
}

// GeoInfo is the location of an IP address. Unknown fields hold "Unknown" and zero coordinates.
type GeoInfo struct {
	CountryCode string  `json:"country_code"`
	CountryName string  `json:"country_name"`
	City        string  `json:"city"`
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
}

// UnknownGeo returns the location used when no database is loaded or the address is not found.
func UnknownGeo() GeoInfo {
	return GeoInfo{
		CountryCode: "Unknown",
		CountryName: "Unknown",
		City:        "Unknown",
	}
}

// GeoLocator resolves an IP address to a location. On failure it still returns UnknownGeo().
type GeoLocator interface {
	Lookup(ip net.IP) (GeoInfo, error)
	Close() error
}
