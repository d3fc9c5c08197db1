package model

// Engine is the packet-consuming side of the IDS, allowing packet sources (live capture,
// pcap files, NATS streams) to feed it interchangeably.
type Engine interface {
	// Start launches the engine's background loops.
	Start()

	// Stop finalizes every live flow and shuts the background loops down.
	Stop()

	// Ingest accounts one parsed packet.
	Ingest(packet *PacketInfo)
}
