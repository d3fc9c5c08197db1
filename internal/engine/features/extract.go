package features

import (
	"errors"
	"fmt"
	"math"

	"FlowGuard/internal/engine/flowtable"
)

// ErrInconsistentRecord is returned when a record cannot yield a feature vector.
var ErrInconsistentRecord = errors.New("inconsistent flow record")

const (
	microsPerSecond = 1e6
	minDuration     = 1e-6 // seconds
	defaultMinSeg   = 20
)

// Extract computes the feature vector of a drained record. It does not modify the record.
func Extract(r *flowtable.Record) (Vector, error) {
	if r == nil {
		return Vector{}, fmt.Errorf("nil record: %w", ErrInconsistentRecord)
	}
	if r.Packets() == 0 {
		return Vector{}, fmt.Errorf("flow %s has no packets: %w", r.Key, ErrInconsistentRecord)
	}
	if r.LastSeen.Before(r.StartTime) {
		return Vector{}, fmt.Errorf("flow %s ends before it starts: %w", r.Key, ErrInconsistentRecord)
	}

	dur := math.Max(r.LastSeen.Sub(r.StartTime).Seconds(), minDuration)
	fwdPkts := float64(r.FwdPackets)
	bwdPkts := float64(r.BwdPackets)
	fwdBytes := float64(r.FwdBytes)
	bwdBytes := float64(r.BwdBytes)
	totPkts := fwdPkts + bwdPkts
	totBytes := fwdBytes + bwdBytes

	fwdLen := calcStats(r.FwdLengths)
	bwdLen := calcStats(r.BwdLengths)
	allLen := calcStats(r.AllLengths)
	flowIAT := calcStats(r.FlowIAT).scaled(microsPerSecond)
	fwdIAT := calcStats(r.FwdIAT).scaled(microsPerSecond)
	bwdIAT := calcStats(r.BwdIAT).scaled(microsPerSecond)
	active := calcStats(r.Active).scaled(microsPerSecond)
	idle := calcStats(r.Idle).scaled(microsPerSecond)

	minSeg := fwdLen.Min
	if minSeg <= 0 {
		minSeg = defaultMinSeg
	}

	v := Vector{
		DestinationPort:       float64(r.DstPort),
		FlowDuration:          dur * microsPerSecond,
		TotalFwdPackets:       fwdPkts,
		TotalBackwardPackets:  bwdPkts,
		TotalLengthFwdPackets: fwdBytes,
		TotalLengthBwdPackets: bwdBytes,
		FwdPacketLengthMax:    fwdLen.Max,
		FwdPacketLengthMin:    fwdLen.Min,
		FwdPacketLengthMean:   fwdLen.Mean,
		FwdPacketLengthStd:    fwdLen.Std,
		BwdPacketLengthMax:    bwdLen.Max,
		BwdPacketLengthMin:    bwdLen.Min,
		BwdPacketLengthMean:   bwdLen.Mean,
		BwdPacketLengthStd:    bwdLen.Std,
		FlowBytesPerSec:       SafeDivide(totBytes, dur),
		FlowPacketsPerSec:     SafeDivide(totPkts, dur),
		FlowIATMean:           flowIAT.Mean,
		FlowIATStd:            flowIAT.Std,
		FlowIATMax:            flowIAT.Max,
		FlowIATMin:            flowIAT.Min,
		FwdIATTotal:           fwdIAT.Total,
		FwdIATMean:            fwdIAT.Mean,
		FwdIATStd:             fwdIAT.Std,
		FwdIATMax:             fwdIAT.Max,
		FwdIATMin:             fwdIAT.Min,
		BwdIATTotal:           bwdIAT.Total,
		BwdIATMean:            bwdIAT.Mean,
		BwdIATStd:             bwdIAT.Std,
		BwdIATMax:             bwdIAT.Max,
		BwdIATMin:             bwdIAT.Min,
		FwdPSHFlags:           float64(r.FwdPSH),
		BwdPSHFlags:           float64(r.BwdPSH),
		FwdURGFlags:           float64(r.FwdURG),
		BwdURGFlags:           float64(r.BwdURG),
		FwdHeaderLength:       float64(r.FwdHeaderBytes),
		BwdHeaderLength:       float64(r.BwdHeaderBytes),
		FwdPacketsPerSec:      SafeDivide(fwdPkts, dur),
		BwdPacketsPerSec:      SafeDivide(bwdPkts, dur),
		MinPacketLength:       allLen.Min,
		MaxPacketLength:       allLen.Max,
		PacketLengthMean:      allLen.Mean,
		PacketLengthStd:       allLen.Std,
		PacketLengthVariance:  allLen.Std * allLen.Std,
		FINFlagCount:          float64(r.FINCount),
		SYNFlagCount:          float64(r.SYNCount),
		RSTFlagCount:          float64(r.RSTCount),
		PSHFlagCount:          float64(r.PSHCount),
		ACKFlagCount:          float64(r.ACKCount),
		URGFlagCount:          float64(r.URGCount),
		CWEFlagCount:          float64(r.CWRCount),
		ECEFlagCount:          float64(r.ECECount),
		DownUpRatio:           SafeDivide(bwdPkts, fwdPkts),
		AveragePacketSize:     SafeDivide(totBytes, totPkts),
		AvgFwdSegmentSize:     SafeDivide(fwdBytes, fwdPkts),
		AvgBwdSegmentSize:     SafeDivide(bwdBytes, bwdPkts),
		FwdHeaderLength1:      float64(r.FwdHeaderBytes),
		SubflowFwdPackets:     fwdPkts,
		SubflowFwdBytes:       fwdBytes,
		SubflowBwdPackets:     bwdPkts,
		SubflowBwdBytes:       bwdBytes,
		InitWinBytesForward:   float64(r.InitWinFwd),
		InitWinBytesBackward:  float64(r.InitWinBwd),
		ActDataPktFwd:         math.Max(0, fwdPkts-float64(r.SYNCount)-float64(r.FINCount)),
		MinSegSizeForward:     minSeg,
		ActiveMean:            active.Mean,
		ActiveStd:             active.Std,
		ActiveMax:             active.Max,
		ActiveMin:             active.Min,
		IdleMean:              idle.Mean,
		IdleStd:               idle.Std,
		IdleMax:               idle.Max,
		IdleMin:               idle.Min,
	}
	return v, nil
}
