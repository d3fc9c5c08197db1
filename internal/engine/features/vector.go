package features

// Vector is the fixed-schema feature set of one finalized flow.
// Field order matches Names.
type Vector struct {
	DestinationPort       float64
	FlowDuration          float64
	TotalFwdPackets       float64
	TotalBackwardPackets  float64
	TotalLengthFwdPackets float64
	TotalLengthBwdPackets float64
	FwdPacketLengthMax    float64
	FwdPacketLengthMin    float64
	FwdPacketLengthMean   float64
	FwdPacketLengthStd    float64
	BwdPacketLengthMax    float64
	BwdPacketLengthMin    float64
	BwdPacketLengthMean   float64
	BwdPacketLengthStd    float64
	FlowBytesPerSec       float64
	FlowPacketsPerSec     float64
	FlowIATMean           float64
	FlowIATStd            float64
	FlowIATMax            float64
	FlowIATMin            float64
	FwdIATTotal           float64
	FwdIATMean            float64
	FwdIATStd             float64
	FwdIATMax             float64
	FwdIATMin             float64
	BwdIATTotal           float64
	BwdIATMean            float64
	BwdIATStd             float64
	BwdIATMax             float64
	BwdIATMin             float64
	FwdPSHFlags           float64
	BwdPSHFlags           float64
	FwdURGFlags           float64
	BwdURGFlags           float64
	FwdHeaderLength       float64
	BwdHeaderLength       float64
	FwdPacketsPerSec      float64
	BwdPacketsPerSec      float64
	MinPacketLength       float64
	MaxPacketLength       float64
	PacketLengthMean      float64
	PacketLengthStd       float64
	PacketLengthVariance  float64
	FINFlagCount          float64
	SYNFlagCount          float64
	RSTFlagCount          float64
	PSHFlagCount          float64
	ACKFlagCount          float64
	URGFlagCount          float64
	CWEFlagCount          float64
	ECEFlagCount          float64
	DownUpRatio           float64
	AveragePacketSize     float64
	AvgFwdSegmentSize     float64
	AvgBwdSegmentSize     float64
	FwdHeaderLength1      float64
	FwdAvgBytesPerBulk    float64
	FwdAvgPacketsPerBulk  float64
	FwdAvgBulkRate        float64
	BwdAvgBytesPerBulk    float64
	BwdAvgPacketsPerBulk  float64
	BwdAvgBulkRate        float64
	SubflowFwdPackets     float64
	SubflowFwdBytes       float64
	SubflowBwdPackets     float64
	SubflowBwdBytes       float64
	InitWinBytesForward   float64
	InitWinBytesBackward  float64
	ActDataPktFwd         float64
	MinSegSizeForward     float64
	ActiveMean            float64
	ActiveStd             float64
	ActiveMax             float64
	ActiveMin             float64
	IdleMean              float64
	IdleStd               float64
	IdleMax               float64
	IdleMin               float64
}

// Values returns the features in Names order.
func (v *Vector) Values() []float64 {
	return []float64{
		v.DestinationPort,
		v.FlowDuration,
		v.TotalFwdPackets,
		v.TotalBackwardPackets,
		v.TotalLengthFwdPackets,
		v.TotalLengthBwdPackets,
		v.FwdPacketLengthMax,
		v.FwdPacketLengthMin,
		v.FwdPacketLengthMean,
		v.FwdPacketLengthStd,
		v.BwdPacketLengthMax,
		v.BwdPacketLengthMin,
		v.BwdPacketLengthMean,
		v.BwdPacketLengthStd,
		v.FlowBytesPerSec,
		v.FlowPacketsPerSec,
		v.FlowIATMean,
		v.FlowIATStd,
		v.FlowIATMax,
		v.FlowIATMin,
		v.FwdIATTotal,
		v.FwdIATMean,
		v.FwdIATStd,
		v.FwdIATMax,
		v.FwdIATMin,
		v.BwdIATTotal,
		v.BwdIATMean,
		v.BwdIATStd,
		v.BwdIATMax,
		v.BwdIATMin,
		v.FwdPSHFlags,
		v.BwdPSHFlags,
		v.FwdURGFlags,
		v.BwdURGFlags,
		v.FwdHeaderLength,
		v.BwdHeaderLength,
		v.FwdPacketsPerSec,
		v.BwdPacketsPerSec,
		v.MinPacketLength,
		v.MaxPacketLength,
		v.PacketLengthMean,
		v.PacketLengthStd,
		v.PacketLengthVariance,
		v.FINFlagCount,
		v.SYNFlagCount,
		v.RSTFlagCount,
		v.PSHFlagCount,
		v.ACKFlagCount,
		v.URGFlagCount,
		v.CWEFlagCount,
		v.ECEFlagCount,
		v.DownUpRatio,
		v.AveragePacketSize,
		v.AvgFwdSegmentSize,
		v.AvgBwdSegmentSize,
		v.FwdHeaderLength1,
		v.FwdAvgBytesPerBulk,
		v.FwdAvgPacketsPerBulk,
		v.FwdAvgBulkRate,
		v.BwdAvgBytesPerBulk,
		v.BwdAvgPacketsPerBulk,
		v.BwdAvgBulkRate,
		v.SubflowFwdPackets,
		v.SubflowFwdBytes,
		v.SubflowBwdPackets,
		v.SubflowBwdBytes,
		v.InitWinBytesForward,
		v.InitWinBytesBackward,
		v.ActDataPktFwd,
		v.MinSegSizeForward,
		v.ActiveMean,
		v.ActiveStd,
		v.ActiveMax,
		v.ActiveMin,
		v.IdleMean,
		v.IdleStd,
		v.IdleMax,
		v.IdleMin,
	}
}
