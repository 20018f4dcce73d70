package market

// Snapshot 实时快照：现价、涨跌停价与买一/卖一挂单量。
// Time 为观测时刻的 HH:MM:SS 字符串，策略按其原样去重。
type Snapshot struct {
	Time      string  `json:"time"`
	Price     float64 `json:"price"`
	HighLimit float64 `json:"high_limit"`
	LowLimit  float64 `json:"low_limit"`
	Bid1Vol   float64 `json:"bid1_vol"`
	Ask1Vol   float64 `json:"ask1_vol"`
	Volume    float64 `json:"volume"`
}
