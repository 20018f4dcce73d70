package symbol

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	cases := map[string]string{
		"600519":    "sh600519",
		"000001":    "sz000001",
		"300750":    "sz300750",
		"688981":    "sh688981",
		"430047":    "bj430047",
		"830799":    "bj830799",
		"113050":    "sh113050", // 沪市可转债
		"123456":    "sz123456", // 深市可转债
		"510300":    "sh510300",
		"SH600519":  "sh600519",
		"sz000001":  "sz000001",
		" 600519 ":  "sh600519",
		"600519.SH": "sh600519",
		"00700.HK":  "hk00700",
		"hk00700":   "hk00700",
		"AAPL":      "aapl",
		"of161725":  "of161725",
		"f_110011":  "f_110011",
		"":          "",
		"abcdefgh":  "",
		"60051":     "hk60051",
	}
	for in, want := range cases {
		assert.Equalf(t, want, Normalize(in), "Normalize(%q)", in)
	}
}

func TestType(t *testing.T) {
	assert.Equal(t, TypeStock, Type("sh600519"))
	assert.Equal(t, TypeConBond, Type("sh113050"))
	assert.Equal(t, TypeConBond, Type("sz123456"))
	assert.Equal(t, TypeFund, Type("sh510300"))
	assert.Equal(t, TypeFund, Type("sz159915"))
	assert.Equal(t, TypeFund, Type("of161725"))
	assert.Equal(t, TypeStock, Type("sz000001"))
}

func TestMarketShortName(t *testing.T) {
	assert.Equal(t, "沪", MarketShortName("sh600519"))
	assert.Equal(t, "科", MarketShortName("sh688981"))
	assert.Equal(t, "深", MarketShortName("sz000001"))
	assert.Equal(t, "创", MarketShortName("sz300750"))
	assert.Equal(t, "京", MarketShortName("bj430047"))
	assert.Equal(t, "港", MarketShortName("hk00700"))
	assert.Equal(t, "美", MarketShortName("aapl"))
}

func TestEastmoneySecID(t *testing.T) {
	assert.Equal(t, "1.600519", EastmoneySecID("sh600519"))
	assert.Equal(t, "0.000001", EastmoneySecID("sz000001"))
	assert.Equal(t, "0.430047", EastmoneySecID("bj430047"))
	assert.Equal(t, "1.510300", EastmoneySecID("510300"), "bare fund code maps to Shanghai")
	assert.Equal(t, "1.113050", EastmoneySecID("113050"))
}

func TestPureCode(t *testing.T) {
	assert.Equal(t, "600519", PureCode("sh600519"))
	assert.Equal(t, "600519", PureCode("600519"))
	assert.Equal(t, "430047", PureCode("bj430047"))
}
