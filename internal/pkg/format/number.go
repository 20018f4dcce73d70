// Package format provides display formatting for prices and changes.
package format

import (
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// Number 保留 precision 位小数并去掉末尾的 0。
func Number(value float64, precision int) string {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return "0"
	}
	s := decimal.NewFromFloat(value).Round(int32(precision)).String()
	if s == "-0" {
		return "0"
	}
	return s
}

// Price 行情价格：基金 3 位小数，其余 2 位。
func Price(value float64, isFund bool) string {
	precision := 2
	if isFund {
		precision = 3
	}
	return Number(value, precision)
}

// Change 涨跌值，正数带 + 号。
func Change(value float64, precision int, suffix string) string {
	s := Number(value, precision)
	if value > 0 && !strings.HasPrefix(s, "+") {
		s = "+" + s
	}
	return s + suffix
}
