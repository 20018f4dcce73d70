package symbol

import (
	"regexp"
	"strings"
)

// SecurityType 证券类型：股 / 基 / 债。
type SecurityType string

const (
	TypeStock   SecurityType = "股"
	TypeFund    SecurityType = "基"
	TypeConBond SecurityType = "债"
)

var (
	reSixDigit  = regexp.MustCompile(`^\d{6}$`)
	rePrefixed  = regexp.MustCompile(`^(sh|sz|bj)\d{6}$`)
	reHK        = regexp.MustCompile(`^hk\d{5}$`)
	reFiveDigit = regexp.MustCompile(`^\d{5}$`)
	reUS        = regexp.MustCompile(`^[a-z]+$`)
	reFund      = regexp.MustCompile(`^(f_|of)\d{6}$`)
)

// Normalize 标准化证券代码。
// 支持 600519 / sh600519 / SH600519 / 00700.HK / hk00700 / AAPL 等写法，
// 无法识别时返回空串。
func Normalize(raw string) string {
	raw = strings.ToLower(strings.TrimSpace(raw))
	if raw == "" {
		return ""
	}
	raw = strings.NewReplacer(".sh", "", ".sz", "", ".hk", "").Replace(raw)

	switch {
	case reSixDigit.MatchString(raw):
		// 沪: 6/9 开头，11 开头可转债；深: 0/2/3 开头，12 开头可转债；京: 4/8 开头
		switch {
		case strings.HasPrefix(raw, "11"):
			return "sh" + raw
		case strings.HasPrefix(raw, "12"):
			return "sz" + raw
		case strings.HasPrefix(raw, "6"), strings.HasPrefix(raw, "9"):
			return "sh" + raw
		case strings.HasPrefix(raw, "0"), strings.HasPrefix(raw, "3"), strings.HasPrefix(raw, "2"):
			return "sz" + raw
		case strings.HasPrefix(raw, "4"), strings.HasPrefix(raw, "8"):
			return "bj" + raw
		default:
			return "sz" + raw
		}
	case rePrefixed.MatchString(raw):
		return raw
	case reHK.MatchString(raw):
		return raw
	case reFiveDigit.MatchString(raw):
		return "hk" + raw
	case reUS.MatchString(raw) && len(raw) <= 5:
		return raw
	case reFund.MatchString(raw):
		return raw
	}
	return ""
}

// MarketPrefix 拆出市场前缀与纯数字代码。
func MarketPrefix(sym string) (prefix, pure string) {
	sym = strings.ToLower(sym)
	switch {
	case strings.HasPrefix(sym, "sh"):
		return "sh", sym[2:]
	case strings.HasPrefix(sym, "sz"):
		return "sz", sym[2:]
	case strings.HasPrefix(sym, "bj"):
		return "bj", sym[2:]
	case strings.HasPrefix(sym, "hk"):
		return "hk", sym[2:]
	}
	if len(sym) == 6 && isDigits(sym) {
		switch {
		case strings.HasPrefix(sym, "6"), strings.HasPrefix(sym, "9"):
			return "sh", sym
		case strings.HasPrefix(sym, "4"), strings.HasPrefix(sym, "8"):
			return "bj", sym
		default:
			return "sz", sym
		}
	}
	return "", sym
}

// PureCode 去掉市场前缀后的数字代码。
func PureCode(sym string) string {
	sym = strings.ToLower(sym)
	if len(sym) > 2 {
		switch sym[:2] {
		case "sh", "sz", "bj":
			return sym[2:]
		}
	}
	return sym
}

// Type 按代码前缀推断证券类型，不查询任何外部权威数据。
func Type(sym string) SecurityType {
	sym = strings.ToLower(sym)

	if strings.HasPrefix(sym, "sh11") || strings.HasPrefix(sym, "sz12") {
		return TypeConBond
	}
	if strings.HasPrefix(sym, "f_") || strings.HasPrefix(sym, "of") {
		return TypeFund
	}

	pure := PureCode(sym)
	if len(pure) == 6 {
		switch {
		case strings.HasPrefix(pure, "51"), strings.HasPrefix(pure, "58"):
			return TypeFund
		case strings.HasPrefix(pure, "15"), strings.HasPrefix(pure, "16"):
			return TypeFund
		}
	}
	return TypeStock
}

// MarketShortName 市场简称：沪、深、京、科、创、美、港。
func MarketShortName(sym string) string {
	sym = strings.ToLower(sym)

	switch {
	case strings.HasPrefix(sym, "hk"):
		return "港"
	case strings.HasPrefix(sym, "sh"):
		if strings.HasPrefix(sym[2:], "688") {
			return "科"
		}
		return "沪"
	case strings.HasPrefix(sym, "sz"):
		if strings.HasPrefix(sym[2:], "3") {
			return "创"
		}
		return "深"
	case strings.HasPrefix(sym, "bj"):
		return "京"
	}

	if sym != "" && reUS.MatchString(sym) {
		return "美"
	}
	if len(sym) == 6 && isDigits(sym) {
		switch {
		case strings.HasPrefix(sym, "688"):
			return "科"
		case strings.HasPrefix(sym, "6"):
			return "沪"
		case strings.HasPrefix(sym, "3"):
			return "创"
		case strings.HasPrefix(sym, "4"), strings.HasPrefix(sym, "8"):
			return "京"
		default:
			return "深"
		}
	}
	return ""
}

// EastmoneySecID 东财接口的 secid：沪市=1.xxxxxx，深/京市=0.xxxxxx。
func EastmoneySecID(sym string) string {
	sym = strings.ToLower(sym)
	pure := PureCode(sym)

	market := "0"
	switch {
	case strings.HasPrefix(sym, "sh"):
		market = "1"
	case strings.HasPrefix(sym, "sz"), strings.HasPrefix(sym, "bj"):
		market = "0"
	case strings.HasPrefix(pure, "6"), strings.HasPrefix(pure, "5"), strings.HasPrefix(pure, "11"):
		market = "1"
	}
	return market + "." + pure
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return len(s) > 0
}
