package scoretable

import (
	"fmt"
	"strings"
)

// ParseDelimiter maps a user-facing delimiter name to a rune. Empty means
// auto (0).
func ParseDelimiter(s string) (rune, error) {
	switch s {
	case "":
		return 0, nil
	case ",":
		return ',', nil
	case "\t", "tab":
		return '\t', nil
	case ";":
		return ';', nil
	default:
		return 0, fmt.Errorf("unsupported delimiter: %s (use ','|';'|'tab')", s)
	}
}

// ParseDecimal maps a user-facing decimal separator name to a rune. Empty
// means auto-detect per value (0).
func ParseDecimal(s string) (rune, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case ",", "comma":
		return ',', nil
	case ".", "dot":
		return '.', nil
	case "":
		return 0, nil
	default:
		return 0, fmt.Errorf("unsupported decimal: %s (use '.'|'comma')", s)
	}
}

// ParseOptions builds loader options from user-facing delimiter, decimal and
// sheet settings.
func ParseOptions(delimiter, decimal, sheetName string, sheetIndex int) (Options, error) {
	opt := DefaultOptions()
	var err error
	if opt.Delimiter, err = ParseDelimiter(delimiter); err != nil {
		return opt, err
	}
	if opt.DecimalSeparator, err = ParseDecimal(decimal); err != nil {
		return opt, err
	}
	opt.SheetName = strings.TrimSpace(sheetName)
	if sheetIndex > 0 {
		opt.SheetIndex = sheetIndex
	}
	return opt, nil
}
