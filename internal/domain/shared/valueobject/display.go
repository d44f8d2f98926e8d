package valueobject

import (
	"encoding/json"
	"math"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// CurrencySuffix is appended to every formatted monetary amount
const CurrencySuffix = " VNĐ"

// quantityGroupingThreshold is the smallest integer quantity rendered with
// thousands separators
const quantityGroupingThreshold = 1000

// notANumber is the marker produced for input that does not parse as a number
const notANumber = "NaN"

// groupingPrinter renders integers with US-style comma grouping
var groupingPrinter = message.NewPrinter(language.AmericanEnglish)

// displayValue is the parsed form of a formatter input
type displayValue struct {
	dec     decimal.Decimal
	special string // NaN / Infinity markers that decimal cannot hold
}

// FormatCurrency renders an amount as a VNĐ display string.
//
// nil renders as "0 VNĐ". Integers are grouped with commas and carry no
// fraction. Non-integers keep their fractional digits exactly as they appear
// in the shortest decimal representation of the value: nothing is rounded,
// truncated or padded. Input that is not numeric propagates "NaN".
func FormatCurrency(amount any) string {
	if amount == nil {
		return "0" + CurrencySuffix
	}
	v := parseDisplayValue(amount)
	if v.special != "" {
		return v.special + CurrencySuffix
	}
	if v.dec.IsInteger() {
		return groupInteger(v.dec) + CurrencySuffix
	}
	return formatFraction(v.dec) + CurrencySuffix
}

// FormatQuantity renders a quantity for display.
//
// It follows FormatCurrency without the currency suffix, except that
// integers below 1000 are rendered as their plain digit string.
func FormatQuantity(quantity any) string {
	if quantity == nil {
		return "0"
	}
	v := parseDisplayValue(quantity)
	if v.special != "" {
		return v.special
	}
	if v.dec.IsInteger() {
		if v.dec.LessThan(decimal.NewFromInt(quantityGroupingThreshold)) {
			return v.dec.String()
		}
		return groupInteger(v.dec)
	}
	return formatFraction(v.dec)
}

// parseDisplayValue converts any supported input into a decimal.
// Strings are parsed exactly; floats use their shortest representation.
func parseDisplayValue(in any) displayValue {
	switch n := in.(type) {
	case decimal.Decimal:
		return displayValue{dec: n}
	case *decimal.Decimal:
		if n == nil {
			return displayValue{dec: decimal.Zero}
		}
		return displayValue{dec: *n}
	case json.Number:
		return parseNumericString(string(n))
	case string:
		return parseNumericString(n)
	case *string:
		if n == nil {
			return displayValue{dec: decimal.Zero}
		}
		return parseNumericString(*n)
	case float64:
		return fromFloat(n)
	case float32:
		if v, ok := specialFloat(float64(n)); ok {
			return v
		}
		return displayValue{dec: decimal.NewFromFloat32(n)}
	case int:
		return displayValue{dec: decimal.NewFromInt(int64(n))}
	case int8:
		return displayValue{dec: decimal.NewFromInt(int64(n))}
	case int16:
		return displayValue{dec: decimal.NewFromInt(int64(n))}
	case int32:
		return displayValue{dec: decimal.NewFromInt32(n)}
	case int64:
		return displayValue{dec: decimal.NewFromInt(n)}
	case uint:
		return displayValue{dec: decimal.NewFromUint64(uint64(n))}
	case uint8:
		return displayValue{dec: decimal.NewFromUint64(uint64(n))}
	case uint16:
		return displayValue{dec: decimal.NewFromUint64(uint64(n))}
	case uint32:
		return displayValue{dec: decimal.NewFromUint64(uint64(n))}
	case uint64:
		return displayValue{dec: decimal.NewFromUint64(n)}
	default:
		return displayValue{special: notANumber}
	}
}

func parseNumericString(s string) displayValue {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return displayValue{special: notANumber}
	}
	return displayValue{dec: d}
}

func fromFloat(f float64) displayValue {
	if v, ok := specialFloat(f); ok {
		return v
	}
	return displayValue{dec: decimal.NewFromFloat(f)}
}

// specialFloat maps NaN and infinities to their display markers
func specialFloat(f float64) (displayValue, bool) {
	switch {
	case math.IsNaN(f):
		return displayValue{special: notANumber}, true
	case math.IsInf(f, 1):
		return displayValue{special: "Infinity"}, true
	case math.IsInf(f, -1):
		return displayValue{special: "-Infinity"}, true
	}
	return displayValue{}, false
}

// groupInteger renders the integer part of d with comma grouping.
func groupInteger(d decimal.Decimal) string {
	whole := d.Truncate(0)
	if whole.GreaterThanOrEqual(decimal.NewFromInt(math.MinInt64)) &&
		whole.LessThanOrEqual(decimal.NewFromInt(math.MaxInt64)) {
		return groupingPrinter.Sprintf("%d", whole.IntPart())
	}
	return groupDigits(whole.String())
}

// groupDigits inserts commas into an exact integer digit string
func groupDigits(digits string) string {
	sign := ""
	if strings.HasPrefix(digits, "-") {
		sign, digits = "-", digits[1:]
	}
	head := len(digits) % 3
	if head == 0 {
		head = 3
	}
	var b strings.Builder
	b.Grow(len(digits) + len(digits)/3 + 1)
	b.WriteString(sign)
	b.WriteString(digits[:head])
	for i := head; i < len(digits); i += 3 {
		b.WriteByte(',')
		b.WriteString(digits[i : i+3])
	}
	return b.String()
}

// formatFraction groups the integer part and appends the untouched fraction.
func formatFraction(d decimal.Decimal) string {
	repr := d.String()
	intPart, frac, _ := strings.Cut(repr, ".")

	grouped := groupInteger(d)
	// -0.5 keeps its sign even though the integer part is zero
	if strings.HasPrefix(intPart, "-") && !strings.HasPrefix(grouped, "-") {
		grouped = "-" + grouped
	}
	if frac == "" {
		return grouped
	}
	return grouped + "." + frac
}
