package valueobject

import (
	"encoding/json"
	"math"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestFormatCurrency(t *testing.T) {
	tests := []struct {
		name   string
		amount any
		want   string
	}{
		{"nil renders zero", nil, "0 VNĐ"},
		{"integer is grouped", 1234567, "1,234,567 VNĐ"},
		{"fraction is preserved", 1234.5, "1,234.5 VNĐ"},
		{"small integer", 999, "999 VNĐ"},
		{"zero", 0, "0 VNĐ"},
		{"negative integer", -1234567, "-1,234,567 VNĐ"},
		{"negative fraction", -1234.75, "-1,234.75 VNĐ"},
		{"negative fraction below one", -0.5, "-0.5 VNĐ"},
		{"long fraction is not rounded", 1234.123456789, "1,234.123456789 VNĐ"},
		{"float noise is kept verbatim", 0.1 + 0.2, "0.30000000000000004 VNĐ"},
		{"integral float", 2500000.0, "2,500,000 VNĐ"},
		{"numeric string", "1234567", "1,234,567 VNĐ"},
		{"numeric string with fraction", "98765.4321", "98,765.4321 VNĐ"},
		{"trailing zeros are not padded", "1500.50", "1,500.5 VNĐ"},
		{"integral string with zero fraction", "2000.00", "2,000 VNĐ"},
		{"string with surrounding spaces", " 42 ", "42 VNĐ"},
		{"malformed string propagates NaN", "abc", "NaN VNĐ"},
		{"empty string propagates NaN", "", "NaN VNĐ"},
		{"NaN float", math.NaN(), "NaN VNĐ"},
		{"decimal value", decimal.RequireFromString("1000000.25"), "1,000,000.25 VNĐ"},
		{"json number", json.Number("12345"), "12,345 VNĐ"},
		{"int64", int64(9007199254740993), "9,007,199,254,740,993 VNĐ"},
		{"uint32", uint32(65536), "65,536 VNĐ"},
		{"integer string beyond int64", "12345678901234567890123", "12,345,678,901,234,567,890,123 VNĐ"},
		{"negative integer string beyond int64", "-9223372036854775809", "-9,223,372,036,854,775,809 VNĐ"},
		{"fraction beyond int64", "123456789012345678901.25", "123,456,789,012,345,678,901.25 VNĐ"},
		{"float32 keeps its shortest form", float32(0.1), "0.1 VNĐ"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatCurrency(tt.amount))
		})
	}
}

func TestFormatCurrency_IntegersHaveNoDecimalPoint(t *testing.T) {
	for _, n := range []int64{0, 1, 7, 999, 1000, 65536, 1234567, -42, -1000000, math.MaxInt64, math.MinInt64} {
		out := FormatCurrency(n)
		assert.True(t, strings.HasSuffix(out, " VNĐ"), out)
		assert.NotContains(t, out, ".", out)
	}
}

func TestGroupDigits(t *testing.T) {
	tests := map[string]string{
		"0":                     "0",
		"123":                   "123",
		"1234":                  "1,234",
		"123456":                "123,456",
		"-1000":                 "-1,000",
		"100000000000000000000": "100,000,000,000,000,000,000",
		"-12345678901234567890": "-12,345,678,901,234,567,890",
	}
	for in, want := range tests {
		assert.Equal(t, want, groupDigits(in), in)
	}
}

func TestFormatQuantity(t *testing.T) {
	tests := []struct {
		name     string
		quantity any
		want     string
	}{
		{"nil renders zero", nil, "0"},
		{"below threshold is plain", 999, "999"},
		{"threshold is grouped", 1000, "1,000"},
		{"fraction is preserved", 1234.25, "1,234.25"},
		{"small fraction", 12.5, "12.5"},
		{"large integer", 1500000, "1,500,000"},
		{"negative integers stay plain", -5000, "-5000"},
		{"numeric string", "2500", "2,500"},
		{"string below threshold", "15", "15"},
		{"malformed string", "12abc", "NaN"},
		{"decimal", decimal.NewFromFloat(0.125), "0.125"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatQuantity(tt.quantity))
		})
	}
}

func TestFormatters_AreDeterministic(t *testing.T) {
	inputs := []any{nil, 0, 1234.5, "777", "x", decimal.NewFromInt(10000)}
	for _, in := range inputs {
		assert.Equal(t, FormatCurrency(in), FormatCurrency(in))
		assert.Equal(t, FormatQuantity(in), FormatQuantity(in))
	}
}
