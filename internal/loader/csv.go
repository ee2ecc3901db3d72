package loader

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Broker exports name their columns after the terminal's display labels, in
// Japanese for the RSS add-in and in English for some download tools. The
// loader normalizes every header to the canonical schema before parsing so
// nothing downstream ever sees a broker-specific name.
var barHeaderAliases = map[string]string{
	"timestamp": "timestamp",
	"datetime":  "timestamp",
	"time":      "timestamp",
	"date":      "timestamp",
	"日時":        "timestamp",
	"日付":        "timestamp",
	"open":      "open",
	"始値":        "open",
	"high":      "high",
	"高値":        "high",
	"low":       "low",
	"安値":        "low",
	"close":     "close",
	"終値":        "close",
	"volume":    "volume",
	"出来高":       "volume",
}

// quoteHeaderAliases maps broker quote headers to canonical names. Depth
// columns carry a trailing 1-based index ("買気配値1" / "bid_price_1").
var quoteHeaderAliases = map[string]string{
	"timestamp": "timestamp",
	"datetime":  "timestamp",
	"time":      "timestamp",
	"日時":        "timestamp",
	"時刻":        "timestamp",
	"bid_price": "bid_price",
	"買気配値":      "bid_price",
	"bid_size":  "bid_size",
	"買気配数量":     "bid_size",
	"ask_price": "ask_price",
	"売気配値":      "ask_price",
	"ask_size":  "ask_size",
	"売気配数量":     "ask_size",
}

// timestampLayouts are tried in order when parsing record timestamps.
var timestampLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006/01/02 15:04:05",
	"2006/01/02 15:04",
	"2006-01-02T15:04:05",
	"2006-01-02",
	"2006/01/02",
}

// normalizeBarHeader maps a raw bar CSV header row to canonical column names.
// Unknown columns map to "" and are ignored by the row parser.
func normalizeBarHeader(header []string) []string {
	out := make([]string, len(header))
	for i, h := range header {
		out[i] = barHeaderAliases[canonKey(h)]
	}
	return out
}

// normalizeQuoteHeader maps a raw quote CSV header to canonical names, with
// depth columns normalized to e.g. "bid_price_3".
func normalizeQuoteHeader(header []string) []string {
	out := make([]string, len(header))
	for i, h := range header {
		key := canonKey(h)
		if c, ok := quoteHeaderAliases[key]; ok {
			out[i] = c
			continue
		}
		base, idx := splitDepthIndex(key)
		if c, ok := quoteHeaderAliases[base]; ok && idx > 0 {
			out[i] = fmt.Sprintf("%s_%d", c, idx)
		}
	}
	return out
}

// canonKey lower-cases and trims a header cell for alias lookup. Excel
// exports prefix the first cell with a UTF-8 BOM.
func canonKey(h string) string {
	return strings.ToLower(strings.TrimSpace(strings.Trim(h, "\ufeff")))
}

// splitDepthIndex splits "買気配値1" or "bid_price_1" into its base name and
// 1-based depth index. idx is 0 when the cell carries no trailing number.
func splitDepthIndex(key string) (base string, idx int) {
	i := len(key)
	for i > 0 && key[i-1] >= '0' && key[i-1] <= '9' {
		i--
	}
	if i == len(key) {
		return key, 0
	}
	n, err := strconv.Atoi(key[i:])
	if err != nil || n < 1 {
		return key, 0
	}
	return strings.TrimSuffix(key[:i], "_"), n
}

// parseTimestamp parses a record timestamp in the given location.
func parseTimestamp(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timestampLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable timestamp %q", s)
}

// parseFloat parses a numeric cell, tolerating thousands separators.
func parseFloat(s string) (float64, error) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	if s == "" || s == "-" {
		return 0, fmt.Errorf("empty numeric cell")
	}
	return strconv.ParseFloat(s, 64)
}
