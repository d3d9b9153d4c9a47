package schema

import (
	"net/netip"
	"net/url"
	"regexp"
	"strconv"
	"strings"
)

// MaxTTL is the largest MaxMessageTimeToLive in seconds.
const MaxTTL = 2147483647

// IPListResult describes the outcome of parsing an address list.
type IPListResult struct {
	Entries int
	Valid   bool
	// Bad holds the first entry that failed to parse.
	Bad string
}

// ParseIPList checks a comma-delimited list of IPv4/IPv6 addresses and
// ascending "low-high" ranges. "*" and "all" allow every address. The empty
// list is accepted.
func ParseIPList(s string) IPListResult {
	if strings.TrimSpace(s) == "" {
		return IPListResult{Valid: true}
	}
	res := IPListResult{Valid: true}
	for _, item := range strings.Split(s, ",") {
		item = strings.TrimSpace(item)
		res.Entries++
		if item == "*" || strings.EqualFold(item, "all") {
			continue
		}
		if !validAddressOrRange(item) && res.Valid {
			res.Valid = false
			res.Bad = item
		}
	}
	return res
}

func validAddressOrRange(item string) bool {
	if item == "" {
		return false
	}
	// IPv6 ranges are only recognised in bracketed form: [a]-[b].
	lo, hi, isRange := splitRange(item)
	if !isRange {
		_, ok := parseAddr(item)
		return ok
	}
	low, ok := parseAddr(lo)
	if !ok {
		return false
	}
	high, ok := parseAddr(hi)
	if !ok {
		return false
	}
	if low.Is4() != high.Is4() {
		return false
	}
	return low.Compare(high) <= 0
}

func splitRange(item string) (string, string, bool) {
	if strings.HasPrefix(item, "[") {
		end := strings.Index(item, "]")
		if end < 0 || end+1 >= len(item) || item[end+1] != '-' {
			return "", "", false
		}
		return item[:end+1], item[end+2:], true
	}
	if strings.Contains(item, ":") {
		return "", "", false
	}
	lo, hi, ok := strings.Cut(item, "-")
	return lo, hi, ok
}

func parseAddr(s string) (netip.Addr, bool) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "[") && strings.HasSuffix(s, "]") {
		s = s[1 : len(s)-1]
		a, err := netip.ParseAddr(s)
		return a, err == nil && a.Is6()
	}
	a, err := netip.ParseAddr(s)
	if err != nil {
		return netip.Addr{}, false
	}
	if a.Is6() && a.Zone() != "" {
		return netip.Addr{}, false
	}
	return a, true
}

// ValidInterface accepts "All", "*" or a single address.
func ValidInterface(s string) bool {
	if strings.EqualFold(s, "all") || s == "*" || s == "" {
		return true
	}
	_, ok := parseAddr(s)
	return ok
}

// ValidTTL accepts "unlimited" or a decimal number of seconds in 1..MaxTTL.
func ValidTTL(s string) bool {
	if strings.EqualFold(s, "unlimited") || s == "" {
		return true
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	n, err := strconv.ParseInt(s, 10, 64)
	return err == nil && n >= 1 && n <= MaxTTL
}

// ValidURL accepts absolute http and https URLs.
func ValidURL(s string) bool {
	u, err := url.Parse(s)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

var sizePattern = regexp.MustCompile(`^[1-9][0-9]*(KB|MB)$`)

// ValidSize accepts sizes like "4096KB" or "256MB".
func ValidSize(s string) bool {
	return sizePattern.MatchString(strings.ToUpper(s))
}

// NormalizeTokens checks a comma-delimited token list against allowed and
// returns it with canonical spelling. bad is the first rejected token.
// Empty entries and duplicates are rejected.
func NormalizeTokens(s string, allowed []string) (normalized string, bad string, ok bool) {
	if s == "" {
		return "", "", true
	}
	seen := make(map[string]bool)
	out := make([]string, 0, len(allowed))
	for _, tok := range strings.Split(s, ",") {
		tok = strings.TrimSpace(tok)
		canon, found := canonical(tok, allowed)
		if !found || seen[canon] {
			return "", tok, false
		}
		seen[canon] = true
		out = append(out, canon)
	}
	return strings.Join(out, ","), "", true
}

// NormalizeEnum returns the canonical spelling of an enumeration value.
func NormalizeEnum(s string, allowed []string) (string, bool) {
	return canonical(s, allowed)
}

func canonical(s string, allowed []string) (string, bool) {
	for _, a := range allowed {
		if strings.EqualFold(a, s) {
			return a, true
		}
	}
	return "", false
}

// SplitList splits a comma-delimited reference list, dropping blanks.
func SplitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
