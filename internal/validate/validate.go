package validate

import (
	"math"
	"net/url"
	"regexp"
	"strings"
	"unicode/utf8"

	"carmarket/internal/domain"
)

const (
	maxTextLen  = 2000
	maxLabelLen = 60
	minYear     = 1886
	maxYear     = 2100
)

var (
	reEmail = regexp.MustCompile(`^[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}$`)
	reID    = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)
)

// ID validates a record identifier (car/booking/enquiry/user ids).
func ID(s string) (string, bool) {
	s = strings.TrimSpace(s)
	return s, s != "" && reID.MatchString(s)
}

func Email(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if len(s) == 0 || len(s) > 254 {
		return "", false
	}
	return s, reEmail.MatchString(s)
}

// Text validates free text such as an enquiry message or an admin reply:
// trimmed, non-empty, bounded.
func Text(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if s == "" || utf8.RuneCountInString(s) > maxTextLen {
		return "", false
	}
	return s, true
}

// Label validates short display strings like brand and model.
func Label(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if s == "" || utf8.RuneCountInString(s) > maxLabelLen {
		return "", false
	}
	return s, true
}

func Year(y int) bool {
	return y >= minYear && y <= maxYear
}

func Price(p float64) bool {
	return p >= 0 && !math.IsNaN(p) && !math.IsInf(p, 0)
}

// Stock checks an absolute unit count.
func Stock(n int) bool {
	return n >= 0 && n <= domain.MaxStock
}

// StockDelta checks a +/- adjustment: non-zero and no larger than MaxStock
// either way.
func StockDelta(d int) bool {
	return d != 0 && d >= -domain.MaxStock && d <= domain.MaxStock
}

// ImageURL accepts absolute http(s) URLs as returned by the image host.
func ImageURL(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", false
	}
	u, err := url.Parse(s)
	if err != nil || u.Host == "" {
		return "", false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", false
	}
	return s, true
}

// Password enforces a simple length window for login checks.
func Password(s string) bool {
	l := len(s)
	return l >= 8 && l <= 64
}
