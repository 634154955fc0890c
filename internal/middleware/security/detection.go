package security

import (
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"

	"github.com/samber/lo"
)

const maxURLLength = 2048

var (
	suspiciousPatterns = []string{
		"../", "..\\", ".env", "wp-admin", "phpmyadmin",
		".git", ".ssh", "<script", "javascript:", "union select",
		"etc/passwd", "cmd.exe",
	}
	scannerAgents  = []string{"sqlmap", "nmap", "nikto", "gobuster", "dirb", "masscan"}
	unusualMethods = []string{"TRACE", "TRACK", "DEBUG", "CONNECT"}
)

// Detector flags requests that look like probes. It never blocks; callers
// decide what to do with a hit.
type Detector struct {
	hits int64
}

func NewDetector() *Detector {
	return &Detector{}
}

// Suspicious reports whether r matches a probe pattern and, if so, why.
func (d *Detector) Suspicious(r *http.Request) (bool, string) {
	reason := d.reason(r)
	if reason == "" {
		return false, ""
	}
	atomic.AddInt64(&d.hits, 1)
	return true, reason
}

func (d *Detector) reason(r *http.Request) string {
	query, err := url.QueryUnescape(r.URL.RawQuery)
	if err != nil {
		query = r.URL.RawQuery
	}
	target := strings.ToLower(r.URL.Path + "?" + query)
	if p, ok := lo.Find(suspiciousPatterns, func(p string) bool { return strings.Contains(target, p) }); ok {
		return "pattern " + p
	}
	ua := strings.ToLower(r.Header.Get("User-Agent"))
	if a, ok := lo.Find(scannerAgents, func(a string) bool { return strings.Contains(ua, a) }); ok {
		return "scanner " + a
	}
	if lo.Contains(unusualMethods, r.Method) {
		return "method " + r.Method
	}
	if len(r.URL.String()) > maxURLLength {
		return "url too long"
	}
	if strings.Count(r.Header.Get("X-Forwarded-For"), ",") > 5 {
		return "forwarding chain too long"
	}
	return ""
}

// Hits returns how many requests were flagged.
func (d *Detector) Hits() int64 {
	return atomic.LoadInt64(&d.hits)
}
