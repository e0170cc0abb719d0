package auth

import (
	"net"
	"net/http"
	"os"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	errs "github.com/taiyoimmt-ops/tiktok-growth-director/pkg/errors"
	"github.com/taiyoimmt-ops/tiktok-growth-director/pkg/logging"
)

// Operators resolves client addresses to the operator names allowed to
// trigger runs. The allowlist file maps an IP or CIDR to a name:
//
//	"10.0.1.5": taiyo
//	"192.168.10.0/24": studio
type Operators struct {
	mu   sync.RWMutex
	byIP map[string]string
	nets []namedNet
	path string
	log  *logging.ComponentLogger
}

type namedNet struct {
	net  *net.IPNet
	name string
}

// LoadOperators reads the allowlist at path.
func LoadOperators(path string, logger *logging.Logger) (*Operators, error) {
	if logger == nil {
		logger = logging.Nop()
	}
	o := &Operators{path: path, log: logger.WithComponent("auth")}
	if err := o.Reload(); err != nil {
		return nil, err
	}
	return o, nil
}

// Reload re-reads the allowlist from disk. On error the previous entries
// stay in effect.
func (o *Operators) Reload() error {
	const op = "auth.Operators.Reload"
	data, err := os.ReadFile(o.path)
	if err != nil {
		return errs.NewValidation(op, "operators file unreadable", err)
	}
	var raw map[string]string
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return errs.NewValidation(op, "operators file is not a yaml map", err)
	}
	byIP := make(map[string]string, len(raw))
	var nets []namedNet
	for key, name := range raw {
		key = strings.TrimSpace(key)
		if strings.Contains(key, "/") {
			_, n, err := net.ParseCIDR(key)
			if err != nil {
				return errs.NewValidation(op, "bad CIDR "+key, err)
			}
			nets = append(nets, namedNet{net: n, name: name})
			continue
		}
		if net.ParseIP(key) == nil {
			return errs.NewValidation(op, "bad IP "+key, nil)
		}
		byIP[key] = name
	}

	o.mu.Lock()
	o.byIP = byIP
	o.nets = nets
	o.mu.Unlock()
	o.log.Info("operators loaded", logging.String("path", o.path), logging.Int("entries", len(raw)))
	return nil
}

// Resolve returns the operator behind r. Exact addresses win over ranges.
func (o *Operators) Resolve(r *http.Request) (string, bool) {
	ip := ClientIP(r)
	o.mu.RLock()
	defer o.mu.RUnlock()
	if name, ok := o.byIP[ip]; ok {
		return name, true
	}
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return "", false
	}
	for _, n := range o.nets {
		if n.net.Contains(parsed) {
			return n.name, true
		}
	}
	return "", false
}

// ClientIP extracts the caller's address, honouring reverse proxy headers.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if first = strings.TrimSpace(first); first != "" {
			return first
		}
	}
	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
		return xri
	}
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}
