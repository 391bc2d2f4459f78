package proxypool

import (
	"bufio"
	"net/url"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/pkg/errors"
)

// Pool is the list of outbound proxies read from proxies.txt, one URL per
// line. Blank lines and lines starting with # are ignored.
type Pool struct {
	path    string
	mu      sync.RWMutex
	proxies []string
}

func NewPool(path string) (*Pool, error) {
	p := &Pool{path: path}
	if err := p.load(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Pool) FilePath() string {
	return p.path
}

func (p *Pool) All() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]string, len(p.proxies))
	copy(out, p.proxies)
	return out
}

// Resolve maps a proxy reference to a URL. The reference is either an index
// into the pool or a literal proxy URL. An empty reference selects the
// first pooled proxy, or none when the pool is empty.
func (p *Pool) Resolve(ref string) (string, bool, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	ref = strings.TrimSpace(ref)
	if ref == "" {
		if len(p.proxies) == 0 {
			return "", false, nil
		}
		return p.proxies[0], true, nil
	}
	if idx, err := strconv.Atoi(ref); err == nil {
		if idx < 0 || idx >= len(p.proxies) {
			return "", false, errors.Errorf("proxy index %d out of range (pool has %d)", idx, len(p.proxies))
		}
		return p.proxies[idx], true, nil
	}
	if err := validate(ref); err != nil {
		return "", false, err
	}
	return ref, true, nil
}

func (p *Pool) load() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	f, err := os.Open(p.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return errors.Wrap(err, "open proxy list")
	}
	defer f.Close()

	var proxies []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if err := validate(line); err != nil {
			return errors.Wrapf(err, "%s", p.path)
		}
		proxies = append(proxies, line)
	}
	if err := scanner.Err(); err != nil {
		return err
	}
	p.proxies = proxies
	return nil
}

func validate(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return errors.Wrapf(err, "invalid proxy %q", raw)
	}
	switch u.Scheme {
	case "http", "https", "socks5":
	default:
		return errors.Errorf("invalid proxy %q: unsupported scheme %q", raw, u.Scheme)
	}
	if u.Host == "" {
		return errors.Errorf("invalid proxy %q: missing host", raw)
	}
	return nil
}
