// Package netcheck answers whether the network looks usable before the
// update notifier spends a poll on it.
package netcheck

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/miekg/dns"
	"github.com/rs/zerolog"
)

// ResolvConf is read when no resolvers are configured.
const ResolvConf = "/etc/resolv.conf"

// Config holds connectivity probe settings
type Config struct {
	URL       string   // the host of this URL is resolved
	Resolvers []string // host or host:port; empty = ResolvConf
	Timeout   time.Duration
	CacheTTL  time.Duration
}

// Checker probes connectivity by resolving the update host. Any DNS
// response, NXDOMAIN included, counts as online.
type Checker struct {
	host      string
	resolvers []string
	client    *dns.Client
	ttl       time.Duration
	now       func() time.Time
	logger    zerolog.Logger

	mu        sync.Mutex
	online    bool
	checkedAt time.Time
}

// New creates a connectivity checker
func New(cfg Config, logger zerolog.Logger) (*Checker, error) {
	u, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid url: %w", err)
	}
	if u.Hostname() == "" {
		return nil, fmt.Errorf("url %q has no host", cfg.URL)
	}

	logger = logger.With().Str("component", "netcheck").Logger()

	resolvers := cfg.Resolvers
	if len(resolvers) == 0 {
		resolvers = systemResolvers(logger)
	}

	c := &Checker{
		host:      u.Hostname(),
		resolvers: normalize(resolvers),
		client:    &dns.Client{Timeout: cfg.Timeout},
		ttl:       cfg.CacheTTL,
		now:       time.Now,
		logger:    logger,
	}
	return c, nil
}

// Online reports whether the update host can be resolved. Literal IPs and
// localhost are always online, as is a machine with no known resolver.
func (c *Checker) Online(ctx context.Context) bool {
	if isLocal(c.host) || len(c.resolvers) == 0 {
		return true
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if !c.checkedAt.IsZero() && now.Sub(c.checkedAt) < c.ttl {
		return c.online
	}

	c.online = c.probe(ctx)
	c.checkedAt = now
	return c.online
}

func (c *Checker) probe(ctx context.Context) bool {
	msg := new(dns.Msg)
	msg.SetQuestion(dns.Fqdn(c.host), dns.TypeA)

	for _, resolver := range c.resolvers {
		resp, rtt, err := c.client.ExchangeContext(ctx, msg, resolver)
		if err == nil && resp != nil {
			c.logger.Debug().
				Str("resolver", resolver).
				Str("rcode", dns.RcodeToString[resp.Rcode]).
				Dur("rtt", rtt).
				Msg("Connectivity probe answered")
			return true
		}
		c.logger.Debug().Err(err).Str("resolver", resolver).Msg("Connectivity probe failed, trying next")
	}
	return false
}

func systemResolvers(logger zerolog.Logger) []string {
	conf, err := dns.ClientConfigFromFile(ResolvConf)
	if err != nil {
		logger.Debug().Err(err).Msg("No system resolvers, assuming online")
		return nil
	}
	resolvers := make([]string, 0, len(conf.Servers))
	for _, s := range conf.Servers {
		resolvers = append(resolvers, net.JoinHostPort(s, conf.Port))
	}
	return resolvers
}

func normalize(resolvers []string) []string {
	out := make([]string, 0, len(resolvers))
	for _, r := range resolvers {
		r = strings.TrimSpace(r)
		if r == "" {
			continue
		}
		if _, _, err := net.SplitHostPort(r); err != nil {
			r = net.JoinHostPort(strings.Trim(r, "[]"), "53")
		}
		out = append(out, r)
	}
	return out
}

func isLocal(host string) bool {
	if net.ParseIP(host) != nil {
		return true
	}
	host = strings.ToLower(strings.TrimSuffix(host, "."))
	return host == "localhost" || strings.HasSuffix(host, ".localhost")
}
