// Package probe verifies a deployed block policy from the outside: it
// resolves sampled blocked domains against the gateway resolver and
// reports any that still answer with a real address.
package probe

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/miekg/dns"

	logpkg "github.com/haukened/blocksync/internal/sync/common/log"
	"github.com/haukened/blocksync/internal/sync/domain"
)

// Result is the verdict for one probed domain.
type Result struct {
	Domain  domain.Hostname
	Blocked bool
	Rcode   int
	Answers []string
}

// Prober issues DNS A queries against a resolver address.
type Prober struct {
	resolver string
	timeout  time.Duration
	client   *dns.Client
	logger   logpkg.Logger
}

// Options defines configuration parameters for the prober.
type Options struct {
	// Resolver is the gateway DNS endpoint in ip:port form.
	Resolver string
	Timeout  time.Duration
	Logger   logpkg.Logger
}

// New creates a prober. Returns an error when the resolver address is
// missing or malformed. Default timeout is 3 seconds.
func New(opts Options) (*Prober, error) {
	if opts.Resolver == "" {
		return nil, fmt.Errorf("resolver address is required")
	}
	if _, _, err := net.SplitHostPort(opts.Resolver); err != nil {
		return nil, fmt.Errorf("invalid resolver address %q: %w", opts.Resolver, err)
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 3 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = logpkg.GetLogger()
	}
	return &Prober{
		resolver: opts.Resolver,
		timeout:  opts.Timeout,
		client:   &dns.Client{Timeout: opts.Timeout},
		logger:   opts.Logger,
	}, nil
}

// Verify probes each sample and returns the per-domain results. A
// domain counts as blocked when the resolver answers NXDOMAIN, returns
// no A records, or returns only sinkhole addresses (0.0.0.0 / ::).
// Probe transport failures fail the whole run: no answer is not
// evidence of blocking.
func (p *Prober) Verify(ctx context.Context, samples []domain.Hostname) ([]Result, error) {
	results := make([]Result, 0, len(samples))
	for _, s := range samples {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		res, err := p.probeOne(ctx, s)
		if err != nil {
			return results, fmt.Errorf("probe %s: %w", s, err)
		}
		if res.Blocked {
			p.logger.Debug(map[string]any{"domain": s.String(), "rcode": res.Rcode}, "probe_blocked")
		} else {
			p.logger.Warn(map[string]any{"domain": s.String(), "answers": res.Answers}, "probe_not_blocked")
		}
		results = append(results, res)
	}
	return results, nil
}

func (p *Prober) probeOne(ctx context.Context, name domain.Hostname) (Result, error) {
	m := new(dns.Msg)
	m.SetQuestion(dns.Fqdn(name.String()), dns.TypeA)
	m.RecursionDesired = true

	reply, _, err := p.client.ExchangeContext(ctx, m, p.resolver)
	if err != nil {
		return Result{}, err
	}

	res := Result{Domain: name, Rcode: reply.Rcode}
	if reply.Rcode == dns.RcodeNameError {
		res.Blocked = true
		return res, nil
	}
	if reply.Rcode != dns.RcodeSuccess {
		return res, fmt.Errorf("unexpected rcode %s", dns.RcodeToString[reply.Rcode])
	}

	blocked := true
	for _, rr := range reply.Answer {
		var ip net.IP
		switch a := rr.(type) {
		case *dns.A:
			ip = a.A
		case *dns.AAAA:
			ip = a.AAAA
		default:
			continue
		}
		res.Answers = append(res.Answers, ip.String())
		if !ip.IsUnspecified() {
			blocked = false
		}
	}
	// NOERROR with no address records is treated as blocked: the
	// gateway swallowed the answer
	res.Blocked = blocked
	return res, nil
}

// Sample picks up to n evenly spaced entries so a verification run
// touches every region of the partition, not just the head.
func Sample(domains []domain.Hostname, n int) []domain.Hostname {
	if n <= 0 || len(domains) == 0 {
		return nil
	}
	if len(domains) <= n {
		out := make([]domain.Hostname, len(domains))
		copy(out, domains)
		return out
	}
	out := make([]domain.Hostname, 0, n)
	step := len(domains) / n
	for i := 0; i < n; i++ {
		out = append(out, domains[i*step])
	}
	return out
}
