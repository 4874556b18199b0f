package discovery

import (
	"context"
	"fmt"
	"net"
	"sort"
	"strings"
	"time"

	"github.com/platformbuilds/mirador-servicehealth/internal/config"
	"github.com/platformbuilds/mirador-servicehealth/pkg/logger"
)

// EndpointsSink is implemented by services that can accept updated endpoint lists
type EndpointsSink interface {
	ReplaceEndpoints([]string)
}

// Resolver is the subset of *net.Resolver used for lookups.
type Resolver interface {
	LookupIPAddr(ctx context.Context, host string) ([]net.IPAddr, error)
	LookupSRV(ctx context.Context, service, proto, name string) (string, []*net.SRV, error)
}

// StartDNSDiscovery resolves cfg.Service once, pushes the result to sink, and
// keeps re-resolving every RefreshSeconds until ctx is done. An empty lookup
// leaves the sink untouched.
func StartDNSDiscovery(ctx context.Context, cfg config.DiscoveryConfig, sink EndpointsSink, log logger.Logger) {
	startWith(ctx, cfg, sink, net.DefaultResolver, log)
}

func startWith(ctx context.Context, cfg config.DiscoveryConfig, sink EndpointsSink, r Resolver, log logger.Logger) {
	if !cfg.Enabled || sink == nil {
		return
	}
	if cfg.RefreshSeconds <= 0 {
		cfg.RefreshSeconds = 30
	}
	if cfg.Scheme == "" {
		cfg.Scheme = "http"
	}

	var last string
	resolveAndPush := func() {
		eps, err := resolveEndpoints(ctx, cfg, r)
		if err != nil || len(eps) == 0 {
			log.Warn("DNS discovery resolved no endpoints", "service", cfg.Service, "error", err)
			return
		}
		if key := strings.Join(eps, ","); key != last {
			last = key
			sink.ReplaceEndpoints(eps)
		}
	}
	resolveAndPush()

	ticker := time.NewTicker(time.Duration(cfg.RefreshSeconds) * time.Second)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				resolveAndPush()
			case <-ctx.Done():
				return
			}
		}
	}()
}

func resolveEndpoints(ctx context.Context, cfg config.DiscoveryConfig, r Resolver) ([]string, error) {
	if cfg.Service == "" {
		return nil, nil
	}
	var out []string
	if cfg.UseSRV {
		service := cfg.Service
		if !strings.HasPrefix(service, "_") {
			service = fmt.Sprintf("_http._tcp.%s", service)
		}
		_, addrs, err := r.LookupSRV(ctx, "", "", service)
		if err != nil {
			return nil, err
		}
		for _, a := range addrs {
			host := strings.TrimSuffix(a.Target, ".")
			out = append(out, fmt.Sprintf("%s://%s", cfg.Scheme, net.JoinHostPort(host, fmt.Sprint(a.Port))))
		}
	} else {
		// A/AAAA records; a headless Service lists one per pod
		ips, err := r.LookupIPAddr(ctx, cfg.Service)
		if err != nil {
			return nil, err
		}
		for _, ip := range ips {
			out = append(out, fmt.Sprintf("%s://%s", cfg.Scheme, net.JoinHostPort(ip.IP.String(), fmt.Sprint(cfg.Port))))
		}
	}

	// de-duplicate + stable order
	m := map[string]struct{}{}
	uniq := make([]string, 0, len(out))
	for _, e := range out {
		if _, ok := m[e]; ok {
			continue
		}
		m[e] = struct{}{}
		uniq = append(uniq, e)
	}
	sort.Strings(uniq)
	return uniq, nil
}
