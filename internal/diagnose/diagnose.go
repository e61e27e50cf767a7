// Package diagnose collects network facts that explain failed captures:
// proxy settings, DNS resolution of the target and the egress IP.
package diagnose

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/go-logr/logr"
	"golang.org/x/net/http/httpproxy"

	"snapshot-stitcher/internal/retry"
)

const DefaultEgressEndpoint = "https://api.ipify.org"

var proxyVariables = []string{
	"HTTP_PROXY",
	"HTTPS_PROXY",
	"NO_PROXY",
	"http_proxy",
	"https_proxy",
	"no_proxy",
}

type Resolver interface {
	LookupHost(ctx context.Context, host string) ([]string, error)
}

type Diagnoser struct {
	Resolver       Resolver
	Client         *http.Client
	EgressEndpoint string
	// Getenv defaults to os.Getenv.
	Getenv func(string) string
}

func NewDiagnoser() *Diagnoser {
	return &Diagnoser{
		Resolver:       net.DefaultResolver,
		Client:         retry.NewClient(10*time.Second, 2),
		EgressEndpoint: DefaultEgressEndpoint,
		Getenv:         os.Getenv,
	}
}

// Variable holds a proxy environment variable with any password masked.
type Variable struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

type Report struct {
	ProxyVariables []Variable `json:"proxyVariables"`
	// Proxy is the proxy the environment selects for the target, empty for direct.
	Proxy     string   `json:"proxy,omitempty"`
	Host      string   `json:"host"`
	Addresses []string `json:"addresses,omitempty"`
	DNSError  string   `json:"dnsError,omitempty"`
	EgressIP  string   `json:"egressIP,omitempty"`
	EgressErr string   `json:"egressError,omitempty"`
}

// Run never fails; every probe records its own error in the report.
func (d *Diagnoser) Run(ctx context.Context, target string) *Report {
	getenv := d.Getenv
	if getenv == nil {
		getenv = os.Getenv
	}

	report := &Report{}
	for _, key := range proxyVariables {
		if value := getenv(key); value != "" {
			if !strings.EqualFold(key, "NO_PROXY") {
				value = redactProxy(value)
			}
			report.ProxyVariables = append(report.ProxyVariables, Variable{Key: key, Value: value})
		}
	}

	u, err := url.Parse(target)
	if err != nil {
		report.DNSError = err.Error()
		return report
	}
	report.Host = u.Hostname()

	proxyConfig := &httpproxy.Config{
		HTTPProxy:  firstNonEmpty(getenv("HTTP_PROXY"), getenv("http_proxy")),
		HTTPSProxy: firstNonEmpty(getenv("HTTPS_PROXY"), getenv("https_proxy")),
		NoProxy:    firstNonEmpty(getenv("NO_PROXY"), getenv("no_proxy")),
	}
	if proxy, err := proxyConfig.ProxyFunc()(u); err == nil && proxy != nil {
		report.Proxy = proxy.Redacted()
	}

	if addresses, err := d.Resolver.LookupHost(ctx, report.Host); err != nil {
		report.DNSError = err.Error()
	} else {
		report.Addresses = addresses
	}

	if ip, err := d.egressIP(ctx); err != nil {
		report.EgressErr = err.Error()
	} else {
		report.EgressIP = ip
	}

	return report
}

func (d *Diagnoser) egressIP(ctx context.Context) (string, error) {
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, d.EgressEndpoint, nil)
	if err != nil {
		return "", err
	}
	response, err := d.Client.Do(request)
	if err != nil {
		return "", err
	}
	defer response.Body.Close()

	if response.StatusCode != http.StatusOK {
		return "", fmt.Errorf("egress endpoint responded %s", response.Status)
	}
	body, err := io.ReadAll(io.LimitReader(response.Body, 256))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(body)), nil
}

// Log writes the report the way an operator reads it.
func (r *Report) Log(log logr.Logger) {
	log.Info("diagnostics enabled")
	for _, v := range r.ProxyVariables {
		log.Info("proxy variable", "key", v.Key, "value", v.Value)
	}
	if r.Proxy != "" {
		log.Info("effective proxy", "host", r.Host, "proxy", r.Proxy)
	}
	if r.DNSError != "" {
		log.Info("DNS lookup failed", "host", r.Host, "error", r.DNSError)
	} else {
		log.Info("DNS", "host", r.Host, "addresses", strings.Join(r.Addresses, ", "))
	}
	if r.EgressErr != "" {
		log.Info("egress IP check failed", "error", r.EgressErr)
	} else {
		log.Info("egress IP", "ip", r.EgressIP)
	}
}

// redactProxy masks the password of a proxy URL like url.URL.Redacted. Scheme-less values
// are read as http, the way httpproxy does.
func redactProxy(value string) string {
	raw := value
	if !strings.Contains(value, "://") {
		raw = "http://" + value
	}
	u, err := url.Parse(raw)
	if err != nil {
		if i := strings.LastIndex(value, "@"); i >= 0 {
			return "xxxxx" + value[i:]
		}
		return value
	}
	if raw != value {
		return strings.TrimPrefix(u.Redacted(), "http://")
	}
	return u.Redacted()
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
