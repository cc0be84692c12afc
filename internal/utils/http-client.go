package utils

import (
	"net"
	"net/http"
	"net/url"
	"syscall"
	"time"
)

type HTTPClientConfig struct {
	Timeout        time.Duration
	KATimeout      time.Duration
	ProxyURL       string
	ProxyUsername  string
	ProxyPassword  string
	UserAgent      string
	Headers        map[string]string
	HighThreadMode bool              // advanced socket options for high concurrency
	Transport      http.RoundTripper // overrides the built transport, used by tests
}

type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

type RawstHTTPClient struct {
	client *http.Client
	config HTTPClientConfig
}

func NewRawstHTTPClient(cfg HTTPClientConfig) *RawstHTTPClient {
	if cfg.KATimeout == 0 {
		cfg.KATimeout = 90 * time.Second
	}
	if cfg.Headers == nil {
		cfg.Headers = make(map[string]string)
	}
	if cfg.UserAgent == RandomUserAgent {
		cfg.UserAgent = GetRandomUserAgent()
	}
	var transport http.RoundTripper = cfg.Transport
	if transport == nil {
		transport = buildTransport(cfg)
	}
	// Timeout covers the body too, so zero is the default for large files
	return &RawstHTTPClient{
		client: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: transport,
		},
		config: cfg,
	}
}

func buildTransport(cfg HTTPClientConfig) *http.Transport {
	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		IdleConnTimeout:     cfg.KATimeout,
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 100,
		DisableCompression:  true, // ranges address the identity encoding
		MaxConnsPerHost:     0,
	}
	dialer := &net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}
	if cfg.HighThreadMode {
		dialer.Control = func(network, address string, c syscall.RawConn) error {
			return c.Control(func(fd uintptr) {
				setSocketOptions(fd)
			})
		}
	}
	transport.DialContext = dialer.DialContext
	if cfg.ProxyURL != "" {
		proxyURL, err := url.Parse(cfg.ProxyURL)
		if err == nil {
			if cfg.ProxyUsername != "" {
				if cfg.ProxyPassword != "" {
					proxyURL.User = url.UserPassword(cfg.ProxyUsername, cfg.ProxyPassword)
				} else {
					proxyURL.User = url.User(cfg.ProxyUsername)
				}
			}
			transport.Proxy = http.ProxyURL(proxyURL)
		}
	}
	return transport
}

func (d *RawstHTTPClient) Do(req *http.Request) (*http.Response, error) {
	if d.config.UserAgent != "" {
		req.Header.Set("User-Agent", d.config.UserAgent)
	} else {
		req.Header.Set("User-Agent", ToolUserAgent)
	}
	for k, v := range d.config.Headers {
		// never let a user header clobber the range the engine computed
		if http.CanonicalHeaderKey(k) == "Range" {
			continue
		}
		req.Header.Set(k, v)
	}
	return d.client.Do(req)
}
