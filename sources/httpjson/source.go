package exporthttpjson

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/netip"
	"net/url"
	"strings"
	"syscall"
	"time"

	"github.com/goliatone/go-tableview/dataset"
	"github.com/goliatone/go-tableview/export"
)

const (
	DefaultTimeout      = 30 * time.Second
	DefaultMaxBodyBytes = 16 << 20
	DefaultUserAgent    = "go-tableview"
)

// ErrDeniedAddress marks a dial refused by DenyPrivateNetworks.
var ErrDeniedAddress = errors.New("destination address is not allowed")

// Config configures a Fetcher.
type Config struct {
	Client       *http.Client
	Timeout      time.Duration
	MaxBodyBytes int64
	UserAgent    string
	Logger       export.Logger
	// DenyPrivateNetworks refuses connections to loopback, private,
	// link-local, multicast and unspecified addresses, redirects included.
	// It is checked against the resolved address and ignored when Client is set.
	DenyPrivateNetworks bool
}

// Fetcher issues a single GET per call and decodes the body into a record set.
type Fetcher struct {
	client       *http.Client
	timeout      time.Duration
	maxBodyBytes int64
	userAgent    string
	logger       export.Logger
}

// NewFetcher creates a fetcher with defaults applied.
func NewFetcher(cfg Config) *Fetcher {
	f := &Fetcher{
		client:       cfg.Client,
		timeout:      cfg.Timeout,
		maxBodyBytes: cfg.MaxBodyBytes,
		userAgent:    strings.TrimSpace(cfg.UserAgent),
		logger:       cfg.Logger,
	}
	if f.client == nil {
		f.client = &http.Client{}
		if cfg.DenyPrivateNetworks {
			f.client.Transport = publicOnlyTransport()
		}
	}
	if f.timeout == 0 {
		f.timeout = DefaultTimeout
	}
	if f.maxBodyBytes == 0 {
		f.maxBodyBytes = DefaultMaxBodyBytes
	}
	if f.userAgent == "" {
		f.userAgent = DefaultUserAgent
	}
	if f.logger == nil {
		f.logger = export.NopLogger{}
	}
	return f
}

// Fetch GETs rawURL verbatim and returns the decoded, validated record set.
// Failures carry one of the kinds network, status, decode, heterogeneous or
// canceled.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (dataset.RecordSet, error) {
	set, err := f.fetch(ctx, rawURL)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			f.logger.Debugf("fetch %s canceled", rawURL)
		} else {
			f.logger.Debugf("fetch %s failed: kind=%s err=%v", rawURL, export.KindFromError(err), err)
		}
		return nil, err
	}
	f.logger.Debugf("fetch %s: %d records", rawURL, len(set))
	return set, nil
}

func (f *Fetcher) fetch(ctx context.Context, rawURL string) (dataset.RecordSet, error) {
	target, err := url.Parse(rawURL)
	if err != nil {
		return nil, export.NewError(export.KindNetwork, "invalid url", err)
	}
	if target.Scheme != "http" && target.Scheme != "https" {
		return nil, export.NewError(export.KindNetwork, "invalid url", fmt.Errorf("unsupported scheme %q", target.Scheme))
	}

	if f.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, export.NewError(export.KindNetwork, "create request", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		if errors.Is(err, ErrDeniedAddress) {
			return nil, export.NewError(export.KindNetwork, "destination not allowed", err)
		}
		return nil, transportError(ctx, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, export.NewStatusError(resp.StatusCode, fmt.Sprintf("upstream returned status %d", resp.StatusCode))
	}

	body := &limitedBody{r: resp.Body, remaining: f.maxBodyBytes}
	set, err := dataset.Decode(body)
	if body.exceeded {
		return nil, export.NewError(export.KindDecode, "response body too large",
			fmt.Errorf("limit is %d bytes", f.maxBodyBytes))
	}
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, transportError(ctx, ctxErr)
		}
		return nil, err
	}

	if err := set.Validate(); err != nil {
		return nil, err
	}
	return set, nil
}

func transportError(ctx context.Context, err error) error {
	if errors.Is(ctx.Err(), context.Canceled) {
		return export.NewError(export.KindCanceled, "fetch canceled", context.Canceled)
	}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return export.NewError(export.KindNetwork, "request timed out", err)
	}
	return export.NewError(export.KindNetwork, "request failed", err)
}

func publicOnlyTransport() *http.Transport {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	// A proxy would be dialed instead of the target.
	transport.Proxy = nil
	transport.DialContext = (&net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
		Control:   denyPrivateAddress,
	}).DialContext
	return transport
}

func denyPrivateAddress(network, address string, _ syscall.RawConn) error {
	host, _, err := net.SplitHostPort(address)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrDeniedAddress, address)
	}
	addr, err := netip.ParseAddr(host)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrDeniedAddress, address)
	}
	addr = addr.Unmap()
	if addr.IsLoopback() || addr.IsPrivate() || addr.IsUnspecified() ||
		addr.IsLinkLocalUnicast() || addr.IsLinkLocalMulticast() ||
		addr.IsInterfaceLocalMulticast() || addr.IsMulticast() {
		return fmt.Errorf("%w: %s", ErrDeniedAddress, addr)
	}
	return nil
}

// limitedBody fails reads once more than remaining bytes were requested.
type limitedBody struct {
	r         io.Reader
	remaining int64
	exceeded  bool
}

func (b *limitedBody) Read(p []byte) (int, error) {
	if b.remaining <= 0 {
		var extra [1]byte
		n, err := b.r.Read(extra[:])
		if n > 0 {
			b.exceeded = true
			return 0, errors.New("body limit exceeded")
		}
		return 0, err
	}
	if int64(len(p)) > b.remaining {
		p = p[:b.remaining]
	}
	n, err := b.r.Read(p)
	b.remaining -= int64(n)
	return n, err
}

// Source adapts a Fetcher to export.RowSource for exports that fetch on open.
type Source struct {
	Fetcher *Fetcher
	URL     string
}

// NewSource creates a row source for rawURL.
func NewSource(fetcher *Fetcher, rawURL string) *Source {
	return &Source{Fetcher: fetcher, URL: rawURL}
}

// Open fetches the URL and iterates the decoded records.
func (s *Source) Open(ctx context.Context, req export.ExportRequest) (export.RowIterator, export.Schema, error) {
	_ = req
	if s == nil || s.Fetcher == nil {
		return nil, export.Schema{}, export.NewError(export.KindValidation, "http source requires a fetcher", nil)
	}
	set, err := s.Fetcher.Fetch(ctx, s.URL)
	if err != nil {
		return nil, export.Schema{}, err
	}
	return set.Iterator(), set.Schema(), nil
}
