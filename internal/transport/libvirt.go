package transport

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"net/url"
	"strconv"
	"strings"

	golibvirt "github.com/digitalocean/go-libvirt"

	"github.com/rileyhilliard/kstats/internal/config"
	"github.com/rileyhilliard/kstats/internal/errors"
	"github.com/rileyhilliard/kstats/internal/logger"
	"github.com/rileyhilliard/kstats/internal/stats"
)

// statsMask selects the domstats groups VMMetric is built from.
const statsMask = uint32(golibvirt.DomainStatsState |
	golibvirt.DomainStatsCPUTotal |
	golibvirt.DomainStatsBalloon |
	golibvirt.DomainStatsVCPU |
	golibvirt.DomainStatsInterface |
	golibvirt.DomainStatsBlock)

// DomainStatsSource is one open libvirt connection.
type DomainStatsSource interface {
	AllDomainStats() ([]golibvirt.DomainStatsRecord, error)
	Disconnect() error
}

// LibvirtConnector opens a connection to uri. It must give up and release
// any socket once ctx is done.
type LibvirtConnector func(ctx context.Context, uri *url.URL) (DomainStatsSource, error)

// Libvirt talks to libvirtd over its RPC protocol, with no virsh on the
// remote side.
type Libvirt struct {
	cfg     config.LibvirtConfig
	connect LibvirtConnector
	log     logger.Logger
}

// LibvirtOption customizes a Libvirt transport.
type LibvirtOption func(*Libvirt)

// WithConnector replaces how connections are opened, mainly for tests.
func WithConnector(c LibvirtConnector) LibvirtOption {
	return func(t *Libvirt) { t.connect = c }
}

// WithLibvirtLogger sets the transport's logger.
func WithLibvirtLogger(l logger.Logger) LibvirtOption {
	return func(t *Libvirt) { t.log = l }
}

// NewLibvirt creates a libvirt transport.
func NewLibvirt(cfg config.LibvirtConfig, opts ...LibvirtOption) *Libvirt {
	t := &Libvirt{cfg: cfg, connect: dialLibvirt, log: logger.Noop()}
	for _, o := range opts {
		o(t)
	}
	return t
}

// Name implements stats.Transport.
func (t *Libvirt) Name() string { return "libvirt" }

// Fetch reads stats for every domain on host and renders them as domstats
// text. Cancelling ctx disconnects, which fails any pending RPC.
func (t *Libvirt) Fetch(ctx context.Context, host stats.Host) ([]byte, error) {
	raw := t.cfg.LibvirtURI(string(host))
	uri, err := url.Parse(raw)
	if err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrConfig,
			fmt.Sprintf("Invalid libvirt URI %q", raw),
			"Check libvirt.uri in your config")
	}

	src, err := t.connect(ctx, uri)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, errors.WrapWithCode(err, errors.ErrLibvirt,
			fmt.Sprintf("Can't connect to libvirt at %s", uri.Redacted()),
			"Check that libvirtd listens on that transport and you may connect")
	}
	stop := context.AfterFunc(ctx, func() { _ = src.Disconnect() })
	defer func() {
		if stop() {
			_ = src.Disconnect()
		}
	}()
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	records, err := src.AllDomainStats()
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, errors.WrapWithCode(err, errors.ErrLibvirt,
			fmt.Sprintf("Reading domain stats from %s failed", host),
			"Check libvirtd's log on the host")
	}
	t.log.Debug("%s: %d domain records", host, len(records))

	var buf bytes.Buffer
	if err := WriteRecords(&buf, records); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WriteRecords renders records the way `virsh domstats --raw` prints them,
// with an extra uuid line per domain.
func WriteRecords(w io.Writer, records []golibvirt.DomainStatsRecord) error {
	bw := bufio.NewWriter(w)
	for i, rec := range records {
		if i > 0 {
			fmt.Fprintln(bw)
		}
		fmt.Fprintf(bw, "Domain: '%s'\n", rec.Dom.Name)
		if id := uuidToString(rec.Dom.UUID); id != "" {
			fmt.Fprintf(bw, "  uuid=%s\n", id)
		}
		for _, p := range rec.Params {
			fmt.Fprintf(bw, "  %s=%s\n", p.Field, paramString(p.Value.I))
		}
	}
	return bw.Flush()
}

func paramString(v interface{}) string {
	switch t := v.(type) {
	case string:
		return strings.ReplaceAll(t, "\n", " ")
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32)
	case bool:
		if t {
			return "1"
		}
		return "0"
	default:
		return fmt.Sprint(t)
	}
}

func uuidToString(u golibvirt.UUID) string {
	if len(u) != 16 {
		return ""
	}
	return fmt.Sprintf("%08x-%04x-%04x-%04x-%012x",
		uint32(u[0])<<24|uint32(u[1])<<16|uint32(u[2])<<8|uint32(u[3]),
		uint16(u[4])<<8|uint16(u[5]),
		uint16(u[6])<<8|uint16(u[7]),
		uint16(u[8])<<8|uint16(u[9]),
		uint64(u[10])<<40|uint64(u[11])<<32|uint64(u[12])<<24|uint64(u[13])<<16|uint64(u[14])<<8|uint64(u[15]),
	)
}

// libvirtConn adapts a go-libvirt client to DomainStatsSource.
type libvirtConn struct {
	l *golibvirt.Libvirt
}

const (
	defaultLibvirtPort   = "16509"
	defaultLibvirtSocket = "/var/run/libvirt/libvirt-sock"
)

// dialLibvirt connects over a socket tied to ctx, so both the dial and the
// ConnectOpen handshake end when ctx does.
func dialLibvirt(ctx context.Context, uri *url.URL) (DomainStatsSource, error) {
	network, address, err := libvirtAddress(uri)
	if err != nil {
		return nil, err
	}
	l := golibvirt.NewWithDialer(contextDialer{ctx: ctx, network: network, address: address})
	if err := l.ConnectToURI(golibvirt.RemoteURI(uri)); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, err
	}
	return &libvirtConn{l: l}, nil
}

// libvirtAddress maps a client URI such as qemu+tcp://hv01/system to the
// socket it names. Only the tcp and unix transports are supported.
func libvirtAddress(uri *url.URL) (network, address string, err error) {
	transport := "unix"
	if _, t, ok := strings.Cut(uri.Scheme, "+"); ok {
		transport = t
	} else if uri.Host != "" {
		transport = "tls"
	}

	switch transport {
	case "tcp":
		port := uri.Port()
		if port == "" {
			port = defaultLibvirtPort
		}
		return "tcp", net.JoinHostPort(uri.Hostname(), port), nil
	case "unix":
		sock := uri.Query().Get("socket")
		if sock == "" {
			sock = defaultLibvirtSocket
		}
		return "unix", sock, nil
	default:
		return "", "", fmt.Errorf("unsupported libvirt transport %q (use tcp or unix)", transport)
	}
}

// contextDialer is a go-libvirt socket dialer whose connection is closed
// when ctx ends, which fails any RPC still waiting on it.
type contextDialer struct {
	ctx     context.Context
	network string
	address string
}

func (d contextDialer) Dial() (net.Conn, error) {
	var nd net.Dialer
	conn, err := nd.DialContext(d.ctx, d.network, d.address)
	if err != nil {
		return nil, err
	}
	context.AfterFunc(d.ctx, func() { _ = conn.Close() })
	return conn, nil
}

func (c *libvirtConn) AllDomainStats() ([]golibvirt.DomainStatsRecord, error) {
	doms, _, err := c.l.ConnectListAllDomains(1, 0)
	if err != nil {
		return nil, fmt.Errorf("ConnectListAllDomains: %w", err)
	}
	if len(doms) == 0 {
		return nil, nil
	}
	records, err := c.l.ConnectGetAllDomainStats(doms, statsMask, 0)
	if err != nil {
		return nil, fmt.Errorf("ConnectGetAllDomainStats: %w", err)
	}
	return records, nil
}

func (c *libvirtConn) Disconnect() error {
	return c.l.Disconnect()
}
