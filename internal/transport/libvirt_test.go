package transport

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"net"
	"net/url"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	golibvirt "github.com/digitalocean/go-libvirt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rileyhilliard/kstats/internal/config"
	"github.com/rileyhilliard/kstats/internal/errors"
	"github.com/rileyhilliard/kstats/internal/stats"
)

type fakeSource struct {
	mu           sync.Mutex
	records      []golibvirt.DomainStatsRecord
	err          error
	block        chan struct{}
	disconnected int
}

func (f *fakeSource) AllDomainStats() ([]golibvirt.DomainStatsRecord, error) {
	if f.block != nil {
		<-f.block
		return nil, stderrors.New("connection closed")
	}
	return f.records, f.err
}

func (f *fakeSource) Disconnect() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.disconnected++
	if f.block != nil && f.disconnected == 1 {
		close(f.block)
	}
	return nil
}

func (f *fakeSource) disconnects() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.disconnected
}

func param(field string, v interface{}) golibvirt.TypedParam {
	return golibvirt.TypedParam{Field: field, Value: golibvirt.TypedParamValue{I: v}}
}

func sampleRecords() []golibvirt.DomainStatsRecord {
	return []golibvirt.DomainStatsRecord{
		{
			Dom: golibvirt.Domain{
				Name: "db1",
				UUID: golibvirt.UUID{0x12, 0x34, 0x56, 0x78, 0x9a, 0xbc, 0xde, 0xf0, 0x01, 0x23, 0x45, 0x67, 0x89, 0xab, 0xcd, 0xef},
			},
			Params: []golibvirt.TypedParam{
				param("state.state", int32(1)),
				param("state.reason", int32(1)),
				param("cpu.time", uint64(5_000_000_000)),
				param("balloon.current", uint64(2097152)),
				param("balloon.maximum", uint64(4194304)),
				param("vcpu.current", uint32(4)),
				param("block.count", uint32(2)),
				param("block.0.name", "vda"),
				param("block.0.rd.bytes", uint64(100)),
				param("block.1.rd.bytes", uint64(50)),
				param("net.0.rx.bytes", uint64(7)),
			},
		},
		{
			Dom:    golibvirt.Domain{Name: "idle"},
			Params: []golibvirt.TypedParam{param("state.state", int32(5))},
		},
	}
}

func TestWriteRecords_ParsesBack(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteRecords(&buf, sampleRecords()))

	vms, err := stats.ParseDomStats(buf.Bytes())
	require.NoError(t, err)
	require.Len(t, vms, 2)

	db := vms[0]
	assert.Equal(t, "db1", db.Name)
	assert.Equal(t, "12345678-9abc-def0-0123-456789abcdef", db.UUID)
	assert.Equal(t, stats.StateRunning, db.State)
	assert.Equal(t, uint64(5_000_000_000), db.CPUTimeNs)
	assert.Equal(t, uint64(2<<30), db.MemoryBytes)
	assert.Equal(t, uint64(4<<30), db.MemoryMaxBytes)
	assert.Equal(t, uint64(4), db.VCPUs)
	assert.Equal(t, uint64(150), db.DiskReadBytes)
	assert.Equal(t, uint64(7), db.NetRxBytes)

	assert.Equal(t, stats.StateShutoff, vms[1].State)
}

func TestLibvirt_FetchUsesTemplatedURI(t *testing.T) {
	src := &fakeSource{records: sampleRecords()}
	var got *url.URL
	tr := NewLibvirt(config.LibvirtConfig{URI: "qemu+tcp://{host}:16509/system"}, WithConnector(func(_ context.Context, u *url.URL) (DomainStatsSource, error) {
		got = u
		return src, nil
	}))

	out, err := tr.Fetch(context.Background(), "hv07")
	require.NoError(t, err)
	assert.Equal(t, "qemu+tcp://hv07:16509/system", got.String())
	assert.Contains(t, string(out), "Domain: 'db1'")
	assert.Equal(t, 1, src.disconnects())
}

func TestLibvirt_NoDomains(t *testing.T) {
	src := &fakeSource{}
	tr := NewLibvirt(config.DefaultConfig().Libvirt, WithConnector(func(context.Context, *url.URL) (DomainStatsSource, error) {
		return src, nil
	}))

	out, err := tr.Fetch(context.Background(), "hv01")
	require.NoError(t, err)

	vms, err := stats.ParseDomStats(out)
	require.NoError(t, err)
	assert.Empty(t, vms)
}

func TestLibvirt_ConnectError(t *testing.T) {
	tr := NewLibvirt(config.DefaultConfig().Libvirt, WithConnector(func(context.Context, *url.URL) (DomainStatsSource, error) {
		return nil, stderrors.New("dial tcp: connection refused")
	}))

	_, err := tr.Fetch(context.Background(), "hv01")
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrLibvirt))
}

func TestLibvirt_RPCError(t *testing.T) {
	src := &fakeSource{err: stderrors.New("virConnectGetAllDomainStats failed")}
	tr := NewLibvirt(config.DefaultConfig().Libvirt, WithConnector(func(context.Context, *url.URL) (DomainStatsSource, error) {
		return src, nil
	}))

	_, err := tr.Fetch(context.Background(), "hv01")
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrLibvirt))
	assert.Equal(t, 1, src.disconnects())
}

func TestLibvirt_CancelDisconnects(t *testing.T) {
	src := &fakeSource{block: make(chan struct{})}
	tr := NewLibvirt(config.DefaultConfig().Libvirt, WithConnector(func(context.Context, *url.URL) (DomainStatsSource, error) {
		return src, nil
	}))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := tr.Fetch(ctx, "hv01")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 1, src.disconnects())
}

func TestLibvirt_TimedOutConnectsStayWithinConcurrency(t *testing.T) {
	var pending, peak atomic.Int32
	tr := NewLibvirt(config.DefaultConfig().Libvirt, WithConnector(func(ctx context.Context, _ *url.URL) (DomainStatsSource, error) {
		n := pending.Add(1)
		defer pending.Add(-1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		<-ctx.Done()
		return nil, ctx.Err()
	}))

	hosts := make([]stats.Host, 10)
	for i := range hosts {
		hosts[i] = stats.Host(fmt.Sprintf("hv%02d", i+1))
	}
	d := stats.NewDispatcher(stats.NewCollector(tr, 20*time.Millisecond), 2)

	reports := d.Dispatch(context.Background(), hosts)

	require.Len(t, reports, 10)
	for _, r := range reports {
		assert.Equal(t, stats.ErrorTimeout, r.Kind(), r.Host())
	}
	assert.Equal(t, int32(0), pending.Load(), "connects outlived their hosts")
	assert.LessOrEqual(t, peak.Load(), int32(2))
}

func TestDialLibvirt_HandshakeEndsWithContext(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	closed := make(chan struct{})
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		// never answer ConnectOpen; wait for the client to hang up
		_, _ = io.Copy(io.Discard, conn)
		conn.Close()
		close(closed)
	}()

	uri, err := url.Parse("qemu+tcp://" + ln.Addr().String() + "/system")
	require.NoError(t, err)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	src, err := dialLibvirt(ctx, uri)

	assert.Nil(t, src)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 2*time.Second)
	select {
	case <-closed:
	case <-time.After(2 * time.Second):
		t.Fatal("connection to libvirtd was left open")
	}
}

func TestLibvirtAddress(t *testing.T) {
	tests := []struct {
		uri     string
		network string
		address string
		wantErr bool
	}{
		{"qemu+tcp://hv01/system", "tcp", "hv01:16509", false},
		{"qemu+tcp://hv01:16510/system", "tcp", "hv01:16510", false},
		{"qemu+tcp://[fd00::1]/system", "tcp", "[fd00::1]:16509", false},
		{"qemu:///system", "unix", "/var/run/libvirt/libvirt-sock", false},
		{"qemu+unix:///system?socket=/tmp/lv.sock", "unix", "/tmp/lv.sock", false},
		{"qemu+ssh://hv01/system", "", "", true},
		{"qemu://hv01/system", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.uri, func(t *testing.T) {
			u, err := url.Parse(tt.uri)
			require.NoError(t, err)

			network, address, err := libvirtAddress(u)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.network, network)
			assert.Equal(t, tt.address, address)
		})
	}
}
