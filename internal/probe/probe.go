// Package probe implements a minimal ICMP echo prober that records its
// response events to a capture log, producing the same record sequence a
// measurement run would: destination address, socket name, a time-of-day
// mark per attempt, then the received TTL and packet or a timeout.
package probe

import (
	"context"
	"fmt"
	"net"
	"net/netip"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/net/icmp"
	"golang.org/x/net/ipv4"
	"golang.org/x/net/ipv6"

	"firestige.xyz/netreplay/pkg/response"
)

// Config describes one recording run.
type Config struct {
	Target   string
	Count    int
	Interval time.Duration
	Timeout  time.Duration
	IPv6     bool
	Tool     string
}

// Prober sends ICMP echoes and appends the observed response events to a
// capture log through the record writer.
type Prober struct {
	cfg    Config
	w      *response.Writer
	layout response.Layout
	log    logrus.FieldLogger
}

func New(cfg Config, w *response.Writer, layout response.Layout, log logrus.FieldLogger) *Prober {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Prober{cfg: cfg, w: w, layout: layout, log: log.WithField("tool", cfg.Tool)}
}

// Run resolves the target, probes it cfg.Count times and records every
// response event. The recorded log replays with the same Session API the
// probes consume.
func (p *Prober) Run(ctx context.Context) error {
	network, listen := "ip4", "udp4"
	if p.cfg.IPv6 {
		network, listen = "ip6", "udp6"
	}

	dst, err := net.ResolveIPAddr(network, p.cfg.Target)
	if err != nil {
		return fmt.Errorf("resolving %s: %w", p.cfg.Target, err)
	}
	dstSA, err := sockaddrFromIP(dst.IP, 0)
	if err != nil {
		return err
	}
	if err := p.w.Write(response.KindDstAddr, response.EncodeSockaddr(p.layout, dstSA)); err != nil {
		return err
	}

	conn, err := icmp.ListenPacket(listen, "")
	if err != nil {
		return fmt.Errorf("opening ICMP socket: %w", err)
	}
	defer conn.Close()

	local := conn.LocalAddr().(*net.UDPAddr)
	localSA, err := sockaddrFromIP(local.IP, uint16(local.Port))
	if err != nil {
		return err
	}
	if err := p.w.Write(response.KindSockname, response.EncodeSockaddr(p.layout, localSA)); err != nil {
		return err
	}

	var cmErr error
	if p.cfg.IPv6 {
		cmErr = conn.IPv6PacketConn().SetControlMessage(ipv6.FlagHopLimit, true)
	} else {
		cmErr = conn.IPv4PacketConn().SetControlMessage(ipv4.FlagTTL, true)
	}
	if cmErr != nil {
		// Replies still record; only the received-TTL records go missing.
		p.log.WithError(cmErr).Warn("cannot enable TTL control messages")
	}

	id := os.Getpid() & 0xffff
	for seq := 0; seq < p.cfg.Count; seq++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := p.probeOnce(conn, dst, id, seq); err != nil {
			return err
		}
		if seq+1 < p.cfg.Count {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(p.cfg.Interval):
			}
		}
	}
	return p.w.Flush()
}

func (p *Prober) probeOnce(conn *icmp.PacketConn, dst *net.IPAddr, id, seq int) error {
	now := time.Now()
	tv := response.Timeval{Sec: now.Unix(), Usec: int64(now.Nanosecond() / 1000)}
	if err := p.w.Write(response.KindTimeofday, response.EncodeTimeval(p.layout, tv)); err != nil {
		return err
	}

	echoType := icmp.Type(ipv4.ICMPTypeEcho)
	if p.cfg.IPv6 {
		echoType = ipv6.ICMPTypeEchoRequest
	}
	msg := icmp.Message{
		Type: echoType,
		Body: &icmp.Echo{ID: id, Seq: seq, Data: []byte("netreplay probe")},
	}
	wire, err := msg.Marshal(nil)
	if err != nil {
		return fmt.Errorf("marshaling echo request: %w", err)
	}
	if _, err := conn.WriteTo(wire, &net.UDPAddr{IP: dst.IP}); err != nil {
		return fmt.Errorf("sending echo request: %w", err)
	}

	conn.SetReadDeadline(time.Now().Add(p.cfg.Timeout))
	buf := make([]byte, 1500)

	var (
		n   int
		ttl int
		has bool
	)
	if p.cfg.IPv6 {
		var cm *ipv6.ControlMessage
		n, cm, _, err = conn.IPv6PacketConn().ReadFrom(buf)
		if cm != nil {
			ttl, has = cm.HopLimit, true
		}
	} else {
		var cm *ipv4.ControlMessage
		n, cm, _, err = conn.IPv4PacketConn().ReadFrom(buf)
		if cm != nil {
			ttl, has = cm.TTL, true
		}
	}
	if err != nil {
		if ne, ok := err.(net.Error); ok && ne.Timeout() {
			p.log.WithField("seq", seq).Warn("echo timed out")
			return p.w.Write(response.KindTimeout, nil)
		}
		return fmt.Errorf("reading echo reply: %w", err)
	}

	if has {
		var scalar [4]byte
		p.layout.Order.PutUint32(scalar[:], uint32(ttl))
		if err := p.w.Write(response.KindRcvdTTL, scalar[:]); err != nil {
			return err
		}
	}
	p.log.WithFields(logrus.Fields{"seq": seq, "bytes": n, "ttl": ttl}).Debug("echo reply")
	return p.w.Write(response.KindPacket, buf[:n])
}

func sockaddrFromIP(ip net.IP, port uint16) (response.Sockaddr, error) {
	if v4 := ip.To4(); v4 != nil {
		addr, _ := netip.AddrFromSlice(v4)
		return response.Sockaddr{Family: response.FamilyIPv4, Addr: addr, Port: port}, nil
	}
	if v6 := ip.To16(); v6 != nil {
		addr, _ := netip.AddrFromSlice(v6)
		return response.Sockaddr{Family: response.FamilyIPv6, Addr: addr, Port: port}, nil
	}
	return response.Sockaddr{}, fmt.Errorf("unsupported address: %s", ip)
}
