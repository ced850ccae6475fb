package netutil

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"

	"golang.org/x/net/ipv4"

	"securecast/internal/domain"
)

// Receiver is a joined multicast socket.
type Receiver struct {
	*net.UDPConn
	pc     *ipv4.PacketConn
	group  *net.UDPAddr
	joined []*net.Interface
}

// ListenMulticast binds the group port and joins the group. With an empty
// ifname it joins on every up, multicast-capable interface and falls back to
// the system default when none accept the join.
func ListenMulticast(ctx context.Context, group domain.Endpoint, ifname string) (*Receiver, error) {
	gip := net.ParseIP(group.Host).To4()
	if gip == nil || !gip.IsMulticast() {
		return nil, fmt.Errorf("%q is not an IPv4 multicast address: %w", group.Host, domain.ErrTransportBind)
	}
	lc := net.ListenConfig{Control: reuseControl}
	c, err := lc.ListenPacket(ctx, "udp4", net.JoinHostPort("", strconv.Itoa(group.Port)))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrTransportBind, err)
	}
	udp := c.(*net.UDPConn)
	r := &Receiver{UDPConn: udp, pc: ipv4.NewPacketConn(udp), group: &net.UDPAddr{IP: gip}}

	ifaces, err := candidateInterfaces(ifname)
	if err != nil {
		_ = udp.Close()
		return nil, fmt.Errorf("%w: %v", domain.ErrTransportBind, err)
	}
	for _, ifi := range ifaces {
		if err := r.pc.JoinGroup(ifi, r.group); err == nil {
			r.joined = append(r.joined, ifi)
		}
	}
	if len(r.joined) == 0 {
		if err := r.pc.JoinGroup(nil, r.group); err != nil {
			_ = udp.Close()
			return nil, fmt.Errorf("%w: join %s: %v", domain.ErrTransportBind, gip, err)
		}
		r.joined = append(r.joined, nil)
	}
	return r, nil
}

// Close leaves the group and closes the socket.
func (r *Receiver) Close() error {
	var errs []error
	for _, ifi := range r.joined {
		if err := r.pc.LeaveGroup(ifi, r.group); err != nil {
			errs = append(errs, err)
		}
	}
	errs = append(errs, r.UDPConn.Close())
	return errors.Join(errs...)
}

// Sender is a UDP socket aimed at a multicast group.
type Sender struct {
	conn *net.UDPConn
	dst  *net.UDPAddr
}

// SenderOptions tune outbound multicast.
type SenderOptions struct {
	TTL       int
	Loopback  bool
	Interface string
}

// DialMulticast opens an unbound UDP socket for sending to group.
func DialMulticast(group domain.Endpoint, opts SenderOptions) (*Sender, error) {
	dst, err := net.ResolveUDPAddr("udp4", group.String())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrTransportBind, err)
	}
	conn, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4zero})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrTransportBind, err)
	}
	pc := ipv4.NewPacketConn(conn)
	ttl := opts.TTL
	if ttl <= 0 {
		ttl = 1
	}
	if err := pc.SetMulticastTTL(ttl); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("%w: ttl: %v", domain.ErrTransportBind, err)
	}
	_ = pc.SetMulticastLoopback(opts.Loopback)
	if opts.Interface != "" {
		ifi, err := net.InterfaceByName(opts.Interface)
		if err != nil {
			_ = conn.Close()
			return nil, fmt.Errorf("%w: %v", domain.ErrTransportBind, err)
		}
		if err := pc.SetMulticastInterface(ifi); err != nil {
			_ = conn.Close()
			return nil, fmt.Errorf("%w: %v", domain.ErrTransportBind, err)
		}
	}
	return &Sender{conn: conn, dst: dst}, nil
}

// Send implements domain.Sink.
func (s *Sender) Send(datagram []byte) error {
	_, err := s.conn.WriteToUDP(datagram, s.dst)
	return err
}

func (s *Sender) Close() error { return s.conn.Close() }

func candidateInterfaces(name string) ([]*net.Interface, error) {
	if name != "" {
		ifi, err := net.InterfaceByName(name)
		if err != nil {
			return nil, err
		}
		return []*net.Interface{ifi}, nil
	}
	all, err := net.Interfaces()
	if err != nil {
		return nil, err
	}
	var out []*net.Interface
	for i := range all {
		f := all[i].Flags
		if f&net.FlagUp == 0 || f&net.FlagMulticast == 0 {
			continue
		}
		out = append(out, &all[i])
	}
	return out, nil
}
