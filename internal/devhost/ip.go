package devhost

import (
	"context"
	"errors"
	"net"
	"sync"
	"time"

	natlib "github.com/libp2p/go-nat"
)

// IPResolver returns the address players should connect to.
type IPResolver func(ctx context.Context) (string, error)

// NATResolver asks the local UPnP/NAT-PMP gateway for its external address
// and falls back to the outbound interface address. Gateway discovery runs
// once per process.
type NATResolver struct {
	once    sync.Once
	gateway natlib.NAT
	err     error
}

func (r *NATResolver) discover(ctx context.Context) (natlib.NAT, error) {
	r.once.Do(func() {
		c, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		r.gateway, r.err = natlib.DiscoverGateway(c)
	})
	return r.gateway, r.err
}

// Resolve implements IPResolver.
func (r *NATResolver) Resolve(ctx context.Context) (string, error) {
	if gw, err := r.discover(ctx); err == nil && gw != nil {
		if ip, err := gw.GetExternalAddress(); err == nil && ip != nil {
			return ip.String(), nil
		}
	}
	return outboundIP()
}

// outboundIP finds the interface used for the default route. UDP dial sends
// no packets.
func outboundIP() (string, error) {
	conn, err := net.Dial("udp", "192.0.2.1:80")
	if err != nil {
		return "", err
	}
	defer conn.Close()
	addr, ok := conn.LocalAddr().(*net.UDPAddr)
	if !ok || addr.IP == nil {
		return "", errors.New("no outbound address")
	}
	return addr.IP.String(), nil
}
