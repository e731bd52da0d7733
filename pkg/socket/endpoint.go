package socket

import (
	"net/netip"
	"strconv"

	"golang.org/x/sys/unix"

	"IP-Echo/pkg/sockerr"
)

// Endpoint is an IPv4 address and port.
type Endpoint struct {
	Addr netip.Addr
	Port uint16
}

// ParseEndpoint validates a dotted-quad address and a port in [0, 65535]. It
// touches no socket, so a bad destination fails before anything is opened.
//
// Only the four-part decimal form is accepted. The shorthand forms that
// inet_aton allows, such as "127.1" or "0x7f000001", are rejected.
func ParseEndpoint(address string, port int) (Endpoint, error) {
	addr, err := netip.ParseAddr(address)
	if err != nil {
		return Endpoint{}, sockerr.AddressParse(address, err.Error())
	}
	addr = addr.Unmap()
	if !addr.Is4() {
		return Endpoint{}, sockerr.AddressParse(address, "not an IPv4 address")
	}
	if port < 0 || port > 65535 {
		return Endpoint{}, sockerr.AddressParse(strconv.Itoa(port), "port out of range")
	}
	return Endpoint{Addr: addr, Port: uint16(port)}, nil
}

func (e Endpoint) String() string {
	return netip.AddrPortFrom(e.Addr, e.Port).String()
}

func (e Endpoint) sockaddr() *unix.SockaddrInet4 {
	return &unix.SockaddrInet4{Port: int(e.Port), Addr: e.Addr.As4()}
}

func endpointOf(sa unix.Sockaddr) Endpoint {
	if in4, ok := sa.(*unix.SockaddrInet4); ok {
		return Endpoint{Addr: netip.AddrFrom4(in4.Addr), Port: uint16(in4.Port)}
	}
	return Endpoint{Addr: netip.IPv4Unspecified()}
}
