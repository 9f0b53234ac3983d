// Copyright (c) 2018 The phcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package mnwire

import (
	"encoding/binary"
	"io"
	"net"
	"strconv"
)

// NetAddress defines the service address a masternode advertises.  Unlike
// the address book entries of the base protocol it carries no services or
// timestamp since both are implied by the announcement that delivers it.
type NetAddress struct {
	IP   net.IP
	Port uint16
}

// NewNetAddressIPPort returns a new NetAddress using the provided IP and
// port.
func NewNetAddressIPPort(ip net.IP, port uint16) *NetAddress {
	return &NetAddress{IP: ip, Port: port}
}

// String returns the address in the canonical host:port form used both for
// display and for the signature preimages, with IPv6 hosts bracketed.
func (na *NetAddress) String() string {
	return net.JoinHostPort(na.IP.String(),
		strconv.FormatUint(uint64(na.Port), 10))
}

// Copy returns a deep copy of the address.
func (na *NetAddress) Copy() *NetAddress {
	ip := make(net.IP, len(na.IP))
	copy(ip, na.IP)
	return &NetAddress{IP: ip, Port: na.Port}
}

var (
	rfc1918Ten         = net.IPNet{IP: net.ParseIP("10.0.0.0"), Mask: net.CIDRMask(8, 32)}
	rfc1918OneNineTwo  = net.IPNet{IP: net.ParseIP("192.168.0.0"), Mask: net.CIDRMask(16, 32)}
	rfc1918OneSevenTwo = net.IPNet{IP: net.ParseIP("172.16.0.0"), Mask: net.CIDRMask(12, 32)}
	zero4              = net.IPNet{IP: net.ParseIP("0.0.0.0"), Mask: net.CIDRMask(8, 32)}
)

// IsRFC1918 returns whether the address is part of one of the IPv4 private
// network ranges.
func (na *NetAddress) IsRFC1918() bool {
	return rfc1918Ten.Contains(na.IP) ||
		rfc1918OneNineTwo.Contains(na.IP) ||
		rfc1918OneSevenTwo.Contains(na.IP)
}

// IsLocal returns whether the address is a loopback or zero-network address.
func (na *NetAddress) IsLocal() bool {
	return na.IP.IsLoopback() || zero4.Contains(na.IP)
}

// readNetAddress reads an encoded address from r.  The IP is a fixed 16
// bytes and the port is big endian, matching the base protocol convention.
func readNetAddress(r io.Reader, na *NetAddress) error {
	var ip [16]byte
	if _, err := io.ReadFull(r, ip[:]); err != nil {
		return err
	}
	var port [2]byte
	if _, err := io.ReadFull(r, port[:]); err != nil {
		return err
	}
	na.IP = net.IP(ip[:])
	na.Port = binary.BigEndian.Uint16(port[:])
	return nil
}

// writeNetAddress encodes na to w.
func writeNetAddress(w io.Writer, na *NetAddress) error {
	var ip [16]byte
	if na.IP != nil {
		copy(ip[:], na.IP.To16())
	}
	if _, err := w.Write(ip[:]); err != nil {
		return err
	}
	var port [2]byte
	binary.BigEndian.PutUint16(port[:], na.Port)
	_, err := w.Write(port[:])
	return err
}
