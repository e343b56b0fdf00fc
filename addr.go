package netreactor

import (
	"net"
	"strconv"
)

func formatIPPort(ip []byte, port int) string {
	return net.JoinHostPort(net.IP(ip).String(), strconv.Itoa(port))
}
