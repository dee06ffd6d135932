// ABOUTME: mDNS advertisement and lookup for capture stream servers
// ABOUTME: Publishes the stream endpoint and finds other servers on the LAN
package discovery

import (
	"fmt"
	"log"
	"net"
	"strings"
	"time"

	"github.com/hashicorp/mdns"
)

// ServiceType identifies capture stream servers on the local network.
const ServiceType = "_capturekit._tcp"

// DefaultBrowseTimeout bounds a Browse query when no timeout is given.
const DefaultBrowseTimeout = 3 * time.Second

// Server is one capture server seen on the local network.
type Server struct {
	Name string
	Host string
	Port int
}

// Advertiser publishes this server's stream endpoint until Close.
type Advertiser struct {
	server *mdns.Server
}

// Advertise publishes the given instance name and stream port under the
// capture service type on every non-loopback IPv4 interface.
func Advertise(name string, port int) (*Advertiser, error) {
	ips := localIPv4s()
	if len(ips) == 0 {
		return nil, fmt.Errorf("no usable network interface for mDNS")
	}

	service, err := mdns.NewMDNSService(name, ServiceType, "", "", port, ips, []string{"proto=pcm"})
	if err != nil {
		return nil, fmt.Errorf("mdns service: %w", err)
	}
	server, err := mdns.NewServer(&mdns.Config{Zone: service})
	if err != nil {
		return nil, fmt.Errorf("mdns server: %w", err)
	}

	log.Printf("Advertising %s on port %d as %s", name, port, ServiceType)
	return &Advertiser{server: server}, nil
}

// Close withdraws the advertisement.
func (a *Advertiser) Close() {
	a.server.Shutdown()
}

// Browse queries the local network once and returns the capture servers
// that answered within the timeout (DefaultBrowseTimeout if not positive).
func Browse(timeout time.Duration) ([]Server, error) {
	if timeout <= 0 {
		timeout = DefaultBrowseTimeout
	}

	entries := make(chan *mdns.ServiceEntry, 16)
	collected := make(chan []Server, 1)
	go func() {
		var found []Server
		for entry := range entries {
			if entry.AddrV4 == nil {
				continue
			}
			found = append(found, Server{
				Name: instanceName(entry.Name),
				Host: entry.AddrV4.String(),
				Port: entry.Port,
			})
		}
		collected <- found
	}()

	err := mdns.Query(&mdns.QueryParam{
		Service: ServiceType,
		Domain:  "local",
		Timeout: timeout,
		Entries: entries,
	})
	close(entries)
	found := <-collected
	if err != nil {
		return nil, fmt.Errorf("mdns query: %w", err)
	}
	return found, nil
}

// instanceName strips the service and domain suffix from a fully qualified
// mDNS entry name, leaving the advertised instance name.
func instanceName(raw string) string {
	name := strings.TrimSuffix(raw, ".")
	name = strings.TrimSuffix(name, ".local")
	name = strings.TrimSuffix(name, "."+ServiceType)
	return name
}

// localIPv4s returns the IPv4 addresses of all up, non-loopback interfaces.
func localIPv4s() []net.IP {
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil
	}

	var ips []net.IP
	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		for _, addr := range addrs {
			ipnet, ok := addr.(*net.IPNet)
			if !ok || ipnet.IP.IsLoopback() || ipnet.IP.To4() == nil {
				continue
			}
			ips = append(ips, ipnet.IP)
		}
	}
	return ips
}
