package discovery

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"time"

	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"

	"github.com/fkcurrie/ledmatrix-viewer/internal/frame"
	"github.com/fkcurrie/ledmatrix-viewer/internal/types"
)

// Scanner represents a network scanner for discovering frame endpoints
type Scanner struct {
	config types.DiscoveryConfig
}

// NewScanner creates a new network scanner
func NewScanner(config types.DiscoveryConfig) *Scanner {
	return &Scanner{
		config: config,
	}
}

// ScanResult represents the result of probing one address. Rows and Cols are
// set when the endpoint pushed a decodable frame during the probe.
type ScanResult struct {
	IPAddress string
	Port      int
	Valid     bool
	Error     error
	Rows      int
	Cols      int
}

// Endpoint returns the WebSocket URL the result was probed at
func (r ScanResult) Endpoint(path string) string {
	u := url.URL{
		Scheme: "ws",
		Host:   net.JoinHostPort(r.IPAddress, strconv.Itoa(r.Port)),
		Path:   path,
	}
	return u.String()
}

func (s *Scanner) timeout() time.Duration {
	return time.Duration(s.config.Timeout) * time.Second
}

// scanTimeout bounds one scanIP: the TCP dial, the handshake and the first
// read each get a full timeout
func (s *Scanner) scanTimeout() time.Duration {
	return 3 * s.timeout()
}

// ScanNetwork scans the local IPv4 subnets for frame endpoints
func (s *Scanner) ScanNetwork(ctx context.Context) ([]ScanResult, error) {
	// Get all network interfaces
	interfaces, err := net.Interfaces()
	if err != nil {
		return nil, fmt.Errorf("failed to get network interfaces: %w", err)
	}

	var results []ScanResult
	for _, iface := range interfaces {
		// Skip loopback and down interfaces
		if iface.Flags&net.FlagLoopback != 0 || iface.Flags&net.FlagUp == 0 {
			continue
		}

		addresses, err := iface.Addrs()
		if err != nil {
			continue
		}

		for _, addr := range addresses {
			// Skip non-IPv4 addresses
			ipNet, ok := addr.(*net.IPNet)
			if !ok || ipNet.IP.To4() == nil {
				continue
			}
			if ipNet.IP.IsLoopback() || ipNet.IP.IsLinkLocalUnicast() {
				continue
			}

			log.WithFields(log.Fields{
				"interface": iface.Name,
				"network":   ipNet.String(),
			}).Debug("Scanning subnet.")

			networkResults, err := s.ScanHosts(ctx, Hosts(ipNet))
			results = append(results, networkResults...)
			if err != nil {
				return results, err
			}
		}
	}

	return results, nil
}

// Hosts lists the addresses of the /24 that ipNet's address sits in, skipping
// the network and broadcast addresses
func Hosts(ipNet *net.IPNet) []net.IP {
	ip4 := ipNet.IP.To4()
	if ip4 == nil {
		return nil
	}
	mask := ipNet.Mask
	if len(mask) == net.IPv6len {
		mask = mask[12:]
	}

	// Get the network and broadcast addresses
	network := ip4.Mask(mask)
	broadcast := make(net.IP, net.IPv4len)
	for i := range broadcast {
		broadcast[i] = network[i] | ^mask[i]
	}

	hosts := make([]net.IP, 0, 254)
	for i := 1; i < 255; i++ {
		ip := make(net.IP, net.IPv4len)
		copy(ip, ip4)
		ip[3] = byte(i)

		// Skip network and broadcast addresses
		if ip.Equal(network) || ip.Equal(broadcast) {
			continue
		}
		hosts = append(hosts, ip)
	}
	return hosts
}

// ScanHosts probes every host concurrently and returns the valid endpoints
func (s *Scanner) ScanHosts(ctx context.Context, hosts []net.IP) ([]ScanResult, error) {
	var results []ScanResult

	resultChan := make(chan ScanResult, len(hosts))
	for _, ip := range hosts {
		go s.scanIP(ctx, ip, resultChan)
	}

	// Collect results
	timeout := time.After(s.scanTimeout())
	for range hosts {
		select {
		case result := <-resultChan:
			if result.Valid {
				log.WithFields(log.Fields{
					"ip":   result.IPAddress,
					"port": result.Port,
				}).Info("Found frame endpoint.")
				results = append(results, result)
			}
		case <-timeout:
			return results, nil
		case <-ctx.Done():
			return results, ctx.Err()
		}
	}

	return results, nil
}

// scanIP dials the port first so closed hosts fail fast, then tries the handshake
func (s *Scanner) scanIP(ctx context.Context, ip net.IP, resultChan chan<- ScanResult) {
	result := ScanResult{
		IPAddress: ip.String(),
		Port:      s.config.Port,
	}

	address := net.JoinHostPort(result.IPAddress, strconv.Itoa(s.config.Port))
	conn, err := net.DialTimeout("tcp", address, s.timeout())
	if err != nil {
		result.Error = err
		resultChan <- result
		return
	}
	conn.Close()

	probe, err := s.ProbeEndpoint(ctx, result.Endpoint(s.config.Path))
	probe.IPAddress, probe.Port = result.IPAddress, result.Port
	if err != nil {
		probe.Error = err
	}
	resultChan <- probe
}

// ProbeEndpoint checks that endpoint accepts a WebSocket handshake. If a frame
// arrives before the timeout its size is recorded; silence is not an error.
func (s *Scanner) ProbeEndpoint(ctx context.Context, endpoint string) (ScanResult, error) {
	var result ScanResult

	u, err := url.Parse(endpoint)
	if err != nil {
		return result, fmt.Errorf("failed to parse endpoint: %w", err)
	}
	result.IPAddress = u.Hostname()
	if p, err := strconv.Atoi(u.Port()); err == nil {
		result.Port = p
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout())
	defer cancel()

	// Try the handshake
	dialer := websocket.Dialer{HandshakeTimeout: s.timeout()}
	conn, _, err := dialer.DialContext(ctx, endpoint, nil)
	if err != nil {
		return result, fmt.Errorf("failed websocket handshake: %w", err)
	}
	defer conn.Close()
	result.Valid = true

	// Wait briefly for a first frame
	conn.SetReadDeadline(time.Now().Add(s.timeout()))
	_, message, err := conn.ReadMessage()
	if err != nil {
		log.WithField("error", err).Debug("No frame received during probe.")
		return result, nil
	}

	f, err := frame.Decode(message)
	if err != nil {
		result.Valid = false
		return result, err
	}
	result.Rows, result.Cols = f.Rows(), f.Cols()
	return result, nil
}
