package discovery

import (
	"context"
	"image"
	"image/color"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fkcurrie/ledmatrix-viewer/internal/frame"
	"github.com/fkcurrie/ledmatrix-viewer/internal/types"
)

func frameEndpoint(t *testing.T, payload []byte) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/ws" {
			http.NotFound(w, r)
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		if payload != nil {
			conn.WriteMessage(websocket.TextMessage, payload)
		}
		conn.ReadMessage()
	}))
	t.Cleanup(srv.Close)
	return srv
}

func testScanner(port int) *Scanner {
	return NewScanner(types.DiscoveryConfig{Port: port, Path: "/ws", Timeout: 1})
}

func serverPort(t *testing.T, srv *httptest.Server) int {
	t.Helper()
	_, p, err := net.SplitHostPort(strings.TrimPrefix(srv.URL, "http://"))
	require.NoError(t, err)
	port, err := strconv.Atoi(p)
	require.NoError(t, err)
	return port
}

func TestHosts(t *testing.T) {
	_, ipNet, err := net.ParseCIDR("192.168.1.0/24")
	require.NoError(t, err)
	ipNet.IP = net.ParseIP("192.168.1.42")

	hosts := Hosts(ipNet)
	require.Len(t, hosts, 254)
	assert.Equal(t, "192.168.1.1", hosts[0].String())
	assert.Equal(t, "192.168.1.254", hosts[253].String())

	_, v6, err := net.ParseCIDR("fe80::/64")
	require.NoError(t, err)
	assert.Nil(t, Hosts(v6))
}

func TestProbeEndpointReadsFrame(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 4, 2))
	img.SetRGBA(3, 1, color.RGBA{R: 255, A: 255})
	payload, err := frame.Encode(frame.FromImage(img))
	require.NoError(t, err)

	srv := frameEndpoint(t, payload)
	s := testScanner(serverPort(t, srv))

	result, err := s.ProbeEndpoint(context.Background(), "ws"+strings.TrimPrefix(srv.URL, "http")+"/ws")
	require.NoError(t, err)
	assert.True(t, result.Valid)
	assert.Equal(t, 2, result.Rows)
	assert.Equal(t, 4, result.Cols)
	assert.Equal(t, "127.0.0.1", result.IPAddress)
}

func TestProbeEndpointSilentIsValid(t *testing.T) {
	srv := frameEndpoint(t, nil)
	s := testScanner(serverPort(t, srv))

	result, err := s.ProbeEndpoint(context.Background(), "ws"+strings.TrimPrefix(srv.URL, "http")+"/ws")
	require.NoError(t, err)
	assert.True(t, result.Valid)
	assert.Zero(t, result.Rows)
}

func TestProbeEndpointRejects(t *testing.T) {
	srv := frameEndpoint(t, []byte(`{"hello":"world"}`))
	s := testScanner(serverPort(t, srv))
	base := "ws" + strings.TrimPrefix(srv.URL, "http")

	result, err := s.ProbeEndpoint(context.Background(), base+"/ws")
	var decodeErr *frame.DecodeError
	assert.ErrorAs(t, err, &decodeErr)
	assert.False(t, result.Valid)

	result, err = s.ProbeEndpoint(context.Background(), base+"/other")
	assert.Error(t, err, "plain http is not a frame endpoint")
	assert.False(t, result.Valid)
}

func TestScanHosts(t *testing.T) {
	srv := frameEndpoint(t, []byte(`[[[1,2,3]]]`))
	s := testScanner(serverPort(t, srv))

	results, err := s.ScanHosts(context.Background(), []net.IP{net.ParseIP("127.0.0.1").To4()})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.True(t, results[0].Valid)
	assert.Equal(t, serverPort(t, srv), results[0].Port)
	assert.Equal(t, srv.URL[len("http://"):], net.JoinHostPort(results[0].IPAddress, strconv.Itoa(results[0].Port)))
	assert.Equal(t, "ws://"+srv.URL[len("http://"):]+"/ws", results[0].Endpoint("/ws"))
}

func TestScanHostsWaitsForSilentEndpoint(t *testing.T) {
	srv := frameEndpoint(t, nil)
	s := testScanner(serverPort(t, srv))
	assert.Equal(t, 3*time.Second, s.scanTimeout(), "dial, handshake and read each get a timeout")

	results, err := s.ScanHosts(context.Background(), []net.IP{net.ParseIP("127.0.0.1").To4()})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.True(t, results[0].Valid)
	assert.Zero(t, results[0].Rows)
}
