package rtc

import (
	"fmt"
	"net"

	"github.com/AkMo3/unirt-mediasoup-demo-server/internal/config"
	"github.com/pion/webrtc/v4"
)

// applyNetworkSettings maps the media config onto a pion SettingEngine.
func applyNetworkSettings(se *webrtc.SettingEngine, cfg config.MediaConfig) error {
	if err := se.SetEphemeralUDPPortRange(cfg.RTCMinPort, cfg.RTCMaxPort); err != nil {
		return fmt.Errorf("set ephemeral udp port range: %w", err)
	}

	if cfg.AnnouncedIP != "" {
		if net.ParseIP(cfg.AnnouncedIP) == nil {
			return fmt.Errorf("invalid announced ip %q", cfg.AnnouncedIP)
		}
		se.SetNAT1To1IPs([]string{cfg.AnnouncedIP}, webrtc.ICECandidateTypeHost)
	}

	// There is no "bind to 0.0.0.0" toggle; a specific listen ip restricts
	// gathering and binding through the IP filter instead.
	listenIP := net.ParseIP(cfg.ListenIP)
	if cfg.ListenIP != "" && listenIP == nil {
		return fmt.Errorf("invalid listen ip %q", cfg.ListenIP)
	}
	if listenIP != nil && !listenIP.IsUnspecified() {
		se.SetIPFilter(func(ip net.IP) bool {
			return ip.Equal(listenIP)
		})
	}

	se.SetLite(true)
	se.SetNetworkTypes(networkTypes(cfg))
	return nil
}

func networkTypes(cfg config.MediaConfig) []webrtc.NetworkType {
	var out []webrtc.NetworkType
	if cfg.EnableUDP {
		out = append(out, webrtc.NetworkTypeUDP4)
	}
	// passive tcp candidates need a listening mux
	if cfg.EnableTCP && cfg.TCPPort > 0 {
		out = append(out, webrtc.NetworkTypeTCP4)
	}
	return out
}
