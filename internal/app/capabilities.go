package app

import (
	"github.com/AkMo3/unirt-mediasoup-demo-server/internal/core"
	"github.com/AkMo3/unirt-mediasoup-demo-server/internal/domain"
)

// CapabilityService serves the router capability snapshot taken at startup.
type CapabilityService struct {
	router   core.Router
	snapshot domain.RtpCapabilities
}

func NewCapabilityService(router core.Router) *CapabilityService {
	return &CapabilityService{router: router, snapshot: router.RtpCapabilities().Clone()}
}

func (c *CapabilityService) GetCapabilities() domain.RtpCapabilities {
	return c.snapshot.Clone()
}

func (c *CapabilityService) CanConsume(producerID string, caps domain.RtpCapabilities) bool {
	return c.router.CanConsume(producerID, caps)
}
