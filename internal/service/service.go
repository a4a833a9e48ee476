// Package service defines the interface for pseudo-client services that
// ride on top of the protocol engine.
package service

import (
	"github.com/dalnet/athena/internal/uplink"
)

// Service is one network-facing feature. Attach is called before every
// connection attempt with the fresh session, so services subscribe to a
// clean event queue each time and never carry state across links.
type Service interface {
	Name() string
	Attach(s *uplink.Session)
}

var registry []Service

// Register adds a service to the set attached to every session.
func Register(svc Service) {
	registry = append(registry, svc)
}

// All returns the registered services in registration order.
func All() []Service {
	return registry
}
