package httpapi

import (
	"context"

	"github.com/kbukum/entitypipe/component"
)

const componentName = "http-server"

func (s *Server) Name() string { return componentName }

func (s *Server) Health(_ context.Context) component.Health {
	if addr := s.Addr(); addr != "" {
		return component.Health{Name: componentName, Status: component.StatusHealthy, Details: map[string]any{"addr": addr}}
	}
	return component.Health{Name: componentName, Status: component.StatusUnhealthy, Message: "not listening"}
}

var _ component.Component = (*Server)(nil)
