package lifecycle

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Service is a background component with a managed lifecycle.
type Service interface {
	Start(ctx context.Context) error
	Stop() error
	Name() string
}

// Manager starts background services and stops them in reverse
// registration order on shutdown, with a hard timeout.
type Manager struct {
	ctx        context.Context
	cancel     context.CancelFunc
	services   []Service
	wg         sync.WaitGroup
	mu         sync.Mutex
	terminated bool
}

func NewManager() *Manager {
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{ctx: ctx, cancel: cancel}
}

// Register adds a service. Registration order determines shutdown
// order: last registered stops first.
func (m *Manager) Register(service Service) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.terminated {
		log.Warn().Str("service", service.Name()).Msg("Cannot register after shutdown")
		return
	}
	m.services = append(m.services, service)
}

// StartAll launches every registered service in its own goroutine.
func (m *Manager) StartAll() {
	m.mu.Lock()
	services := append([]Service(nil), m.services...)
	m.mu.Unlock()

	for _, service := range services {
		service := service
		m.wg.Add(1)
		go func() {
			defer m.wg.Done()
			log.Info().Str("service", service.Name()).Msg("Service starting")
			if err := service.Start(m.ctx); err != nil && err != context.Canceled {
				log.Error().Str("service", service.Name()).Err(err).Msg("Service stopped with error")
				return
			}
			log.Info().Str("service", service.Name()).Msg("Service stopped")
		}()
	}
}

// Shutdown stops services LIFO and waits for them to drain, up to the
// timeout.
func (m *Manager) Shutdown(timeout time.Duration) error {
	m.mu.Lock()
	if m.terminated {
		m.mu.Unlock()
		return nil
	}
	m.terminated = true
	services := append([]Service(nil), m.services...)
	m.mu.Unlock()

	log.Info().Int("services", len(services)).Msg("Shutting down")
	m.cancel()

	for i := len(services) - 1; i >= 0; i-- {
		service := services[i]
		if err := service.Stop(); err != nil {
			log.Error().Str("service", service.Name()).Err(err).Msg("Error stopping service")
		}
	}

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Info().Msg("All services stopped")
		return nil
	case <-time.After(timeout):
		log.Warn().Dur("timeout", timeout).Msg("Shutdown timeout exceeded")
		return context.DeadlineExceeded
	}
}

// Context is cancelled when shutdown begins.
func (m *Manager) Context() context.Context {
	return m.ctx
}
