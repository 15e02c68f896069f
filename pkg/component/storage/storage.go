// Package storage tracks the external dependencies of the service (vector
// store, Redis) so they can be health checked and closed together.
package storage

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"
)

var (
	// ErrClientNotFound indicates that no client is registered under the name.
	ErrClientNotFound = errors.New("storage client not found")

	// ErrClientAlreadyExists indicates a duplicate registration.
	ErrClientAlreadyExists = errors.New("storage client already registered")
)

// Client is the minimal contract of a managed dependency.
type Client interface {
	Name() string
	Ping(ctx context.Context) error
	Close() error
}

// HealthStatus is the result of pinging one client.
type HealthStatus struct {
	Name    string        `json:"name"`
	Healthy bool          `json:"healthy"`
	Latency time.Duration `json:"latency"`
	Error   string        `json:"error,omitempty"`
}

// Manager manages multiple storage clients. It is safe for concurrent use.
type Manager struct {
	mu      sync.RWMutex
	clients map[string]Client
	order   []string
}

// NewManager creates a new storage manager instance.
func NewManager() *Manager {
	return &Manager{
		clients: make(map[string]Client),
	}
}

// Register registers a storage client with the given name.
func (m *Manager) Register(name string, client Client) error {
	if name == "" || client == nil {
		return fmt.Errorf("storage: name and client are required")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.clients[name]; exists {
		return fmt.Errorf("%w: %s", ErrClientAlreadyExists, name)
	}

	m.clients[name] = client
	m.order = append(m.order, name)
	return nil
}

// Get returns the client registered under name.
func (m *Manager) Get(name string) (Client, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	client, exists := m.clients[name]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrClientNotFound, name)
	}
	return client, nil
}

// List returns the registered names, sorted.
func (m *Manager) List() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	names := make([]string, 0, len(m.clients))
	for name := range m.clients {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// HealthCheckAll pings every registered client concurrently.
func (m *Manager) HealthCheckAll(ctx context.Context) map[string]HealthStatus {
	m.mu.RLock()
	clients := make(map[string]Client, len(m.clients))
	for name, client := range m.clients {
		clients[name] = client
	}
	m.mu.RUnlock()

	statuses := make(map[string]HealthStatus, len(clients))
	var statusMu sync.Mutex
	var wg sync.WaitGroup

	for name, client := range clients {
		wg.Add(1)
		go func(n string, c Client) {
			defer wg.Done()

			start := time.Now()
			err := c.Ping(ctx)
			status := HealthStatus{
				Name:    n,
				Healthy: err == nil,
				Latency: time.Since(start),
			}
			if err != nil {
				status.Error = err.Error()
			}

			statusMu.Lock()
			statuses[n] = status
			statusMu.Unlock()
		}(name, client)
	}

	wg.Wait()
	return statuses
}

// AllHealthy reports whether every registered client answers its ping.
func (m *Manager) AllHealthy(ctx context.Context) bool {
	for _, status := range m.HealthCheckAll(ctx) {
		if !status.Healthy {
			return false
		}
	}
	return true
}

// CloseAll closes clients in reverse registration order and returns the
// first error encountered.
func (m *Manager) CloseAll() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var firstErr error
	for i := len(m.order) - 1; i >= 0; i-- {
		name := m.order[i]
		if err := m.clients[name].Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("failed to close client '%s': %w", name, err)
		}
		delete(m.clients, name)
	}
	m.order = nil
	return firstErr
}
