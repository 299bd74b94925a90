package config

import (
	"errors"
	"fmt"
	"sync"

	"github.com/kverrall/namecue/pkg/provider/stt"
	"github.com/kverrall/namecue/pkg/provider/tts"
)

// ErrProviderNotRegistered is returned by Create* methods when no factory has
// been registered under the requested provider name.
var ErrProviderNotRegistered = errors.New("config: provider not registered")

// Registry maps provider names to their constructor functions for each
// provider type. It is safe for concurrent use.
type Registry struct {
	mu  sync.RWMutex
	tts map[string]func(ProviderEntry) (tts.Speaker, error)
	stt map[string]func(ProviderEntry) (stt.Listener, error)
}

// NewRegistry returns an empty, ready-to-use [Registry].
func NewRegistry() *Registry {
	return &Registry{
		tts: make(map[string]func(ProviderEntry) (tts.Speaker, error)),
		stt: make(map[string]func(ProviderEntry) (stt.Listener, error)),
	}
}

// RegisterTTS registers a speaker factory under name.
// Subsequent calls with the same name overwrite the previous registration.
func (r *Registry) RegisterTTS(name string, factory func(ProviderEntry) (tts.Speaker, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tts[name] = factory
}

// RegisterSTT registers a listener factory under name.
func (r *Registry) RegisterSTT(name string, factory func(ProviderEntry) (stt.Listener, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stt[name] = factory
}

// CreateTTS instantiates a speaker using the factory registered under entry.Name.
// Returns [ErrProviderNotRegistered] if no factory has been registered for that name.
func (r *Registry) CreateTTS(entry ProviderEntry) (tts.Speaker, error) {
	r.mu.RLock()
	factory, ok := r.tts[entry.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: tts/%q", ErrProviderNotRegistered, entry.Name)
	}
	return factory(entry)
}

// CreateSTT instantiates a listener using the factory registered under entry.Name.
func (r *Registry) CreateSTT(entry ProviderEntry) (stt.Listener, error) {
	r.mu.RLock()
	factory, ok := r.stt[entry.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: stt/%q", ErrProviderNotRegistered, entry.Name)
	}
	return factory(entry)
}
