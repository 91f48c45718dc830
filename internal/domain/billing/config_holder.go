package billing

import "sync"

// ConfigHolder is the process-wide autobilling configuration. Reads take a
// copy; every change goes through Update or Replace and is announced to
// subscribers after the lock is released.
type ConfigHolder struct {
	mu   sync.RWMutex
	cfg  AutobillingConfig
	subs []func(old, updated AutobillingConfig)
}

func NewConfigHolder(initial AutobillingConfig) *ConfigHolder {
	return &ConfigHolder{cfg: initial}
}

func (h *ConfigHolder) Current() AutobillingConfig {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.cfg
}

func (h *ConfigHolder) Update(p AutobillingPatch) (AutobillingConfig, error) {
	h.mu.Lock()
	old := h.cfg
	updated, err := old.Apply(p)
	if err != nil {
		h.mu.Unlock()
		return old, err
	}
	h.cfg = updated
	subs := append([]func(old, updated AutobillingConfig){}, h.subs...)
	h.mu.Unlock()

	for _, fn := range subs {
		fn(old, updated)
	}
	return updated, nil
}

func (h *ConfigHolder) Replace(cfg AutobillingConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	h.mu.Lock()
	old := h.cfg
	h.cfg = cfg
	subs := append([]func(old, updated AutobillingConfig){}, h.subs...)
	h.mu.Unlock()

	for _, fn := range subs {
		fn(old, cfg)
	}
	return nil
}

// Subscribe registers fn to run after every change.
func (h *ConfigHolder) Subscribe(fn func(old, updated AutobillingConfig)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.subs = append(h.subs, fn)
}
