package service

import (
	"sync"
	"time"

	"pid_tuner/internal/models"
	"pid_tuner/internal/parser"
)

// DefaultReservedKeys are line fields that never become parameters.
var DefaultReservedKeys = []string{"Input", "Output"}

// ParameterRegistry tracks every parameter the device has reported.
// Entries are created on first sight and never removed.
type ParameterRegistry struct {
	mu       sync.RWMutex
	reserved map[string]struct{}
	params   map[string]*models.Parameter
	order    []string
	pending  map[string]string
}

func NewParameterRegistry(reserved []string) *ParameterRegistry {
	if reserved == nil {
		reserved = DefaultReservedKeys
	}
	set := make(map[string]struct{}, len(reserved))
	for _, k := range reserved {
		set[k] = struct{}{}
	}
	return &ParameterRegistry{
		reserved: set,
		params:   make(map[string]*models.Parameter),
		pending:  make(map[string]string),
	}
}

// IsReserved reports whether key is excluded from parameter treatment.
func (r *ParameterRegistry) IsReserved(key string) bool {
	_, ok := r.reserved[key]
	return ok
}

// Observe records device values from rec and returns the keys created by
// this call, in line order.
func (r *ParameterRegistry) Observe(rec parser.Record) []string {
	created, _ := r.ObserveChanges(rec, time.Now())
	return created
}

// ObserveChanges is Observe stamped with the caller's clock. It also
// reports existing keys whose device value differs from the previous one.
func (r *ParameterRegistry) ObserveChanges(rec parser.Record, at time.Time) (created, changed []string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := at.UTC()
	for _, f := range rec.Fields {
		if r.IsReserved(f.Key) {
			continue
		}
		p, ok := r.params[f.Key]
		switch {
		case !ok:
			p = &models.Parameter{Key: f.Key, FirstSeenAt: now}
			r.params[f.Key] = p
			r.order = append(r.order, f.Key)
			created = append(created, f.Key)
		case p.LastDeviceValue != f.Value:
			changed = append(changed, f.Key)
		}
		p.LastDeviceValue = f.Value
		p.UpdatedAt = now
	}
	return created, changed
}

// StageUserEdit records a value the operator intends to send. The key does
// not have to be known yet. Device values are untouched.
func (r *ParameterRegistry) StageUserEdit(key, value string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pending[key] = value
}

// ClearPending drops the staged value for key.
func (r *ParameterRegistry) ClearPending(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.pending, key)
}

// Pending returns the staged value for key.
func (r *ParameterRegistry) Pending(key string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.pending[key]
	return v, ok
}

// Get returns a copy of the parameter.
func (r *ParameterRegistry) Get(key string) (models.Parameter, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.params[key]
	if !ok {
		return models.Parameter{}, false
	}
	return r.withPending(*p), true
}

// List returns copies of all parameters in discovery order.
func (r *ParameterRegistry) List() []models.Parameter {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]models.Parameter, 0, len(r.order))
	for _, k := range r.order {
		out = append(out, r.withPending(*r.params[k]))
	}
	return out
}

// Len returns the number of known parameters.
func (r *ParameterRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

// BuildWriteCommand returns the outbound wire form "{key}:{value}\n".
func (r *ParameterRegistry) BuildWriteCommand(key, value string) string {
	return parser.WriteCommand(key, value)
}

func (r *ParameterRegistry) withPending(p models.Parameter) models.Parameter {
	if v, ok := r.pending[p.Key]; ok {
		p.PendingUserValue = v
		p.HasPending = true
	}
	return p
}
