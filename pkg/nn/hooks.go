package nn

import (
	"context"
	"errors"
	"sync"
)

// ForwardHook runs right after a module's forward computation with the
// input it received and the output it produced.
type ForwardHook func(m Module, in, out *Tensor)

type hookEntry struct {
	id uint64
	fn ForwardHook
}

// HookSet holds the forward hooks registered on one module.
type HookSet struct {
	mu    sync.Mutex
	next  uint64
	hooks []hookEntry
}

// Register adds fn and returns a handle that removes it again.
func (s *HookSet) Register(fn ForwardHook) *HookHandle {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.next++
	s.hooks = append(s.hooks, hookEntry{id: s.next, fn: fn})
	return &HookHandle{set: s, id: s.next}
}

// Len returns the number of registered hooks.
func (s *HookSet) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.hooks)
}

func (s *HookSet) snapshot() []ForwardHook {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.hooks) == 0 {
		return nil
	}
	out := make([]ForwardHook, len(s.hooks))
	for i, h := range s.hooks {
		out[i] = h.fn
	}
	return out
}

func (s *HookSet) remove(id uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, h := range s.hooks {
		if h.id == id {
			s.hooks = append(s.hooks[:i], s.hooks[i+1:]...)
			return
		}
	}
}

// HookHandle removes a registered hook. Remove may be called more than once.
type HookHandle struct {
	set  *HookSet
	id   uint64
	once sync.Once
}

func (h *HookHandle) Remove() {
	h.once.Do(func() { h.set.remove(h.id) })
}

// nestedCall marks a context that is already inside a Call.
type nestedCall struct{}

// Call runs m's forward pass and then its hooks in registration order.
// Errors are reported as *ForwardError carrying the module path, relative to
// the outermost module the way Walk names it: the root's own name is not part
// of the path.
func Call(ctx context.Context, m Module, x *Tensor) (*Tensor, error) {
	name := m.Name()
	if ctx.Value(nestedCall{}) == nil {
		name = ""
		ctx = context.WithValue(ctx, nestedCall{}, true)
	}
	if err := ctx.Err(); err != nil {
		return nil, wrapForward(name, m, err)
	}
	out, err := m.Forward(ctx, x)
	if err != nil {
		return nil, wrapForward(name, m, err)
	}
	for _, fn := range m.Hooks().snapshot() {
		fn(m, x, out)
	}
	return out, nil
}

func wrapForward(name string, m Module, err error) error {
	var fe *ForwardError
	if errors.As(err, &fe) {
		fe.Path = joinPath(name, fe.Path)
		return err
	}
	return &ForwardError{Path: name, Kind: m.Kind(), Err: err}
}
