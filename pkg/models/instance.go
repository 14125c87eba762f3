package models

import "maps"

// Memory is the state threaded between the steps of one plan.
type Memory map[string]any

// Clone returns a shallow copy of m. A nil memory clones to an empty one.
func (m Memory) Clone() Memory {
	out := make(Memory, len(m))
	maps.Copy(out, m)
	return out
}

// Merge returns a copy of m extended and overwritten by other.
func (m Memory) Merge(other Memory) Memory {
	out := m.Clone()
	maps.Copy(out, other)
	return out
}

// CapabilityProvider is implemented by step instances that expose test
// doubles. TryInvoke reports found=false when the instance has no capability
// with that name.
type CapabilityProvider interface {
	TryInvoke(name string, args ...any) (result any, found bool, err error)
}

// FinalChecker is implemented by step instances with a post-trigger check.
type FinalChecker interface {
	FinalCheck() error
}

// MemoryHolder is implemented by step instances that publish memory for the
// next step of the plan.
type MemoryHolder interface {
	Memory() Memory
}

// Capabilities maps capability names to actions.
type Capabilities map[string]Action

// TryInvoke implements CapabilityProvider.
func (c Capabilities) TryInvoke(name string, args ...any) (any, bool, error) {
	fn, ok := c[name]
	if !ok || fn == nil {
		return nil, false, nil
	}
	res, err := fn(args...)
	return res, true, err
}

// Base carries memory for custom step types. Embed it and every assignment
// through SetMemory merges into what the step already holds.
type Base struct {
	memory Memory
}

// NewBase returns a Base seeded with mem.
func NewBase(mem Memory) Base {
	return Base{memory: mem.Clone()}
}

// Memory implements MemoryHolder.
func (b *Base) Memory() Memory {
	if b.memory == nil {
		b.memory = Memory{}
	}
	return b.memory
}

// SetMemory merges mem into the current memory.
func (b *Base) SetMemory(mem Memory) {
	b.memory = b.memory.Merge(mem)
}

// Get returns the value stored under key.
func (b *Base) Get(key string) (any, bool) {
	v, ok := b.memory[key]
	return v, ok
}

// DeclarativeInstance is the instance built for definitions without a New
// factory. It exposes the definition's capabilities, final check and memory.
type DeclarativeInstance struct {
	Base
	def *StepDefinition
}

// NewDeclarativeInstance builds the instance for def with initial memory mem.
func NewDeclarativeInstance(def *StepDefinition, mem Memory) *DeclarativeInstance {
	return &DeclarativeInstance{Base: NewBase(mem), def: def}
}

// TryInvoke implements CapabilityProvider.
func (i *DeclarativeInstance) TryInvoke(name string, args ...any) (any, bool, error) {
	return i.def.Capabilities.TryInvoke(name, args...)
}

// FinalCheck implements FinalChecker.
func (i *DeclarativeInstance) FinalCheck() error {
	if i.def.FinalCheck == nil {
		return nil
	}
	return i.def.FinalCheck(i.Memory())
}
