package core

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
)

const (
	CodeStrategySequence = "sequence"
	CodeStrategyLocked   = "locked"
	CodeStrategyLegacy   = "legacy"

	DefaultGrantCodeSequence = "grant_types"
)

// CodeAllocator mints the next grant code.
type CodeAllocator interface {
	Next(ctx context.Context) (string, error)
	// Reset clears in-process allocation state. Test isolation only.
	Reset()
}

// HighWaterMark is the largest sequence value issued in this process.
type HighWaterMark struct {
	mu    sync.Mutex
	value atomic.Int64
}

var processHighWaterMark = &HighWaterMark{}

// DefaultHighWaterMark returns the process-wide mark shared by allocators
// built without an explicit one.
func DefaultHighWaterMark() *HighWaterMark {
	return processHighWaterMark
}

func (m *HighWaterMark) Load() int64 {
	if m == nil {
		return 0
	}
	return m.value.Load()
}

func (m *HighWaterMark) Store(n int64) {
	if m == nil {
		return
	}
	m.value.Store(n)
}

func (m *HighWaterMark) Reset() {
	m.Store(0)
}

// LegacyCodeAllocator keeps the historical allocation behavior: the durable
// maximum and the in-process mark are read and written as separate steps.
// Concurrent callers that observe the same persisted maximum receive the same
// code. Use it only where that behavior must be reproduced.
type LegacyCodeAllocator struct {
	reader MaxCodeReader
	format CodeFormat
	mark   *HighWaterMark
}

func NewLegacyCodeAllocator(reader MaxCodeReader, format CodeFormat, mark *HighWaterMark) *LegacyCodeAllocator {
	if mark == nil {
		mark = DefaultHighWaterMark()
	}
	return &LegacyCodeAllocator{reader: reader, format: format.normalized(), mark: mark}
}

func (a *LegacyCodeAllocator) Next(ctx context.Context) (string, error) {
	if a == nil || a.reader == nil {
		return "", fmt.Errorf("core: code allocator is not configured")
	}
	next, err := nextFromMark(ctx, a.reader, a.format, a.mark)
	if err != nil {
		return "", err
	}
	return a.format.Format(next), nil
}

func (a *LegacyCodeAllocator) Reset() {
	if a == nil {
		return
	}
	a.mark.Reset()
}

// LockedCodeAllocator runs the legacy algorithm under the mark's mutex, so
// every allocator sharing the mark issues distinct codes. It does not
// coordinate across processes; use SequenceCodeAllocator for that.
type LockedCodeAllocator struct {
	reader MaxCodeReader
	format CodeFormat
	mark   *HighWaterMark
}

func NewLockedCodeAllocator(reader MaxCodeReader, format CodeFormat, mark *HighWaterMark) *LockedCodeAllocator {
	if mark == nil {
		mark = DefaultHighWaterMark()
	}
	return &LockedCodeAllocator{reader: reader, format: format.normalized(), mark: mark}
}

func (a *LockedCodeAllocator) Next(ctx context.Context) (string, error) {
	if a == nil || a.reader == nil {
		return "", fmt.Errorf("core: code allocator is not configured")
	}
	a.mark.mu.Lock()
	defer a.mark.mu.Unlock()

	next, err := nextFromMark(ctx, a.reader, a.format, a.mark)
	if err != nil {
		return "", err
	}
	return a.format.Format(next), nil
}

func (a *LockedCodeAllocator) Reset() {
	if a == nil {
		return
	}
	a.mark.mu.Lock()
	defer a.mark.mu.Unlock()
	a.mark.Reset()
}

// nextFromMark computes max(persisted, mark) + 1 and stores it as the new
// mark. The mark is loaded before the durable read, not after, so callers
// parked inside MaxCode all hold the same mark and collide on the same code
// every time. Reading the mark second would let an early finisher's store
// leak into a late caller and make the collision depend on scheduling.
// Neither order coordinates the two steps.
func nextFromMark(ctx context.Context, reader MaxCodeReader, format CodeFormat, mark *HighWaterMark) (int64, error) {
	current := mark.Load()
	latest, err := reader.MaxCode(ctx)
	if err != nil {
		return 0, err
	}
	persisted, err := format.Parse(latest)
	if err != nil {
		return 0, err
	}
	next := max(persisted, current) + 1
	mark.Store(next)
	return next, nil
}

// SequenceCodeAllocator derives codes from a durable counter. Each call is a
// single atomic increment-and-fetch floored at the persisted maximum, so
// codes stay unique across processes. It keeps no in-process state.
type SequenceCodeAllocator struct {
	reader   MaxCodeReader
	sequence CodeSequenceStore
	name     string
	format   CodeFormat
}

func NewSequenceCodeAllocator(
	reader MaxCodeReader,
	sequence CodeSequenceStore,
	name string,
	format CodeFormat,
) *SequenceCodeAllocator {
	name = strings.TrimSpace(name)
	if name == "" {
		name = DefaultGrantCodeSequence
	}
	return &SequenceCodeAllocator{
		reader:   reader,
		sequence: sequence,
		name:     name,
		format:   format.normalized(),
	}
}

func (a *SequenceCodeAllocator) Next(ctx context.Context) (string, error) {
	if a == nil || a.reader == nil || a.sequence == nil {
		return "", fmt.Errorf("core: sequence code allocator is not configured")
	}
	latest, err := a.reader.MaxCode(ctx)
	if err != nil {
		return "", err
	}
	persisted, err := a.format.Parse(latest)
	if err != nil {
		return "", err
	}
	next, err := a.sequence.NextValue(ctx, a.name, persisted)
	if err != nil {
		return "", err
	}
	return a.format.Format(next), nil
}

func (a *SequenceCodeAllocator) Reset() {}

// NewCodeAllocator builds the allocator selected by cfg.Strategy.
func NewCodeAllocator(
	cfg CodesConfig,
	reader MaxCodeReader,
	sequence CodeSequenceStore,
	mark *HighWaterMark,
) (CodeAllocator, error) {
	format := CodeFormat{Prefix: cfg.Prefix, Width: cfg.Width}
	if err := format.Validate(); err != nil {
		return nil, err
	}
	switch strings.ToLower(strings.TrimSpace(cfg.Strategy)) {
	case "", CodeStrategySequence:
		if sequence == nil {
			return nil, fmt.Errorf("core: code sequence store is required for the %q strategy", CodeStrategySequence)
		}
		return NewSequenceCodeAllocator(reader, sequence, cfg.SequenceName, format), nil
	case CodeStrategyLocked:
		return NewLockedCodeAllocator(reader, format, mark), nil
	case CodeStrategyLegacy:
		return NewLegacyCodeAllocator(reader, format, mark), nil
	default:
		return nil, fmt.Errorf("core: unknown code strategy %q", cfg.Strategy)
	}
}

var (
	_ CodeAllocator = (*LegacyCodeAllocator)(nil)
	_ CodeAllocator = (*LockedCodeAllocator)(nil)
	_ CodeAllocator = (*SequenceCodeAllocator)(nil)
)
