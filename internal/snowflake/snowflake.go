// Package snowflake generates time ordered 64 bit identifiers.
//
// Layout, from the most significant bit:
//
//	| 42 bits: ms since epoch | 5 bits: worker | 5 bits: process | 12 bits: sequence |
package snowflake

import (
	"database/sql/driver"
	"fmt"
	"strconv"
	"sync"
	"time"
)

// DefaultEpoch is the first millisecond of Derailed time.
const DefaultEpoch int64 = 1649325271415

const (
	sequenceBits = 12
	processBits  = 5
	workerBits   = 5

	processShift   = sequenceBits
	workerShift    = sequenceBits + processBits
	timestampShift = sequenceBits + processBits + workerBits

	sequenceMask = 1<<sequenceBits - 1
	processMask  = 1<<processBits - 1
	workerMask   = 1<<workerBits - 1
)

// ID is a snowflake. It is sent as a string in JSON so that clients
// with 53 bit integers don't lose precision.
type ID uint64

// Parts are the decoded fields of an ID.
type Parts struct {
	Timestamp int64 // ms since epoch
	Worker    uint8
	Process   uint8
	Sequence  uint16
}

// Generator is safe for concurrent use. Create one per process.
type Generator struct {
	mu      sync.Mutex
	epoch   int64
	worker  uint64
	process uint64
	now     func() time.Time

	seq    uint64
	lastTS int64
	issued int
}

type Option func(*Generator)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(g *Generator) {
		g.now = now
	}
}

// NewGenerator builds a generator. worker and process are taken mod 32.
func NewGenerator(epoch int64, worker, process int, opts ...Option) *Generator {
	g := &Generator{
		epoch:   epoch,
		worker:  uint64(worker) & workerMask,
		process: uint64(process) & processMask,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *Generator) Epoch() int64 {
	return g.epoch
}

// Next returns a new ID.
//
// The sequence advances on every call. When 4096 ids were already issued
// in the current millisecond the timestamp is moved to the next millisecond
// instead of waiting for the clock, so ids stay unique and ordered.
// A clock going backwards is treated the same way.
func (g *Generator) Next() ID {
	g.mu.Lock()
	defer g.mu.Unlock()

	ts := g.now().UnixMilli() - g.epoch
	if ts < 0 {
		ts = 0
	}
	switch {
	case ts > g.lastTS:
		g.lastTS = ts
		g.issued = 0
	case g.issued >= sequenceMask+1:
		g.lastTS++
		g.issued = 0
	}
	g.issued++

	id := Compose(Parts{
		Timestamp: g.lastTS,
		Worker:    uint8(g.worker),
		Process:   uint8(g.process),
		Sequence:  uint16(g.seq),
	})
	g.seq = (g.seq + 1) & sequenceMask
	return id
}

// Compose packs parts into an ID. Out of range fields are masked.
func Compose(p Parts) ID {
	return ID(uint64(p.Timestamp)<<timestampShift |
		(uint64(p.Worker)&workerMask)<<workerShift |
		(uint64(p.Process)&processMask)<<processShift |
		uint64(p.Sequence)&sequenceMask)
}

func Decompose(id ID) Parts {
	return Parts{
		Timestamp: int64(uint64(id) >> timestampShift),
		Worker:    uint8(uint64(id) >> workerShift & workerMask),
		Process:   uint8(uint64(id) >> processShift & processMask),
		Sequence:  uint16(uint64(id) & sequenceMask),
	}
}

// Time returns the creation time of id, given the epoch it was generated with.
func (id ID) Time(epoch int64) time.Time {
	return time.UnixMilli(Decompose(id).Timestamp + epoch)
}

func (id ID) String() string {
	return strconv.FormatUint(uint64(id), 10)
}

func Parse(s string) (ID, error) {
	v, err := strconv.ParseUint(s, 10, 63)
	if err != nil {
		return 0, fmt.Errorf("invalid snowflake %q: %w", s, err)
	}
	return ID(v), nil
}

func (id ID) MarshalJSON() ([]byte, error) {
	return []byte(`"` + id.String() + `"`), nil
}

// UnmarshalJSON accepts both quoted and bare integers.
func (id *ID) UnmarshalJSON(b []byte) error {
	s := string(b)
	if s == "null" {
		return nil
	}
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}
	v, err := Parse(s)
	if err != nil {
		return err
	}
	*id = v
	return nil
}

// Value stores the ID as a BIGINT.
func (id ID) Value() (driver.Value, error) {
	return int64(id), nil
}

// Scan reads a BIGINT. NULL scans as zero.
func (id *ID) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		*id = 0
	case int64:
		*id = ID(v)
	case int32:
		*id = ID(v)
	case []byte:
		p, err := Parse(string(v))
		if err != nil {
			return err
		}
		*id = p
	case string:
		p, err := Parse(v)
		if err != nil {
			return err
		}
		*id = p
	default:
		return fmt.Errorf("cannot scan %T into snowflake.ID", src)
	}
	return nil
}
