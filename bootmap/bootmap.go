package bootmap

import (
	"bytes"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/hashicorp/go-multierror"
	"gopkg.in/yaml.v3"

	"github.com/joshuapare/memkit/internal/buf"
	"github.com/joshuapare/memkit/internal/format"
	"github.com/joshuapare/memkit/phys"
)

// Default geometry: 8 MiB of RAM at the usual RISC-V DRAM base with a
// 100 KiB heap in front of the frame pool.
const (
	DefaultBase       = 0x8000_0000
	DefaultMemorySize = 8 << 20
	DefaultHeapSize   = 100 << 10
)

// Value is an address or byte count read from YAML.
type Value uint64

var suffixes = []struct {
	name  string
	shift uint
}{
	{"KiB", 10}, {"MiB", 20}, {"GiB", 30},
	{"K", 10}, {"M", 20}, {"G", 30},
}

// ParseValue parses s as an integer literal with an optional binary size suffix.
func ParseValue(s string) (Value, error) {
	num := strings.TrimSpace(s)
	var shift uint
	for _, sfx := range suffixes {
		if strings.HasSuffix(num, sfx.name) {
			num = strings.TrimSpace(strings.TrimSuffix(num, sfx.name))
			shift = sfx.shift
			break
		}
	}
	n, err := strconv.ParseUint(num, 0, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrBadValue, s)
	}
	if shift > 0 && n > (^uint64(0))>>shift {
		return 0, fmt.Errorf("%w: %q overflows", ErrBadValue, s)
	}
	return Value(n << shift), nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (v *Value) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("%w: line %d: expected a scalar", ErrBadValue, node.Line)
	}
	parsed, err := ParseValue(node.Value)
	if err != nil {
		return fmt.Errorf("line %d: %w", node.Line, err)
	}
	*v = parsed
	return nil
}

// MarshalYAML writes the value as a plain hex integer.
func (v Value) MarshalYAML() (interface{}, error) {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!int", Value: v.String()}, nil
}

func (v Value) String() string { return fmt.Sprintf("0x%x", uint64(v)) }

// Region is a half-open physical range.
type Region struct {
	Start Value `yaml:"start"`
	Size  Value `yaml:"size"`
}

// Addr returns the start as a physical address.
func (r Region) Addr() phys.Addr { return phys.Addr(r.Start) }

// Len returns the size in bytes.
func (r Region) Len() uint64 { return uint64(r.Size) }

// End returns the address one past the region.
func (r Region) End() phys.Addr { return r.Addr().Add(r.Len()) }

// Contains reports whether a lies inside the region.
func (r Region) Contains(a phys.Addr) bool {
	return a >= r.Addr() && a < r.End()
}

func (r Region) String() string {
	return fmt.Sprintf("[%s, %s)", r.Addr(), r.End())
}

// Map is a boot memory map.
type Map struct {
	Memory Region `yaml:"memory"`
	Heap   Region `yaml:"heap"`
	Frames Region `yaml:"frames"`
}

// Default returns the built-in map: DefaultMemorySize bytes at DefaultBase,
// the heap at the start and the frame pool covering the rest.
func Default() *Map {
	return &Map{
		Memory: Region{Start: DefaultBase, Size: DefaultMemorySize},
		Heap:   Region{Start: DefaultBase, Size: DefaultHeapSize},
		Frames: Region{
			Start: DefaultBase + DefaultHeapSize,
			Size:  DefaultMemorySize - DefaultHeapSize,
		},
	}
}

// Parse decodes and validates a map. Unknown keys are rejected.
func Parse(data []byte) (*Map, error) {
	var m Map
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&m); err != nil {
		return nil, fmt.Errorf("bootmap: decode: %w", err)
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// Load reads and parses the map at path.
func Load(path string) (*Map, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("bootmap: %w", err)
	}
	m, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}

// Marshal encodes m as YAML.
func (m *Map) Marshal() ([]byte, error) {
	return yaml.Marshal(m)
}

// Validate checks that memory is a usable arena, that the heap and frame
// regions lie inside it without overlapping, and that each is aligned for
// its allocator. Every violation is reported; the result wraps ErrInvalid.
func (m *Map) Validate() error {
	var result *multierror.Error
	fail := func(f string, args ...any) {
		result = multierror.Append(result, fmt.Errorf("%w: "+f, append([]any{ErrInvalid}, args...)...))
	}

	mem := m.Memory
	switch {
	case mem.Start == 0:
		fail("memory must not start at 0")
	case !format.IsAligned(uint64(mem.Start), format.PageSize):
		fail("memory start %s is not page aligned", mem.Start)
	}
	if mem.Size == 0 {
		fail("memory size is 0")
	}
	if _, ok := buf.AddOverflowSafe(uint64(mem.Start), uint64(mem.Size)); !ok {
		fail("memory %s+%s overflows", mem.Start, mem.Size)
	}

	checkSub := func(name string, r Region, minSize uint64, align uint64) {
		if r.Len() < minSize {
			fail("%s size %s is below %d bytes", name, r.Size, minSize)
		}
		if !format.IsAligned(uint64(r.Start), align) {
			fail("%s start %s is not %d-byte aligned", name, r.Start, align)
		}
		if !buf.Has(uint64(mem.Start), uint64(mem.Size), uint64(r.Start), uint64(r.Size)) {
			fail("%s %s is outside memory %s", name, r, mem)
		}
	}
	checkSub("heap", m.Heap, format.FreeBlockHeaderSize, format.FreeBlockAlign)
	// one descriptor page plus one frame
	checkSub("frames", m.Frames, 2*format.PageSize, format.PageSize)

	if m.Heap.Size > 0 && m.Frames.Size > 0 &&
		buf.Overlaps(uint64(m.Heap.Start), uint64(m.Heap.Size), uint64(m.Frames.Start), uint64(m.Frames.Size)) {
		fail("heap %s overlaps frames %s", m.Heap, m.Frames)
	}

	return result.ErrorOrNil()
}
