package metaspace

import "fmt"

// Category classifies a class loader by its expected metadata volume.
type Category uint8

const (
	StandardCategory Category = iota
	BootCategory
	AnonymousCategory
	ReflectionCategory

	categoryCount
)

func (c Category) String() string {
	switch c {
	case StandardCategory:
		return "standard"
	case BootCategory:
		return "boot"
	case AnonymousCategory:
		return "anonymous"
	case ReflectionCategory:
		return "reflection"
	}
	return fmt.Sprintf("category(%d)", uint8(c))
}

// MetadataType separates class-space from non-class metadata.
type MetadataType uint8

const (
	NonClassType MetadataType = iota
	ClassType
)

func metadataType(isClass bool) MetadataType {
	if isClass {
		return ClassType
	}
	return NonClassType
}

func (t MetadataType) String() string {
	if t == ClassType {
		return "class"
	}
	return "nonclass"
}

// Sequence lists the chunk levels an arena requests on its 1st, 2nd, ...
// chunk acquisition. Once exhausted, the last entry repeats forever.
type Sequence []Level

// NewSequence validates levels and returns them as a Sequence.
func NewSequence(levels ...Level) (Sequence, error) {
	if len(levels) == 0 {
		return nil, fmt.Errorf("%w: empty", ErrInvalidSequence)
	}
	for i, level := range levels {
		if !level.IsValid() {
			return nil, fmt.Errorf("%w: entry %d has level %d", ErrInvalidSequence, i, level)
		}
	}
	seq := make(Sequence, len(levels))
	copy(seq, levels)
	return seq, nil
}

// Next returns the level to request when n chunks were already acquired.
func (seq Sequence) Next(n int) Level {
	if n < 0 {
		panicerr("negative chunk count %d", n)
	}
	if n >= len(seq) {
		return seq[len(seq)-1]
	}
	return seq[n]
}

// sequences is indexed by [category][metadata type]. Boot class and
// non-class sequences are configured independently.
var sequences = [categoryCount][2]Sequence{
	StandardCategory: {
		NonClassType: {Level4K, Level4K, Level4K, Level4K, Level16K},
		ClassType:    {Level2K, Level2K, Level2K, Level2K, Level16K},
	},
	BootCategory: {
		NonClassType: {Level4M, Level1M},
		ClassType:    {Level1M, Level256K},
	},
	AnonymousCategory: {
		NonClassType: {Level1K},
		ClassType:    {Level1K},
	},
	ReflectionCategory: {
		NonClassType: {Level2K, Level1K},
		ClassType:    {Level1K},
	},
}

func init() {
	for c := range sequences {
		for t, seq := range sequences[c] {
			if _, err := NewSequence(seq...); err != nil {
				panicerr("sequence %v/%v: %v", Category(c), MetadataType(t), err)
			}
		}
	}
}

// SequenceFor returns the built-in sequence of a category. Unknown
// categories are a configuration error and panic.
func SequenceFor(category Category, isClass bool) Sequence {
	if category >= categoryCount {
		panic(fmt.Errorf("%w: %v", ErrUnknownCategory, category))
	}
	return sequences[category][metadataType(isClass)]
}

// NextLevel is SequenceFor(category, isClass).Next(n).
func NextLevel(category Category, isClass bool, n int) Level {
	return SequenceFor(category, isClass).Next(n)
}
