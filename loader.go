package metaspace

// ClassLoaderMetaspace holds the arenas of one class loader: one for
// non-class metadata and, with class space enabled, one for class
// metadata.
type ClassLoaderMetaspace struct {
	name     string
	category Category
	nonClass *SpaceManager
	class    *SpaceManager // nil without class space
}

func newClassLoaderMetaspace(ms *Metaspace, name string, category Category) *ClassLoaderMetaspace {
	loader := &ClassLoaderMetaspace{
		name:     name,
		category: category,
		nonClass: NewSpaceManager(name+"/nonclass", ms.nonClass, SequenceFor(category, false)),
	}
	if ms.class != nil {
		loader.class = NewSpaceManager(name+"/class", ms.class, SequenceFor(category, true))
	}
	return loader
}

// Name returns the loader name.
func (l *ClassLoaderMetaspace) Name() string { return l.name }

// Category returns the loader category.
func (l *ClassLoaderMetaspace) Category() Category { return l.category }

func (l *ClassLoaderMetaspace) arena(isClass bool) *SpaceManager {
	if isClass && l.class != nil {
		return l.class
	}
	return l.nonClass
}

// Allocate returns words of class or non-class metadata.
func (l *ClassLoaderMetaspace) Allocate(words uint64, isClass bool) (Addr, error) {
	return l.arena(isClass).Allocate(words)
}

// Deallocate returns words at addr to the arena it came from.
func (l *ClassLoaderMetaspace) Deallocate(addr Addr, words uint64, isClass bool) {
	l.arena(isClass).Deallocate(addr, words)
}

// Stats
func (l *ClassLoaderMetaspace) Stats() LoaderStats {
	stat := LoaderStats{
		Name:     l.name,
		Category: l.category.String(),
		NonClass: l.nonClass.Stats(),
	}
	if l.class != nil {
		stat.Class = l.class.Stats()
	}
	return stat
}

func (l *ClassLoaderMetaspace) retire() {
	l.nonClass.Retire()
	if l.class != nil {
		l.class.Retire()
	}
}
