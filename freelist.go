package metaspace

// chunkList is an intrusive doubly linked list of free chunks at one level.
type chunkList struct {
	head  *Chunk
	tail  *Chunk
	count int
}

func (l *chunkList) empty() bool {
	return l.head == nil
}

// pushFront adds c ahead of the others, it is handed out first.
func (l *chunkList) pushFront(c *Chunk) {
	c.prev, c.next = nil, l.head
	if l.head != nil {
		l.head.prev = c
	} else {
		l.tail = c
	}
	l.head = c
	l.count++
}

// pushBack adds c behind the others, it is handed out last.
func (l *chunkList) pushBack(c *Chunk) {
	c.prev, c.next = l.tail, nil
	if l.tail != nil {
		l.tail.next = c
	} else {
		l.head = c
	}
	l.tail = c
	l.count++
}

func (l *chunkList) popFront() *Chunk {
	c := l.head
	if c != nil {
		l.remove(c)
	}
	return c
}

func (l *chunkList) remove(c *Chunk) {
	if c.prev != nil {
		c.prev.next = c.next
	} else {
		l.head = c.next
	}
	if c.next != nil {
		c.next.prev = c.prev
	} else {
		l.tail = c.prev
	}
	c.prev, c.next = nil, nil
	l.count--
}

// freeLists holds one chunkList per level.
type freeLists struct {
	lists [NumLevels]chunkList
	words uint64
}

// add puts a free chunk on its level list. Fully committed chunks go in
// front so they are reused before chunks that still need commits.
func (fl *freeLists) add(c *Chunk) {
	if c.committed == c.Words() {
		fl.lists[c.level].pushFront(c)
	} else {
		fl.lists[c.level].pushBack(c)
	}
	fl.words += c.Words()
}

func (fl *freeLists) remove(c *Chunk) {
	fl.lists[c.level].remove(c)
	fl.words -= c.Words()
}

func (fl *freeLists) take(level Level) *Chunk {
	c := fl.lists[level].popFront()
	if c != nil {
		fl.words -= c.Words()
	}
	return c
}

// smallestAbove returns the smallest level > level with a free chunk.
func (fl *freeLists) smallestAbove(level Level) Level {
	for l := level + 1; l <= MaxLevel; l++ {
		if !fl.lists[l].empty() {
			return l
		}
	}
	return InvalidLevel
}

func (fl *freeLists) counts() (counts [NumLevels]int) {
	for i := range fl.lists {
		counts[i] = fl.lists[i].count
	}
	return
}
