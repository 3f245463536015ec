package metaspace

import (
	"strconv"
	"testing"

	"golang.org/x/exp/rand"
)

func BenchmarkAcquire(b *testing.B) {
	for _, level := range []Level{Level1K, Level64K, Level4M} {
		b.Run(level.String(), func(b *testing.B) {
			cm, _ := newTestManager(DefaultOptions, 0)
			b.ResetTimer()

			for i := 0; i < b.N; i++ {
				c, err := cm.Acquire(level)
				if err != nil {
					b.Fatal(err)
				}
				cm.Release(c)
			}
		})
	}

	b.Run("mixed", func(b *testing.B) {
		cm, _ := newTestManager(DefaultOptions, 0)
		held := make([]*Chunk, 0, 1024)
		b.ResetTimer()

		for i := 0; i < b.N; i++ {
			if len(held) == cap(held) {
				for _, c := range held {
					cm.Release(c)
				}
				held = held[:0]
			}
			c, err := cm.Acquire(Level(rand.Intn(int(Level64K) + 1)))
			if err != nil {
				b.Fatal(err)
			}
			held = append(held, c)
		}
	})
}

func BenchmarkAllocate(b *testing.B) {
	for _, category := range []Category{StandardCategory, BootCategory, AnonymousCategory} {
		b.Run(category.String(), func(b *testing.B) {
			cm, _ := newTestManager(DefaultOptions, 0)
			sm := NewSpaceManager("bench", cm, SequenceFor(category, false))
			b.ResetTimer()

			for i := 0; i < b.N; i++ {
				if _, err := sm.Allocate(uint64(i%256 + 1)); err != nil {
					b.Fatal(err)
				}
				if i%100000 == 99999 {
					b.StopTimer()
					sm.Retire()
					sm = NewSpaceManager("bench", cm, SequenceFor(category, false))
					b.StartTimer()
				}
			}
		})
	}

	b.Run("reuse", func(b *testing.B) {
		cm, _ := newTestManager(DefaultOptions, 0)
		sm := NewSpaceManager("bench", cm, SequenceFor(StandardCategory, false))
		addrs := make([]Addr, 64)
		for i := range addrs {
			addrs[i], _ = sm.Allocate(uint64(i + 1))
		}
		b.ResetTimer()

		for i := 0; i < b.N; i++ {
			k := i % len(addrs)
			sm.Deallocate(addrs[k], uint64(k+1))
			addrs[k], _ = sm.Allocate(uint64(k + 1))
		}
	})
}

func BenchmarkRegister(b *testing.B) {
	ms, err := New(DefaultOptions)
	if err != nil {
		b.Fatal(err)
	}
	b.ResetTimer()

	b.RunParallel(func(pb *testing.PB) {
		id := strconv.FormatUint(rand.Uint64(), 36)
		for i := 0; pb.Next(); i++ {
			name := id + "-" + strconv.Itoa(i)
			loader, err := ms.Register(name, StandardCategory)
			if err != nil {
				b.Fatal(err)
			}
			loader.Allocate(64, false)
			loader.Allocate(16, true)
			ms.Unload(name)
		}
	})
}
