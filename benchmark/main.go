package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"runtime"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/bytedance/sonic"
	"github.com/klauspost/compress/s2"
	"github.com/sourcegraph/conc/pool"
	"golang.org/x/exp/rand"

	"github.com/xgzlucario/metaspace"
)

type report struct {
	Loaders   int                      `json:"loaders"`
	Allocs    int64                    `json:"allocs"`
	Failed    int64                    `json:"failed"`
	Cost      time.Duration            `json:"cost"`
	Purged    int                      `json:"purged"`
	Allocate  map[string]time.Duration `json:"allocate"`
	Unload    map[string]time.Duration `json:"unload"`
	Metaspace metaspace.MetaspaceStats `json:"metaspace"`
}

func main() {
	var (
		loaders, workers, allocs int
		maxWords                 int
		keep                     float64
		reclaim, out             string
		limit                    uint64
		verbose                  bool
	)
	flag.IntVar(&loaders, "loaders", 10000, "number of class loaders to register.")
	flag.IntVar(&workers, "workers", runtime.NumCPU(), "concurrent workers.")
	flag.IntVar(&allocs, "allocs", 200, "allocations per loader.")
	flag.IntVar(&maxWords, "maxwords", 512, "largest allocation in words.")
	flag.Float64Var(&keep, "keep", 0.2, "share of loaders left registered.")
	flag.StringVar(&reclaim, "reclaim", "balanced", "none, balanced or aggressive.")
	flag.Uint64Var(&limit, "limit", 0, "commit limit in words, 0 is unlimited.")
	flag.StringVar(&out, "out", "", "write an s2 compressed json report to this file.")
	flag.BoolVar(&verbose, "v", false, "log chunk manager events.")
	flag.Parse()

	if verbose {
		metaspace.LogComponents("all")
	}

	options := metaspace.DefaultOptions
	strategy, err := metaspace.ParseReclaimStrategy(reclaim)
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	options.Reclaim = strategy
	options.CommitLimitWords = limit

	ms, err := metaspace.New(options)
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}

	allocLat, unloadLat := NewLatency(), NewLatency()
	var total, failed atomic.Int64

	start := time.Now()
	p := pool.New().WithMaxGoroutines(workers)
	for i := 0; i < loaders; i++ {
		name := gofakeit.Username() + "-" + strconv.Itoa(i)
		p.Go(func() {
			category := pickCategory()
			loader, err := ms.Register(name, category)
			if err != nil {
				panic(err)
			}
			for k := 0; k < allocs; k++ {
				words := uint64(rand.Intn(maxWords) + 1)
				isClass := rand.Intn(8) == 0

				t := time.Now()
				addr, err := loader.Allocate(words, isClass)
				allocLat.Add(time.Since(t))
				total.Add(1)

				if errors.Is(err, metaspace.ErrOutOfMemory) {
					failed.Add(1)
					continue
				} else if err != nil {
					panic(err)
				}
				if rand.Intn(10) == 0 {
					loader.Deallocate(addr, words, isClass)
				}
			}
			if rand.Float64() >= keep {
				t := time.Now()
				if err := ms.Unload(name); err != nil {
					panic(err)
				}
				unloadLat.Add(time.Since(t))
			}
		})
	}
	p.Wait()
	cost := time.Since(start)
	purged := ms.Purge()

	stat := ms.Stats()
	fmt.Println("loaders:", loaders, "remaining:", stat.Loaders)
	fmt.Println("allocs:", total.Load(), "failed:", failed.Load())
	fmt.Println("cost:", cost)
	fmt.Println("purged nodes:", purged)
	fmt.Println("allocate:", allocLat)
	fmt.Println("unload:", unloadLat)
	fmt.Println(stat)

	if out == "" {
		return
	}
	data, err := sonic.Marshal(report{
		Loaders:   loaders,
		Allocs:    total.Load(),
		Failed:    failed.Load(),
		Cost:      cost,
		Purged:    purged,
		Allocate:  allocLat.Summary(),
		Unload:    unloadLat.Summary(),
		Metaspace: stat,
	})
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	if err := os.WriteFile(out, s2.EncodeSnappy(nil, data), 0644); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	fmt.Printf("report: %s (%d bytes json)\n", out, len(data))
}

// pickCategory mimics a typical mix: mostly standard loaders, many
// short-lived anonymous and reflection loaders, the odd boot loader.
func pickCategory() metaspace.Category {
	switch n := rand.Intn(100); {
	case n < 1:
		return metaspace.BootCategory
	case n < 60:
		return metaspace.StandardCategory
	case n < 85:
		return metaspace.AnonymousCategory
	default:
		return metaspace.ReflectionCategory
	}
}
