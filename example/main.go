package main

import (
	"fmt"

	"github.com/xgzlucario/metaspace"
)

func main() {
	metaspace.LogComponents("all")

	ms, err := metaspace.New(metaspace.DefaultOptions)
	if err != nil {
		panic(err)
	}

	app, err := ms.Register("app", metaspace.StandardCategory)
	if err != nil {
		panic(err)
	}

	// 3000 words fit the first 4K chunk, 2000 more need a second one.
	a, _ := app.Allocate(3000, false)
	b, _ := app.Allocate(2000, false)
	k, _ := app.Allocate(300, true)
	fmt.Printf("a=%#x b=%#x klass=%#x\n", a, b, k)
	fmt.Println(app.Stats().NonClass)

	// freed words are reused by the same loader.
	app.Deallocate(b, 2000, false)
	c, _ := app.Allocate(1500, false)
	fmt.Printf("c=%#x reuses b: %v\n", c, c == b)
	fmt.Println(app.Stats().NonClass)

	if err := ms.Unload("app"); err != nil {
		panic(err)
	}
	fmt.Println("purged nodes:", ms.Purge())
	fmt.Println(ms.Stats())
}
