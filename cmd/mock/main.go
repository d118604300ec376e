// mock serves a local stand-in for the DJDog pet API under /mock. Point
// provider.baseURL at http://localhost:8080/mock to farm against it.
package main

import (
	"flag"
	"log"
	"net/http"
	"time"

	"tapfarm/internal/mockapi"
)

func main() {
	addr := flag.String("addr", ":8080", "listen address")
	maxBar := flag.Int64("max-bar", 1000, "bar capacity per account")
	regen := flag.Int64("regen", 1, "bar points regenerated per second")
	levelCost := flag.Int64("level-cost", 100, "gold per level for a level up")
	flag.Parse()

	mock := mockapi.New(mockapi.Options{
		Prefix:      "/mock",
		MaxBar:      *maxBar,
		RegenPerSec: *regen,
		LevelUpCost: *levelCost,
	})

	srv := &http.Server{
		Addr:              *addr,
		Handler:           mock,
		ReadHeaderTimeout: 10 * time.Second,
	}

	log.Printf("mock listening on %s", *addr)
	log.Fatal(srv.ListenAndServe())
}
