package main

import (
	"log"

	"github.com/MrSnakeDoc/restreamer/internal/app"
)

func main() {
	a, err := app.New()
	if err != nil {
		log.Fatalf("❌ restreamer failed to initialize: %v", err)
	}
	if err := a.Run(); err != nil {
		log.Fatalf("❌ restreamer stopped with error: %v", err)
	}
}
