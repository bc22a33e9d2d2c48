package main

import (
	"log"

	approuters "github.com/yeshengliu/social-media/internal/app_routers"
	"github.com/yeshengliu/social-media/internal/configuration"
)

func main() {
	container, err := configuration.BuildContainer()
	if err != nil {
		log.Fatalf("Failed to build container: %v", err)
	}

	// Ensure cleanup on shutdown
	defer container.Close()

	// Setup routers
	approuters.StartServer(container)
}
