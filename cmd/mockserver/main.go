package main

import (
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/model-switcher/model-switcher/test/mockserver"
)

func main() {
	addr := flag.String("addr", ":8080", "Server address")
	loadDelay := flag.Duration("load-delay", 0, "Simulated model load time before /health turns 2xx")
	neverHealthy := flag.Bool("never-healthy", false, "Never report healthy (rehearse the rollback path)")
	flag.Parse()

	state := mockserver.NewState()
	if *loadDelay > 0 {
		state.SetHealthyAfterDelay(*loadDelay)
	}
	if *neverHealthy {
		state.SetNeverHealthy(true)
	}

	server := mockserver.NewServer(state)

	// Handle graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Println("Shutting down mock inference server...")
		os.Exit(0)
	}()

	log.Printf("Starting mock inference server on %s (load delay %s)", *addr, *loadDelay)
	if err := server.Run(*addr); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}
