package main

import (
	"log"
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Printf("[replay] %v", err)
		os.Exit(1)
	}
}
