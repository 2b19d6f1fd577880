package main

import (
	"flag"
	"fmt"
	"log"

	"mint-gate.backend/pkg/crypto"
)

func main() {
	secret := flag.String("secret", "", "secret to hash")
	flag.Parse()

	if *secret == "" {
		log.Fatal("-secret is required")
	}

	hash, err := crypto.HashSecret(*secret)
	if err != nil {
		log.Fatalf("failed to hash secret: %v", err)
	}
	fmt.Println(hash)
}
