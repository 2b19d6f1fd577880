package main

import (
	"encoding/hex"
	"flag"
	"fmt"
	"log"

	"github.com/ethereum/go-ethereum/crypto"
)

func main() {
	label := flag.String("label", "relayer", "label printed with the keypair (relayer or minter)")
	flag.Parse()

	key, err := crypto.GenerateKey()
	if err != nil {
		log.Fatalf("failed to generate key: %v", err)
	}

	address := crypto.PubkeyToAddress(key.PublicKey)
	privateKey := hex.EncodeToString(crypto.FromECDSA(key))

	fmt.Printf("Generated %s keypair\n", *label)
	fmt.Printf("ADDRESS=%s\n", address.Hex())
	fmt.Printf("PRIVATE_KEY=0x%s\n", privateKey)
}
