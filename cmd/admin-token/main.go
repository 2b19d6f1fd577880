package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"mint-gate.backend/pkg/jwt"
)

func main() {
	subject := flag.String("subject", "ops", "token subject")
	expiry := flag.Duration("expiry", 24*time.Hour, "token lifetime")
	flag.Parse()

	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		log.Fatal("JWT_SECRET is required")
	}

	svc := jwt.NewJWTService(secret, *expiry)
	token, err := svc.GenerateToken(*subject, "admin")
	if err != nil {
		log.Fatalf("failed to generate token: %v", err)
	}

	fmt.Println("Generated admin token")
	fmt.Printf("TOKEN=%s\n", token)
}
