// Package main is a development utility for generating a random JWT signing
// secret. It prints the secret together with a ready-to-paste export line so
// developers can quickly configure a local server (the server refuses to start
// in production without ORG_JWT_SECRET set). Do not reuse generated secrets
// across environments — rotating the secret invalidates all issued tokens.
package main

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"log"
)

func main() {
	randomBytes := make([]byte, 32)
	if _, err := rand.Read(randomBytes); err != nil {
		log.Fatal(err)
	}

	secret := base64.RawURLEncoding.EncodeToString(randomBytes)

	fmt.Println("==========================================================")
	fmt.Println("JWT Signing Secret Generated")
	fmt.Println("==========================================================")
	fmt.Printf("\nSecret: %s\n", secret)
	fmt.Println("\n==========================================================")
	fmt.Println("Shell export:")
	fmt.Println("==========================================================")
	fmt.Printf("\nexport ORG_JWT_SECRET='%s'\n", secret)
	fmt.Println("\n==========================================================")
}
