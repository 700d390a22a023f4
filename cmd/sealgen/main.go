// Command sealgen is a development tool for producing signed QR seal
// payloads and Ed25519 keypairs.
//
// Usage:
//
//	go run ./cmd/sealgen keygen
//	go run ./cmd/sealgen pack -key <hex-private-key> -amount 4500.00 -ref TXN-00123 -merchant "Cafe Luna"
package main

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dokubo/veriseal/internal/qrseal"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: sealgen <command>")
		fmt.Println("Commands: keygen, pack")
		os.Exit(1)
	}

	switch os.Args[1] {
	case "keygen":
		keygen()
	case "pack":
		pack(os.Args[2:])
	default:
		log.Fatalf("Unknown command %q", os.Args[1])
	}
}

func keygen() {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		log.Fatalf("Failed to generate keypair: %v", err)
	}
	fmt.Printf("public key:  %s\n", hex.EncodeToString(pub))
	fmt.Printf("private key: %s\n", hex.EncodeToString(priv))
}

func pack(args []string) {
	fs := flag.NewFlagSet("pack", flag.ExitOnError)
	keyHex := fs.String("key", "", "hex-encoded Ed25519 private key (required)")
	amount := fs.String("amount", "", "transaction amount, e.g. 4500.00 (required)")
	currency := fs.String("currency", qrseal.DefaultCurrency, "ISO currency code")
	ref := fs.String("ref", "", "transaction reference (required)")
	merchant := fs.String("merchant", "", "merchant identifier (required)")
	tax := fs.String("tax", "", "tax amount (optional)")
	ts := fs.String("timestamp", "", "RFC 3339 timestamp (default: now)")
	sender := fs.String("sender", "", "sender account (optional)")
	receiver := fs.String("receiver", "", "receiver account (optional)")
	_ = fs.Parse(args)

	if *keyHex == "" || *amount == "" || *ref == "" || *merchant == "" {
		fs.Usage()
		os.Exit(1)
	}

	keyBytes, err := hex.DecodeString(*keyHex)
	if err != nil || len(keyBytes) != ed25519.PrivateKeySize {
		log.Fatal("Invalid private key: expected 128 hex characters")
	}

	seal := &qrseal.Seal{
		Amount:          decimal.RequireFromString(*amount),
		Currency:        *currency,
		Timestamp:       time.Now().UTC(),
		TransactionRef:  *ref,
		MerchantID:      *merchant,
		SenderAccount:   *sender,
		ReceiverAccount: *receiver,
	}
	if *tax != "" {
		d := decimal.RequireFromString(*tax)
		seal.TaxAmount = &d
	}
	if *ts != "" {
		parsed, err := time.Parse(time.RFC3339, *ts)
		if err != nil {
			log.Fatalf("Invalid timestamp: %v", err)
		}
		seal.Timestamp = parsed
	}

	payload, err := qrseal.Pack(seal, ed25519.PrivateKey(keyBytes))
	if err != nil {
		log.Fatalf("Failed to pack seal: %v", err)
	}

	fmt.Printf("payload (base64): %s\n", base64.StdEncoding.EncodeToString(payload))
	fmt.Printf("payload size:     %d bytes\n", len(payload))
}
