// Command intentsign signs order and commitment payloads with a local key and
// prints the signed submission envelope as JSON. It exists for operators and
// integration testing; production signatures come from user wallets.
//
// Usage:
//
//	intentsign -kind order -in order.json [-chain-id 137] [-contract 0x...]
//	intentsign -kind commitment -in commitment.json
//	intentsign -encrypt-key
//
// The private key is resolved, in order, from -key, INTENT_SIGNER_KEY, or an
// encrypted key file given by -key-file plus INTENT_KEY_PASSWORD.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/predifi/intent-gateway/internal/domain"
	"github.com/predifi/intent-gateway/internal/keystore"
	"github.com/predifi/intent-gateway/internal/typeddata"
	"golang.org/x/term"
)

func main() {
	kind := flag.String("kind", "order", "payload kind: order or commitment")
	in := flag.String("in", "", "path to the unsigned payload JSON (stdin if empty)")
	keyHex := flag.String("key", "", "hex private key (overrides INTENT_SIGNER_KEY)")
	keyFile := flag.String("key-file", "", "path to an encrypted key file")
	chainID := flag.Int64("chain-id", 137, "EIP-155 chain id")
	contract := flag.String("contract", "", "verifying contract for the order domain")
	encryptKey := flag.Bool("encrypt-key", false, "encrypt a private key to stdout and exit")
	flag.Parse()

	if *encryptKey {
		if err := runEncryptKey(); err != nil {
			fatalf("%v", err)
		}
		return
	}

	signer, err := loadSigner(*keyHex, *keyFile)
	if err != nil {
		fatalf("%v", err)
	}

	payload, err := readPayload(*in)
	if err != nil {
		fatalf("%v", err)
	}

	schema := typeddata.NewSchema(*chainID, *contract)

	var out any
	switch *kind {
	case "order":
		out, err = signOrder(schema, signer, payload)
	case "commitment":
		out, err = signCommitment(schema, signer, payload)
	default:
		fatalf("unknown kind %q (want order or commitment)", *kind)
	}
	if err != nil {
		fatalf("%v", err)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		fatalf("encoding output: %v", err)
	}
}

func signOrder(schema typeddata.Schema, signer *typeddata.Signer, payload []byte) (any, error) {
	var o domain.OrderIntent
	if err := json.Unmarshal(payload, &o); err != nil {
		return nil, fmt.Errorf("parsing order payload: %w", err)
	}
	if o.Maker == "" {
		o.Maker = signer.Address().Hex()
	}

	digest, err := typeddata.HashOrder(schema.Order, o)
	if err != nil {
		return nil, fmt.Errorf("hashing order: %w", err)
	}
	sig, err := signer.SignDigest(digest)
	if err != nil {
		return nil, err
	}
	return domain.SignedOrder{Order: o, Signature: sig}, nil
}

func signCommitment(schema typeddata.Schema, signer *typeddata.Signer, payload []byte) (any, error) {
	var c domain.CommitmentIntent
	if err := json.Unmarshal(payload, &c); err != nil {
		return nil, fmt.Errorf("parsing commitment payload: %w", err)
	}
	if c.UserAddress == "" {
		c.UserAddress = signer.Address().Hex()
	}

	digest, err := typeddata.HashCommitment(schema.Commitment, c)
	if err != nil {
		return nil, fmt.Errorf("hashing commitment: %w", err)
	}
	sig, err := signer.SignDigest(digest)
	if err != nil {
		return nil, err
	}
	return domain.SignedCommitment{Commitment: c, Signature: sig}, nil
}

// loadSigner resolves the private key from the flag, environment, or an
// encrypted key file, and builds a Signer from it.
func loadSigner(keyHex, keyFile string) (*typeddata.Signer, error) {
	if keyHex == "" {
		keyHex = os.Getenv("INTENT_SIGNER_KEY")
	}
	resolved, err := keystore.LoadKey(keystore.KeyConfig{
		RawPrivateKey:    keyHex,
		EncryptedKeyPath: keyFile,
		KeyPassword:      os.Getenv("INTENT_KEY_PASSWORD"),
	})
	if err != nil {
		return nil, err
	}
	return typeddata.NewSigner(resolved)
}

func readPayload(path string) ([]byte, error) {
	if path == "" {
		data, err := os.ReadFile("/dev/stdin")
		if err != nil {
			return nil, fmt.Errorf("reading stdin: %w", err)
		}
		return data, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading payload: %w", err)
	}
	return data, nil
}

// runEncryptKey prompts for a private key and password on the terminal and
// writes the encrypted key JSON to stdout.
func runEncryptKey() error {
	fmt.Fprint(os.Stderr, "private key (hex): ")
	keyBytes, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return fmt.Errorf("reading key: %w", err)
	}

	fmt.Fprint(os.Stderr, "password: ")
	pwBytes, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return fmt.Errorf("reading password: %w", err)
	}

	blob, err := keystore.EncryptKey(string(keyBytes), string(pwBytes))
	if err != nil {
		return err
	}
	fmt.Println(string(blob))
	return nil
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "intentsign: "+format+"\n", args...)
	os.Exit(1)
}
