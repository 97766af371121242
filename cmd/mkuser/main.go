// mkuser provisions a user with a fresh API token, for development and
// operations. The token is printed once; only its hash is stored.
package main

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"flag"
	"fmt"
	"os"

	"github.com/workforge/relay/internal/auth"
	"github.com/workforge/relay/internal/config"
	"github.com/workforge/relay/internal/store"
)

func main() {
	name := flag.String("name", "", "display name for the user")
	email := flag.String("email", "", "email address (optional)")
	flag.Parse()

	if *name == "" {
		fmt.Fprintln(os.Stderr, "usage: mkuser -name <name> [-email <email>]")
		os.Exit(1)
	}

	cfg := config.Load()
	ctx := context.Background()

	var db store.DataStore
	if cfg.DatabaseURL != "" {
		pg, err := store.NewPostgresStore(ctx, cfg.DatabaseURL)
		if err != nil {
			fmt.Fprintf(os.Stderr, "postgres connection failed: %v\n", err)
			os.Exit(1)
		}
		db = pg
	} else {
		sq, err := store.NewSQLiteStore(ctx, cfg.SQLitePath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "sqlite open failed: %v\n", err)
			os.Exit(1)
		}
		db = sq
	}
	defer db.Close()

	token, err := newToken()
	if err != nil {
		fmt.Fprintf(os.Stderr, "token generation failed: %v\n", err)
		os.Exit(1)
	}

	user, err := db.CreateUser(ctx, *name, *email, auth.HashToken(token))
	if err != nil {
		fmt.Fprintf(os.Stderr, "user creation failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("user id: %s\n", user.ID)
	fmt.Printf("token:   %s\n", token)
	fmt.Println("store the token now; it cannot be recovered later")
}

func newToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
