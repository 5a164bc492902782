// Command tokenauth-keygen prints fresh key material for the APP_JWT_KEY,
// APP_JWT_REFRESH_KEY and APP_KEY environment variables.
package main

import (
	"crypto/rand"
	"encoding/base64"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/MrEthical07/tokenauth"
	"github.com/MrEthical07/tokenauth/crypt"
)

func main() {
	var (
		size   = flag.Int("bytes", 64, "random bytes per JWT signing key")
		format = flag.String("format", "env", "output format: env or yaml")
	)
	flag.Parse()

	if err := run(os.Stdout, rand.Reader, *size, *format); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(w io.Writer, rnd io.Reader, size int, format string) error {
	if size < 32 {
		return fmt.Errorf("bytes must be at least 32, got %d", size)
	}

	access, err := randomKey(rnd, size)
	if err != nil {
		return err
	}
	refresh, err := randomKey(rnd, size)
	if err != nil {
		return err
	}
	app, err := randomKey(rnd, crypt.KeySize)
	if err != nil {
		return err
	}
	app = "base64:" + app

	switch format {
	case "env":
		fmt.Fprintf(w, "%s=%s\n", tokenauth.EnvJWTKey, access)
		fmt.Fprintf(w, "%s=%s\n", tokenauth.EnvJWTRefreshKey, refresh)
		fmt.Fprintf(w, "%s=%s\n", tokenauth.EnvAppKey, app)
	case "yaml":
		fmt.Fprintf(w, "jwt_key: %q\n", access)
		fmt.Fprintf(w, "jwt_refresh_key: %q\n", refresh)
		fmt.Fprintf(w, "app_key: %q\n", app)
	default:
		return fmt.Errorf("unknown format %q", format)
	}
	return nil
}

func randomKey(rnd io.Reader, n int) (string, error) {
	b := make([]byte, n)
	if _, err := io.ReadFull(rnd, b); err != nil {
		return "", fmt.Errorf("read random: %w", err)
	}
	return base64.StdEncoding.EncodeToString(b), nil
}
