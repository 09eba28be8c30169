// Command lyceumctl performs operator tasks against the portal API.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/and161185/lyceum-portal/internal/crypto"
	"github.com/and161185/lyceum-portal/internal/model"
)

func usage() {
	fmt.Fprintf(os.Stderr, `lyceumctl
Usage:
  lyceumctl [-addr URL] [-timeout D] <cmd> [args]

Commands:
  version
  create-admin   -u <username> -p <password> [-name <full name>] [-secret <key>]
  set-admin      -telegram-id <id> [-secret <key>]
  login          -u <username> -p <password>        (saves admin session)
  whoami                                            (checks saved session)
  logout
  sign-init-data -id <telegram id> [-first-name n] [-last-name n] [-username n] [-bot-token t]
  gen-secret     [-bytes n]

The secret is taken from -secret, $ADMIN_SECRET_KEY, or prompted on stdin.
`)
	os.Exit(2)
}

var (
	version   = "dev"
	buildDate = "unknown"
)

// main dispatches subcommands.
func main() {
	addr := flag.String("addr", envOr("LYCEUM_API_URL", "http://localhost:8080"), "portal API base URL")
	timeout := flag.Duration("timeout", 30*time.Second, "request timeout")
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() < 1 {
		usage()
	}
	cmd := flag.Arg(0)
	args := flag.Args()[1:]

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()
	c := newClient(*addr, *timeout)

	switch cmd {

	case "version":
		fmt.Printf("lyceumctl %s (%s)\n", version, buildDate)

	case "create-admin":
		fs := flag.NewFlagSet("create-admin", flag.ExitOnError)
		u := fs.String("u", "", "username")
		p := fs.String("p", "", "password")
		name := fs.String("name", "", "full name (defaults to username)")
		secret := fs.String("secret", "", "admin secret key")
		_ = fs.Parse(args)
		if *u == "" || *p == "" {
			fmt.Fprintln(os.Stderr, "need -u and -p")
			os.Exit(1)
		}
		key, err := readSecret(*secret, os.Stdin, os.Stderr)
		if err != nil {
			fail(err)
		}
		if err := createAdmin(ctx, c, key, *u, *p, *name, os.Stdout); err != nil {
			fail(err)
		}

	case "set-admin":
		fs := flag.NewFlagSet("set-admin", flag.ExitOnError)
		id := fs.Int64("telegram-id", 0, "Telegram user id")
		secret := fs.String("secret", "", "admin secret key")
		_ = fs.Parse(args)
		if *id == 0 {
			fmt.Fprintln(os.Stderr, "need -telegram-id")
			os.Exit(1)
		}
		key, err := readSecret(*secret, os.Stdin, os.Stderr)
		if err != nil {
			fail(err)
		}
		if err := setAdmin(ctx, c, key, *id, os.Stdout); err != nil {
			fail(err)
		}

	case "login":
		fs := flag.NewFlagSet("login", flag.ExitOnError)
		u := fs.String("u", "", "username")
		p := fs.String("p", "", "password")
		_ = fs.Parse(args)
		if *u == "" || *p == "" {
			fmt.Fprintln(os.Stderr, "need -u and -p")
			os.Exit(1)
		}
		if err := login(ctx, c, *u, *p, os.Stdout); err != nil {
			fail(err)
		}

	case "whoami":
		if err := whoami(ctx, c, os.Stdout); err != nil {
			fail(err)
		}

	case "logout":
		if err := clearToken(); err != nil {
			fail(err)
		}
		fmt.Println("ok")

	case "sign-init-data":
		fs := flag.NewFlagSet("sign-init-data", flag.ExitOnError)
		id := fs.Int64("id", 0, "Telegram user id")
		first := fs.String("first-name", "Test", "first name")
		last := fs.String("last-name", "", "last name")
		uname := fs.String("username", "", "Telegram username")
		token := fs.String("bot-token", os.Getenv("TELEGRAM_BOT_TOKEN"), "bot token")
		_ = fs.Parse(args)
		raw, err := signInitData(*token, model.TelegramPrincipal{
			ID: *id, FirstName: *first, LastName: *last, Username: *uname,
		}, time.Now())
		if err != nil {
			fail(err)
		}
		fmt.Println(raw)

	case "gen-secret":
		fs := flag.NewFlagSet("gen-secret", flag.ExitOnError)
		n := fs.Int("bytes", 32, "random bytes")
		_ = fs.Parse(args)
		if *n <= 0 {
			fail(errors.New("-bytes must be positive"))
		}
		s, err := crypto.RandHex(*n)
		if err != nil {
			fail(err)
		}
		fmt.Println(s)

	default:
		usage()
	}
}

// ---- helpers ----

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func fail(err error) {
	var ae *apiError
	if errors.As(err, &ae) {
		fmt.Fprintf(os.Stderr, "api error: status=%d msg=%s\n", ae.Status, ae.Message)
		os.Exit(1)
	}
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}
