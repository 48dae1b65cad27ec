// Package main is the interactive Tavola admin console.
package main

import (
	"cmp"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"time"

	"github.com/atinyakov/tavola/internal/client/console"
	"golang.org/x/term"
)

var (
	version   string
	buildDate string
)

// main parses command-line flags and starts the console shell.
func main() {
	var (
		baseURL string
		caFile  string
		timeout time.Duration
		showVer bool
	)

	flag.StringVar(&baseURL, "url", "https://localhost:8080", "server base URL")
	flag.StringVar(&caFile, "ca", "certs/ca.crt", "path to CA cert (empty to use system roots)")
	flag.DurationVar(&timeout, "timeout", 10*time.Second, "HTTP request timeout")
	flag.BoolVar(&showVer, "version", false, "show build version and date")
	flag.Parse()

	if showVer {
		fmt.Printf("Tavola Console\nVersion: %s\nBuild Date: %s\n", cmp.Or(version, "N/A"), cmp.Or(buildDate, "N/A"))
		return
	}

	client, err := console.NewClient(baseURL, caFile, timeout)
	if err != nil {
		log.Fatal(err)
	}

	prompt := console.NewPrompter(os.Stdin, os.Stdout)
	if term.IsTerminal(int(os.Stdin.Fd())) {
		prompt.ReadPassword = func() (string, error) {
			pw, err := term.ReadPassword(int(os.Stdin.Fd()))
			return string(pw), err
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	fmt.Println("Tavola admin console. Type 'help' for a list of commands.")
	console.NewShell(client, prompt, os.Stdout).Run(ctx)
}
