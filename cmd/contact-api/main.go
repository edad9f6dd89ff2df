package main

import (
	"context"
	"os"

	"github.com/quantumdatasynergy/contact-api/pkg/cli"
)

func main() {
	os.Exit(cli.Execute(context.Background(), os.Args[1:], os.Stderr))
}
