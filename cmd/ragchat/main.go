// Command ragchat is the entry point for the Physical AI book chatbot.
// It provides a CLI (via Cobra) for serving the HTTP API and for ingesting
// the book's markdown sources into the vector store.
package main

import (
	"fmt"
	"os"

	"github.com/physai-book/ragchat-go/cmd/ragchat/commands"
)

func main() {
	if err := commands.NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
