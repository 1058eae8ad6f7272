package app

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"

	payloadschema "leafmart.dev/catalog/schema"
)

func runValidate(args []string) int {
	fs := flag.NewFlagSet("validate", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	files := fs.Args()
	if len(files) == 0 {
		fmt.Fprintln(os.Stderr, "usage: catalog validate <file.json> [file.json ...]")
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "Each file holds either one scraped listing object or an array of them.")
		return 2
	}

	invalid := 0
	for _, path := range files {
		listings, err := readListingFile(path)
		if err != nil {
			invalid++
			fmt.Fprintf(os.Stderr, "%s: %v\n", path, err)
			continue
		}
		fmt.Printf("%s: ok (%d listing(s))\n", path, len(listings))
	}

	if invalid > 0 {
		fmt.Fprintf(os.Stderr, "%d of %d file(s) failed validation\n", invalid, len(files))
		return 1
	}
	return 0
}

// readListingFile validates a payload file and returns the listings it
// holds. A file is either one listing object or a JSON array of them.
func readListingFile(path string) ([]payloadschema.ScrapedListing, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}

	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" {
		return nil, fmt.Errorf("file is empty")
	}

	if strings.HasPrefix(trimmed, "[") {
		var items []json.RawMessage
		if err := json.Unmarshal([]byte(trimmed), &items); err != nil {
			return nil, fmt.Errorf("decode listing array: %w", err)
		}
		if len(items) == 0 {
			return nil, fmt.Errorf("listing array is empty")
		}

		listings := make([]payloadschema.ScrapedListing, 0, len(items))
		for i, item := range items {
			listing, err := payloadschema.ValidateScrapedListingPayload(item)
			if err != nil {
				return nil, fmt.Errorf("listing %d: %w", i, err)
			}
			listings = append(listings, *listing)
		}
		return listings, nil
	}

	listing, err := payloadschema.ValidateScrapedListingPayload(json.RawMessage(trimmed))
	if err != nil {
		return nil, err
	}
	return []payloadschema.ScrapedListing{*listing}, nil
}
