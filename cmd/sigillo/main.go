package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"sigillo.dev/sigillo/commitment"
	"sigillo.dev/sigillo/config"
	"sigillo.dev/sigillo/custody"
	"sigillo.dev/sigillo/docstore"
	"sigillo.dev/sigillo/hashutil"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, out io.Writer, errOut io.Writer) int {
	if len(args) == 0 {
		printUsage(errOut)
		return 2
	}

	switch args[0] {
	case "fingerprint":
		return cmdFingerprint(args[1:], out, errOut)
	case "commit":
		return cmdCommit(args[1:], out, errOut)
	case "resync":
		return cmdResync(args[1:], out, errOut)
	case "asset":
		return cmdAsset(args[1:], out, errOut)
	case "help", "-h", "--help":
		printUsage(out)
		return 0
	default:
		fmt.Fprintf(errOut, "unknown command: %s\n\n", args[0])
		printUsage(errOut)
		return 2
	}
}

func printUsage(w io.Writer) {
	fmt.Fprint(w, `usage: sigillo <command> [flags]

commands:
  fingerprint -file <path>
      print the sha256 fingerprint and CID of a local file
  commit -data <dir> -storage <id> -path <rel>
      print the canonical commitment payload, hash and CID for a stored document
  resync -data <dir> -storage <id>
      repair metadata location fields after external directory moves
  asset -config <file> [-id <asset-id>] [-creator <address>]
      look up an issued asset by id, or list assets by creator address
`)
}

func cmdFingerprint(args []string, out, errOut io.Writer) int {
	fs := flag.NewFlagSet("fingerprint", flag.ContinueOnError)
	fs.SetOutput(errOut)
	file := fs.String("file", "", "file to fingerprint")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *file == "" {
		fmt.Fprintln(errOut, "missing -file")
		return 2
	}
	data, err := os.ReadFile(*file)
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 1
	}
	fmt.Fprintf(out, "sha256: %s\n", hashutil.Fingerprint(data))
	fmt.Fprintf(out, "cid:    %s\n", hashutil.CIDv1RawSHA256String(data))
	fmt.Fprintf(out, "size:   %d\n", len(data))
	return 0
}

func cmdCommit(args []string, out, errOut io.Writer) int {
	fs := flag.NewFlagSet("commit", flag.ContinueOnError)
	fs.SetOutput(errOut)
	dataDir := fs.String("data", "", "document store data directory")
	storageID := fs.String("storage", "", "namespace (storage id)")
	relPath := fs.String("path", "", "document path relative to the namespace")
	baseURL := fs.String("base-url", "https://localhost", "public base URL for derived links")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *dataDir == "" || *storageID == "" || *relPath == "" {
		fmt.Fprintln(errOut, "missing -data, -storage or -path")
		return 2
	}

	store, err := docstore.New(*dataDir)
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 1
	}
	rec, err := store.Record(*storageID, *relPath)
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 1
	}
	b := &commitment.Builder{PublicBaseURL: *baseURL}
	c, err := b.Build(rec)
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 1
	}
	fmt.Fprintf(out, "payload: %s\n", c.Canonical)
	fmt.Fprintf(out, "sha256:  %s\n", c.HashHex)
	fmt.Fprintf(out, "base64:  %s\n", c.HashB64)
	fmt.Fprintf(out, "cid:     %s\n", c.CID)
	fmt.Fprintf(out, "url:     %s\n", c.CommitmentURL)
	return 0
}

func cmdAsset(args []string, out, errOut io.Writer) int {
	fs := flag.NewFlagSet("asset", flag.ContinueOnError)
	fs.SetOutput(errOut)
	configPath := fs.String("config", "", "service configuration file")
	assetID := fs.Uint64("id", 0, "asset id to look up")
	creator := fs.String("creator", "", "creator address to list assets for")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *configPath == "" {
		fmt.Fprintln(errOut, "missing -config")
		return 2
	}
	if (*assetID == 0) == (*creator == "") {
		fmt.Fprintln(errOut, "exactly one of -id or -creator is required")
		return 2
	}

	cfg, err := config.LoadFile(*configPath)
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 1
	}
	client, err := custody.New(custody.Config{
		BaseURL:   cfg.Custody.BaseURL,
		HSMID:     cfg.Custody.HSMID,
		AlgodID:   cfg.Custody.AlgodID,
		IndexerID: cfg.Custody.IndexerID,
	})
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 1
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	if err := client.Login(ctx, cfg.Custody.Email, cfg.Custody.Password); err != nil {
		fmt.Fprintln(errOut, err)
		return 1
	}
	var raw json.RawMessage
	if *assetID != 0 {
		raw, err = client.AssetInfo(ctx, *assetID)
	} else {
		raw, err = client.SearchAssets(ctx, *creator)
	}
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 1
	}
	var pretty bytes.Buffer
	if json.Indent(&pretty, raw, "", "  ") != nil {
		fmt.Fprintln(out, string(raw))
		return 0
	}
	fmt.Fprintln(out, pretty.String())
	return 0
}

func cmdResync(args []string, out, errOut io.Writer) int {
	fs := flag.NewFlagSet("resync", flag.ContinueOnError)
	fs.SetOutput(errOut)
	dataDir := fs.String("data", "", "document store data directory")
	storageID := fs.String("storage", "", "namespace (storage id)")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *dataDir == "" || *storageID == "" {
		fmt.Fprintln(errOut, "missing -data or -storage")
		return 2
	}
	store, err := docstore.New(*dataDir)
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 1
	}
	if err := store.Resync(*storageID); err != nil {
		fmt.Fprintln(errOut, err)
		return 1
	}
	fmt.Fprintf(out, "resynced %s\n", *storageID)
	return 0
}
