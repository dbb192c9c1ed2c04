package main

import (
	"flag"
	"fmt"
	"net"
	"os"

	"google.golang.org/grpc"

	"sigillo.dev/sigillo/docstore"
	"sigillo.dev/sigillo/verifyrpc"
)

func main() {
	fs := flag.NewFlagSet("sigillo-verifyd", flag.ExitOnError)
	listen := fs.String("listen", "127.0.0.1:9090", "listen address")
	dataDir := fs.String("data-dir", "", "document store data directory")
	_ = fs.Parse(os.Args[1:])

	if *dataDir == "" {
		fmt.Fprintln(os.Stderr, "missing -data-dir")
		os.Exit(2)
	}
	store, err := docstore.New(*dataDir)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	lis, err := net.Listen("tcp", *listen)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer lis.Close()

	s := grpc.NewServer()
	verifyrpc.RegisterVerifyServer(s, &verifyrpc.Server{Store: store})

	fmt.Fprintf(os.Stderr, "sigillo-verifyd listening on %s (data=%s)\n", lis.Addr().String(), *dataDir)
	if err := s.Serve(lis); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
