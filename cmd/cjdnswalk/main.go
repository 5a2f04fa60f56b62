// Package main provides the entry point for the cjdnswalk CLI.
//
// cjdnswalk maps a cjdns mesh by asking every reachable node for its
// peers through the local cjdroute, writing what it learns as an event
// log that `cjdnswalk graph` turns into a node and edge list.
//
// Usage:
//
//	cjdnswalk walk -o walk.log.zst
//	cjdnswalk graph walk.log.zst
//
// See --help for all available options.
package main

// main is the entry point for cjdnswalk.
func main() {
	Execute()
}
