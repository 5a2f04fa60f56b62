// Package config provides configuration structures and utilities for
// cjdnswalk: the admin endpoint of the local router, crawl pacing and retry
// settings, and output selection. Values come from defaults, an optional
// YAML file and the cjdns ~/.cjdnsadmin credentials file, in that order,
// with CLI flags applied last by the caller.
package config
