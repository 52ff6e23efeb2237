// Package integration holds end-to-end tests. Run them with -tags integration;
// they need a Docker daemon for the Redis container.
package integration
