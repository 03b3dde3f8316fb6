// Package files serves artifacts from the local releases directory.
// Every filesystem access goes through a SafePath produced by Resolve, so a
// request can never read outside the configured root. Download bodies are
// streamed with byte-range support; latest.yml is served from memory with
// caching disabled so auto-updaters always see the current version.
package files
