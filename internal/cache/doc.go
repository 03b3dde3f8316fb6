// Package cache holds the in-memory snapshot of the remote release list.
// A snapshot pairs the releases with the time they were fetched and is always
// replaced as a whole under one lock, so readers never see a timestamp that
// belongs to different data. The directory client decides freshness through
// Fresh(ttl); nothing here performs network I/O.
package cache
