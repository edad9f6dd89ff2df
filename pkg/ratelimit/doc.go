// Package ratelimit implements fixed-window admission per client identity,
// backed by an in-process or Redis counter store, plus a per-IP token-bucket
// flood guard for the whole API.
package ratelimit
