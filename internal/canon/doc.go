// Package canon produces canonical JSON and content-addressed ids.
//
// Marshal follows RFC 8785: object keys are ordered by UTF-16 code units,
// strings are NFC-normalized and only the characters JSON requires are
// escaped, and numbers use the shortest round-trip form. Snapshots of hosts
// and harness trace steps are hashed from this encoding, so two runs that
// observe the same arrays produce the same ids.
package canon
