// Package netif describes host network interfaces for multicast discovery.
//
// Discovery needs only a handful of facts per interface: its name and
// index, whether it is up and multicast-capable, and its IPv4 address.
// Provider hides where those facts come from, so discovery can be driven
// by SystemProvider on a real host or by Static in tests.
package netif
