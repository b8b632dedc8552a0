// Package peers defines the group roster.
//
// All nodes sharing a broadcast segment belong to one group. The roster maps
// friendly monikers to the short radio addresses carried in beacon frames,
// and is loaded from a peers.json file in the data directory. The roster is
// purely descriptive: synchronization itself requires no membership
// knowledge beyond a node's own address and group.
package peers
