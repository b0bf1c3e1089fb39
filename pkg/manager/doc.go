/*
Package manager implements the authoritative LDM backend: a Raft-
replicated finite state machine fronting a bbolt store, plus the
cluster's certificate authority and join-token issuance. Manager is the
thing pkg/repository wraps to present the authoritative backend behind
the uniform repository contract; the local (single-user) backend never
touches this package.

# Architecture

	┌──────────────────────── Manager node ────────────────────────┐
	│                                                                │
	│  ┌──────────────────────────────────────────────┐             │
	│  │                   Manager                      │             │
	│  │  - Apply(cmd): propose a hierarchy mutation    │             │
	│  │  - read wrappers: hit the local store directly │             │
	│  │  - Bootstrap/Join/AddVoter/RemoveServer        │             │
	│  └──────────────────┬───────────────────────────┘             │
	│                     │                                          │
	│  ┌──────────────────▼───────────────────────────┐             │
	│  │            Raft consensus layer                │             │
	│  │  - leader election, log replication            │             │
	│  │  - FSM applies committed commands              │             │
	│  └──────────────────┬───────────────────────────┘             │
	│                     │                                          │
	│  ┌──────────────────▼───────────────────────────┐             │
	│  │                    FSM                          │             │
	│  │  - Apply/Snapshot/Restore over storage.Store   │             │
	│  └──────────────────┬───────────────────────────┘             │
	│                     │                                          │
	│  ┌──────────────────▼───────────────────────────┐             │
	│  │                BoltDB Store                     │             │
	│  │  - Platforms, Projects, Folders, Files, Rows   │             │
	│  │  - TMs, TM entries, trash, sync subscriptions  │             │
	│  └────────────────────────────────────────────────┘            │
	└────────────────────────────────────────────────────────────────┘

# Usage

	cfg := &manager.Config{
		NodeID:   "node-1",
		BindAddr: "192.168.1.10:7000",
		DataDir:  "/var/lib/ldm/node-1",
	}
	mgr, err := manager.NewManager(cfg)
	if err != nil {
		log.Fatal(err)
	}
	if err := mgr.Bootstrap(); err != nil {
		log.Fatal(err)
	}

Joining an existing cluster:

	token := "manager-join-token-abc123"
	if err := mgr.Join("192.168.1.10:7000", token); err != nil {
		log.Fatal(err)
	}

All hierarchy writes go through Apply and Raft; reads are served directly
from the local bbolt store, since a read doesn't need a quorum round trip
and the local store is always current on the leader and eventually
current on followers.

# Failover

Heartbeat/election/commit timeouts are tuned for a LAN deployment
(500ms/500ms/50ms), landing failover around 2-3 seconds — see
raftConfig. This is tighter than hashicorp/raft's WAN-oriented defaults
because LDM clusters are expected to run in a single office or VPC, not
across regions.

# See Also

  - pkg/repository for the authoritative/local backend split
  - pkg/storage for the underlying bbolt persistence
  - pkg/security for the certificate authority this package drives
*/
package manager
