/*
Package security provides the cluster's certificate authority and
certificate lifecycle management, used to secure mTLS between manager
nodes (Raft transport) and from CLI/worker clients joining the cluster.

# Root CA

The CA uses a hierarchical structure with a long-lived root certificate:

	Root CA (self-signed)
	├── 10-year validity
	├── RSA 4096-bit key
	├── KeyUsage: CertSign, CRLSign
	└── Subject: CN=LDM Root CA, O=LDM Cluster

The root CA is generated on cluster bootstrap and persisted (private key
encrypted) in the same bbolt store as hierarchy data.

# Node and client certificates

	Node Certificate
	├── 90-day validity
	├── RSA 2048-bit key
	├── KeyUsage: DigitalSignature, KeyEncipherment
	├── ExtKeyUsage: ServerAuth, ClientAuth
	├── Subject: CN={role}-{nodeID}, O=LDM Cluster
	├── DNS Names: [node hostname]
	└── IP Addresses: [node IP]

Manager nodes authenticate each other with node certificates over Raft's
TCP transport. CLI and offline-sync clients receive client certificates
(IssueClientCertificate) scoped to ClientAuth only.

# Usage

	store, err := storage.NewBoltStore("/var/lib/ldm/node-1")
	ca := security.NewCertAuthority(store)
	if err := ca.Initialize(); err != nil {
		panic(err)
	}
	if err := ca.SaveToStore(); err != nil {
		panic(err)
	}

	cert, err := ca.IssueNodeCertificate("node-1", "manager", []string{"localhost"}, nil)

# Design Patterns

Certificate caching: issued certificates are cached in memory by node ID
to avoid regenerating them on every lookup. Rotation: CertNeedsRotation
flags certificates with less than 30 days remaining; callers re-issue and
overwrite the cert file on disk.

# See Also

  - pkg/storage for where CA material is persisted
  - pkg/manager for how the CA secures Raft transport and bootstrap
  - pkg/client for how joining nodes request a certificate
*/
package security
