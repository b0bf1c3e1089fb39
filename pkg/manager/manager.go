package manager

import (
	"crypto/rsa"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"time"

	"github.com/ldmsys/ldm/pkg/client"
	"github.com/ldmsys/ldm/pkg/errs"
	"github.com/ldmsys/ldm/pkg/log"
	"github.com/ldmsys/ldm/pkg/metrics"
	"github.com/ldmsys/ldm/pkg/security"
	"github.com/ldmsys/ldm/pkg/storage"
	"github.com/ldmsys/ldm/pkg/types"
	"github.com/hashicorp/raft"
	raftboltdb "github.com/hashicorp/raft-boltdb"
)

// Manager drives the authoritative LDM backend: a Raft-replicated FSM
// fronting a bbolt store, plus the cluster's certificate authority and
// join-token issuance. pkg/repository wraps Manager to present the same
// repository contract the local (single-user) backend implements without
// Raft.
type Manager struct {
	nodeID   string
	bindAddr string
	dataDir  string

	raft         *raft.Raft
	fsm          *FSM
	store        storage.Store
	tokenManager *TokenManager
	ca           *security.CertAuthority
}

// Config holds configuration for creating a Manager.
type Config struct {
	NodeID    string
	BindAddr  string
	DataDir   string
	ClusterID string
}

// NewManager creates a new Manager instance.
func NewManager(cfg *Config) (*Manager, error) {
	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	store, err := storage.NewBoltStore(cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to create store: %w", err)
	}

	fsm := NewFSM(store)
	tokenManager := NewTokenManager()

	clusterID := cfg.ClusterID
	if clusterID == "" {
		clusterID = cfg.NodeID
	}
	if err := security.SetClusterEncryptionKey(security.DeriveKeyFromClusterID(clusterID)); err != nil {
		return nil, fmt.Errorf("failed to set cluster encryption key: %w", err)
	}

	ca := security.NewCertAuthority(store)

	m := &Manager{
		nodeID:       cfg.NodeID,
		bindAddr:     cfg.BindAddr,
		dataDir:      cfg.DataDir,
		fsm:          fsm,
		store:        store,
		ca:           ca,
		tokenManager: tokenManager,
	}

	return m, nil
}

func raftConfig(nodeID string) *raft.Config {
	config := raft.DefaultConfig()
	config.LocalID = raft.ServerID(nodeID)

	// Tuned down from the hashicorp/raft WAN-oriented defaults
	// (HeartbeatTimeout=1s, ElectionTimeout=1s, LeaderLeaseTimeout=500ms)
	// for the LAN/single-office deployments this server targets: leader
	// sends heartbeats every ~250ms, followers wait 500ms before calling
	// an election, total failover lands around 2-3s.
	config.HeartbeatTimeout = 500 * time.Millisecond
	config.ElectionTimeout = 500 * time.Millisecond
	config.CommitTimeout = 50 * time.Millisecond
	config.LeaderLeaseTimeout = 250 * time.Millisecond

	return config
}

func (m *Manager) newRaft() (*raft.Raft, *raft.NetworkTransport, error) {
	config := raftConfig(m.nodeID)

	addr, err := net.ResolveTCPAddr("tcp", m.bindAddr)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to resolve bind address: %w", err)
	}

	transport, err := raft.NewTCPTransport(m.bindAddr, addr, 3, 10*time.Second, os.Stderr)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create transport: %w", err)
	}

	snapshotStore, err := raft.NewFileSnapshotStore(m.dataDir, 2, os.Stderr)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create snapshot store: %w", err)
	}

	logStorePath := filepath.Join(m.dataDir, "raft-log.db")
	logStore, err := raftboltdb.NewBoltStore(logStorePath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create log store: %w", err)
	}

	stableStorePath := filepath.Join(m.dataDir, "raft-stable.db")
	stableStore, err := raftboltdb.NewBoltStore(stableStorePath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create stable store: %w", err)
	}

	r, err := raft.NewRaft(config, m.fsm, logStore, stableStore, snapshotStore, transport)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create raft: %w", err)
	}

	return r, transport, nil
}

// Bootstrap initializes a new single-node Raft cluster.
func (m *Manager) Bootstrap() error {
	r, transport, err := m.newRaft()
	if err != nil {
		return err
	}
	m.raft = r

	configuration := raft.Configuration{
		Servers: []raft.Server{
			{ID: raft.ServerID(m.nodeID), Address: transport.LocalAddr()},
		},
	}

	future := m.raft.BootstrapCluster(configuration)
	if err := future.Error(); err != nil {
		return fmt.Errorf("failed to bootstrap cluster: %w", err)
	}

	if err := m.initializeCA(); err != nil {
		return fmt.Errorf("failed to initialize CA: %w", err)
	}

	return nil
}

// Join adds this manager to an existing cluster via RPC to the leader.
func (m *Manager) Join(leaderAddr string, token string) error {
	r, _, err := m.newRaft()
	if err != nil {
		return err
	}
	m.raft = r

	log.Info(fmt.Sprintf("contacting leader at %s to join cluster", leaderAddr))

	c, err := client.NewClient(leaderAddr)
	if err != nil {
		return fmt.Errorf("failed to connect to leader: %w", err)
	}
	defer c.Close()

	if err := c.JoinCluster(m.nodeID, m.bindAddr, token); err != nil {
		return fmt.Errorf("failed to join cluster via RPC: %w", err)
	}

	if err := m.ca.LoadFromStore(); err != nil {
		return fmt.Errorf("failed to load CA: %w", err)
	}
	log.Info("loaded certificate authority from cluster")

	return nil
}

// AddVoter adds a new manager node to the Raft cluster.
func (m *Manager) AddVoter(nodeID, address string) error {
	if m.raft == nil {
		return fmt.Errorf("raft not initialized")
	}
	if !m.IsLeader() {
		return fmt.Errorf("not the leader, current leader: %s", m.LeaderAddr())
	}

	future := m.raft.AddVoter(raft.ServerID(nodeID), raft.ServerAddress(address), 0, 10*time.Second)
	if err := future.Error(); err != nil {
		return fmt.Errorf("failed to add voter: %w", err)
	}

	return nil
}

// RemoveServer removes a server from the Raft cluster.
func (m *Manager) RemoveServer(nodeID string) error {
	if m.raft == nil {
		return fmt.Errorf("raft not initialized")
	}
	if !m.IsLeader() {
		return fmt.Errorf("not the leader")
	}

	future := m.raft.RemoveServer(raft.ServerID(nodeID), 0, 10*time.Second)
	if err := future.Error(); err != nil {
		return fmt.Errorf("failed to remove server: %w", err)
	}

	return nil
}

// GetClusterServers returns information about all servers in the Raft cluster.
func (m *Manager) GetClusterServers() ([]raft.Server, error) {
	if m.raft == nil {
		return nil, fmt.Errorf("raft not initialized")
	}

	future := m.raft.GetConfiguration()
	if err := future.Error(); err != nil {
		return nil, fmt.Errorf("failed to get configuration: %w", err)
	}

	return future.Configuration().Servers, nil
}

// IsLeader returns true if this manager is the Raft leader.
func (m *Manager) IsLeader() bool {
	if m.raft == nil {
		return false
	}
	return m.raft.State() == raft.Leader
}

// LeaderAddr returns the address of the current Raft leader.
func (m *Manager) LeaderAddr() string {
	if m.raft == nil {
		return ""
	}
	return string(m.raft.Leader())
}

// RaftStats returns a metrics.RaftStats snapshot, satisfying
// metrics.Source for the authoritative backend.
func (m *Manager) RaftStats() (*metrics.RaftStats, bool) {
	if m.raft == nil {
		return nil, false
	}

	stats := &metrics.RaftStats{
		IsLeader:     m.IsLeader(),
		LastLogIndex: m.raft.LastIndex(),
		AppliedIndex: m.raft.AppliedIndex(),
	}

	if cfgFuture := m.raft.GetConfiguration(); cfgFuture.Error() == nil {
		stats.Peers = len(cfgFuture.Configuration().Servers)
	}

	return stats, true
}

// HierarchyCounts implements metrics.Source by reading directly from the
// local store rather than going through Raft.
func (m *Manager) HierarchyCounts() (metrics.HierarchyCounts, error) {
	return hierarchyCounts(m.store)
}

// Apply submits a command to the Raft cluster and waits for it to commit.
func (m *Manager) Apply(cmd Command) error {
	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.RaftApplyDuration)

	if m.raft == nil {
		return fmt.Errorf("raft not initialized")
	}

	data, err := json.Marshal(cmd)
	if err != nil {
		return fmt.Errorf("failed to marshal command: %w", err)
	}

	future := m.raft.Apply(data, 5*time.Second)
	if err := future.Error(); err != nil {
		return fmt.Errorf("failed to apply command: %w", err)
	}

	if resp := future.Response(); resp != nil {
		if err, ok := resp.(error); ok && err != nil {
			return err
		}
	}

	return nil
}

// applyOp rejects the write outright when this node isn't the Raft leader
// rather than forwarding it (see DESIGN.md's leader-redirection note): the
// caller gets the current leader address back and retries against it
// itself, so Apply never silently proxies a write through two hops.
func (m *Manager) applyOp(op string, payload interface{}) error {
	if !m.IsLeader() {
		return errs.New(errs.Precondition, fmt.Sprintf("not the raft leader, current leader: %s", m.LeaderAddr()))
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return m.Apply(Command{Op: op, Data: data})
}

// --- Hierarchy writes (replicated via Raft) ---

func (m *Manager) CreatePlatform(p *types.Platform) error { return m.applyOp(OpCreatePlatform, p) }
func (m *Manager) UpdatePlatform(p *types.Platform) error { return m.applyOp(OpUpdatePlatform, p) }
func (m *Manager) DeletePlatform(id string) error         { return m.applyOp(OpDeletePlatform, id) }

func (m *Manager) CreateProject(p *types.Project) error { return m.applyOp(OpCreateProject, p) }
func (m *Manager) UpdateProject(p *types.Project) error { return m.applyOp(OpUpdateProject, p) }
func (m *Manager) DeleteProject(id string) error        { return m.applyOp(OpDeleteProject, id) }

func (m *Manager) CreateFolder(f *types.Folder) error { return m.applyOp(OpCreateFolder, f) }
func (m *Manager) UpdateFolder(f *types.Folder) error { return m.applyOp(OpUpdateFolder, f) }
func (m *Manager) DeleteFolder(id string) error       { return m.applyOp(OpDeleteFolder, id) }

func (m *Manager) CreateFile(f *types.File) error { return m.applyOp(OpCreateFile, f) }
func (m *Manager) UpdateFile(f *types.File) error { return m.applyOp(OpUpdateFile, f) }
func (m *Manager) DeleteFile(id string) error     { return m.applyOp(OpDeleteFile, id) }

func (m *Manager) BulkUpsertRows(rows []*types.Row) error {
	return m.applyOp(OpBulkUpsertRows, rows)
}

func (m *Manager) DeleteRowsByFile(fileID string) error {
	return m.applyOp(OpDeleteRowsByFile, deleteRowsByFilePayload{FileID: fileID})
}

func (m *Manager) CreateTM(tm *types.TM) error { return m.applyOp(OpCreateTM, tm) }
func (m *Manager) UpdateTM(tm *types.TM) error { return m.applyOp(OpUpdateTM, tm) }
func (m *Manager) DeleteTM(id string) error    { return m.applyOp(OpDeleteTM, id) }

func (m *Manager) UpsertTMEntry(e *types.TMEntry) error { return m.applyOp(OpUpsertTMEntry, e) }

func (m *Manager) DeleteTMEntry(tmID, entryID string) error {
	return m.applyOp(OpDeleteTMEntry, tmEntryKeyPayload{TMID: tmID, EntryID: entryID})
}

func (m *Manager) SaveTMIndexMeta(meta *types.TMIndexMeta) error {
	return m.applyOp(OpSaveTMIndexMeta, meta)
}

func (m *Manager) CreateTrashItem(t *types.TrashItem) error { return m.applyOp(OpCreateTrashItem, t) }
func (m *Manager) DeleteTrashItem(id string) error          { return m.applyOp(OpDeleteTrashItem, id) }

func (m *Manager) CreateSyncSubscription(s *types.SyncSubscription) error {
	return m.applyOp(OpCreateSyncSubscription, s)
}
func (m *Manager) UpdateSyncSubscription(s *types.SyncSubscription) error {
	return m.applyOp(OpUpdateSyncSubscription, s)
}
func (m *Manager) DeleteSyncSubscription(id string) error {
	return m.applyOp(OpDeleteSyncSubscription, id)
}

// AppendAuditEvent replicates the audit log through Raft so every manager
// node's store carries the same security trail.
func (m *Manager) AppendAuditEvent(e *types.AuditEvent) error {
	return m.applyOp(OpAppendAuditEvent, e)
}

// --- Hierarchy reads (local store, no Raft round trip) ---

func (m *Manager) GetPlatform(id string) (*types.Platform, error) { return m.store.GetPlatform(id) }
func (m *Manager) ListPlatforms() ([]*types.Platform, error)      { return m.store.ListPlatforms() }

func (m *Manager) GetProject(id string) (*types.Project, error) { return m.store.GetProject(id) }
func (m *Manager) ListProjects() ([]*types.Project, error)       { return m.store.ListProjects() }
func (m *Manager) ListProjectsByPlatform(platformID string) ([]*types.Project, error) {
	return m.store.ListProjectsByPlatform(platformID)
}

func (m *Manager) GetFolder(id string) (*types.Folder, error) { return m.store.GetFolder(id) }
func (m *Manager) ListFoldersByProject(projectID string) ([]*types.Folder, error) {
	return m.store.ListFoldersByProject(projectID)
}
func (m *Manager) ListFoldersByParent(parentID string) ([]*types.Folder, error) {
	return m.store.ListFoldersByParent(parentID)
}

func (m *Manager) GetFile(id string) (*types.File, error) { return m.store.GetFile(id) }
func (m *Manager) ListFilesByProject(projectID string) ([]*types.File, error) {
	return m.store.ListFilesByProject(projectID)
}
func (m *Manager) ListFilesByFolder(folderID string) ([]*types.File, error) {
	return m.store.ListFilesByFolder(folderID)
}

func (m *Manager) GetRow(id string) (*types.Row, error) { return m.store.GetRow(id) }
func (m *Manager) ListRowsByFile(fileID string) ([]*types.Row, error) {
	return m.store.ListRowsByFile(fileID)
}

func (m *Manager) GetTM(id string) (*types.TM, error) { return m.store.GetTM(id) }
func (m *Manager) ListTMs() ([]*types.TM, error)       { return m.store.ListTMs() }
func (m *Manager) ListTMsByProject(projectID string) ([]*types.TM, error) {
	return m.store.ListTMsByProject(projectID)
}

func (m *Manager) GetTMEntry(tmID, entryID string) (*types.TMEntry, error) {
	return m.store.GetTMEntry(tmID, entryID)
}
func (m *Manager) GetTMEntryByHash(tmID, hash string) (*types.TMEntry, error) {
	return m.store.GetTMEntryByHash(tmID, hash)
}
func (m *Manager) ListTMEntries(tmID string) ([]*types.TMEntry, error) {
	return m.store.ListTMEntries(tmID)
}
func (m *Manager) GetTMIndexMeta(tmID string) (*types.TMIndexMeta, error) {
	return m.store.GetTMIndexMeta(tmID)
}

func (m *Manager) GetTrashItem(id string) (*types.TrashItem, error) { return m.store.GetTrashItem(id) }
func (m *Manager) ListTrash() ([]*types.TrashItem, error)           { return m.store.ListTrash() }
func (m *Manager) ListTrashExpiredBefore(ts int64) ([]*types.TrashItem, error) {
	return m.store.ListTrashExpiredBefore(ts)
}

// Sessions and sync subscriptions are per-connection/per-user bookkeeping,
// not cluster hierarchy state: they're written straight to the local
// store rather than replicated through Raft, so a heartbeat never costs a
// quorum round trip.
func (m *Manager) SaveSession(s *types.Session) error  { return m.store.SaveSession(s) }
func (m *Manager) GetSession(id string) (*types.Session, error) { return m.store.GetSession(id) }
func (m *Manager) DeleteSession(id string) error       { return m.store.DeleteSession(id) }

func (m *Manager) GetSyncSubscription(id string) (*types.SyncSubscription, error) {
	return m.store.GetSyncSubscription(id)
}
func (m *Manager) ListSyncSubscriptionsByUser(userID string) ([]*types.SyncSubscription, error) {
	return m.store.ListSyncSubscriptionsByUser(userID)
}

func (m *Manager) ListAuditEventsSince(seq uint64, limit int) ([]*types.AuditEvent, error) {
	return m.store.ListAuditEventsSince(seq, limit)
}

// --- Join tokens ---

// GenerateJoinToken generates a new join token for adding nodes.
func (m *Manager) GenerateJoinToken(role string) (*JoinToken, error) {
	if !m.IsLeader() {
		return nil, fmt.Errorf("not the leader, tokens can only be generated by the leader")
	}
	return m.tokenManager.GenerateToken(role, 24*time.Hour)
}

// ValidateJoinToken validates a join token.
func (m *Manager) ValidateJoinToken(token string) (string, error) {
	return m.tokenManager.ValidateToken(token)
}

// Shutdown gracefully shuts down the manager.
func (m *Manager) Shutdown() error {
	if m.raft != nil {
		future := m.raft.Shutdown()
		if err := future.Error(); err != nil {
			return fmt.Errorf("failed to shutdown raft: %w", err)
		}
	}

	if m.store != nil {
		if err := m.store.Close(); err != nil {
			return fmt.Errorf("failed to close store: %w", err)
		}
	}

	return nil
}

// initializeCA initializes the cluster's certificate authority, used to
// mint mTLS certificates for the Raft transport between manager nodes.
func (m *Manager) initializeCA() error {
	if m.ca.IsInitialized() {
		return nil
	}

	if err := m.ca.LoadFromStore(); err == nil {
		log.Info("loaded existing certificate authority")
		return nil
	}

	log.Info("initializing new certificate authority")
	if err := m.ca.Initialize(); err != nil {
		return fmt.Errorf("failed to initialize CA: %w", err)
	}
	if err := m.ca.SaveToStore(); err != nil {
		return fmt.Errorf("failed to save CA: %w", err)
	}

	certDir, err := security.GetCertDir("manager", m.nodeID)
	if err != nil {
		return fmt.Errorf("failed to get cert directory: %w", err)
	}

	if security.CertExists(certDir) {
		return nil
	}

	host, _, err := net.SplitHostPort(m.bindAddr)
	if err != nil {
		return fmt.Errorf("failed to parse bind address: %w", err)
	}
	var ipAddresses []net.IP
	if ip := net.ParseIP(host); ip != nil {
		ipAddresses = []net.IP{ip}
	}

	dnsNames := []string{fmt.Sprintf("manager-%s", m.nodeID), "localhost"}

	cert, err := m.ca.IssueNodeCertificate(m.nodeID, "manager", dnsNames, ipAddresses)
	if err != nil {
		return fmt.Errorf("failed to issue node certificate: %w", err)
	}

	if err := security.SaveCertToFile(cert, certDir); err != nil {
		return fmt.Errorf("failed to save certificate: %w", err)
	}
	if err := security.SaveCACertToFile(m.ca.GetRootCACert(), certDir); err != nil {
		return fmt.Errorf("failed to save CA certificate: %w", err)
	}

	return nil
}

// IssueCertificate issues a client certificate for a node joining the
// cluster.
func (m *Manager) IssueCertificate(nodeID, role string) (*tls.Certificate, error) {
	if !m.ca.IsInitialized() {
		return nil, fmt.Errorf("CA not initialized")
	}
	return m.ca.IssueNodeCertificate(nodeID, role, nil, nil)
}

// CertToPEM converts a TLS certificate to PEM format.
func (m *Manager) CertToPEM(cert *tls.Certificate) (certPEM, keyPEM []byte, err error) {
	if cert == nil {
		return nil, nil, fmt.Errorf("certificate is nil")
	}

	certPEM = pem.EncodeToMemory(&pem.Block{
		Type:  "CERTIFICATE",
		Bytes: cert.Certificate[0],
	})

	privateKey, ok := cert.PrivateKey.(*rsa.PrivateKey)
	if !ok {
		return nil, nil, fmt.Errorf("private key is not RSA")
	}

	keyPEM = pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(privateKey),
	})

	return certPEM, keyPEM, nil
}

// GetCACertPEM returns the CA certificate in PEM format.
func (m *Manager) GetCACertPEM() []byte {
	if !m.ca.IsInitialized() {
		return nil
	}
	return pem.EncodeToMemory(&pem.Block{
		Type:  "CERTIFICATE",
		Bytes: m.ca.GetRootCACert(),
	})
}

// NodeID returns the manager's node ID.
func (m *Manager) NodeID() string {
	return m.nodeID
}

// Store exposes the underlying storage.Store so callers that need
// backend-agnostic bookkeeping with no Raft replication of its own (the
// scheduler's Operation records, the CA store) can share the same bbolt
// file the hierarchy lives in instead of opening a second one.
func (m *Manager) Store() storage.Store {
	return m.store
}

func hierarchyCounts(store storage.Store) (metrics.HierarchyCounts, error) {
	platforms, err := store.ListPlatforms()
	if err != nil {
		return metrics.HierarchyCounts{}, err
	}
	projects, err := store.ListProjects()
	if err != nil {
		return metrics.HierarchyCounts{}, err
	}

	counts := metrics.HierarchyCounts{
		Platforms: len(platforms),
		Projects:  len(projects),
		Files:     make(map[types.FileFormat]int),
		Rows:      make(map[types.RowStatus]int),
		Trash:     make(map[types.TrashItemType]int),
	}

	for _, p := range projects {
		files, err := store.ListFilesByProject(p.ID)
		if err != nil {
			return metrics.HierarchyCounts{}, err
		}
		for _, f := range files {
			counts.Files[f.Format]++
			rows, err := store.ListRowsByFile(f.ID)
			if err != nil {
				return metrics.HierarchyCounts{}, err
			}
			for _, r := range rows {
				counts.Rows[r.Status]++
			}
		}
	}

	trash, err := store.ListTrash()
	if err != nil {
		return metrics.HierarchyCounts{}, err
	}
	for _, t := range trash {
		counts.Trash[t.ItemType]++
	}

	return counts, nil
}
