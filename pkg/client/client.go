// Package client provides a small HTTP client used by nodes and CLI
// tools to talk to ldmd's cluster-management surface: joining nodes
// bootstrap mTLS credentials with a one-time token (NewClientWithToken),
// while operator commands that already hold an admin JWT (join-token,
// info) use NewClientWithBearer.
package client

import (
	"bytes"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/ldmsys/ldm/pkg/security"
)

// Client talks to a manager node's HTTP API.
type Client struct {
	baseAddr string
	http     *http.Client
	bearer   string
}

// NewClient creates a client authenticated with an existing CLI mTLS
// certificate.
func NewClient(addr string) (*Client, error) {
	certDir, err := security.GetCLICertDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get cert directory: %w", err)
	}

	if !security.CertExists(certDir) {
		return nil, fmt.Errorf("CLI certificate not found at %s; join the cluster first to obtain one", certDir)
	}

	httpClient, err := mtlsClient(certDir)
	if err != nil {
		return nil, fmt.Errorf("failed to build mTLS client: %w", err)
	}

	return &Client{baseAddr: addr, http: httpClient}, nil
}

// NewClientWithToken joins the cluster using a join token, requesting a
// client certificate before any further calls are authenticated via mTLS.
func NewClientWithToken(addr, token string) (*Client, error) {
	certDir, err := security.GetCLICertDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get cert directory: %w", err)
	}

	if !security.CertExists(certDir) {
		if err := requestCertificate(addr, token, certDir); err != nil {
			return nil, fmt.Errorf("failed to request certificate: %w", err)
		}
	}

	httpClient, err := mtlsClient(certDir)
	if err != nil {
		return nil, fmt.Errorf("failed to build mTLS client: %w", err)
	}

	return &Client{baseAddr: addr, http: httpClient}, nil
}

// NewClientWithBearer creates a client authenticated with a JWT issued
// outside ldmd (per pkg/identity's doc comment, the assumption is an
// external identity provider mints admin tokens). Cluster-management
// routes sit behind the same /v1 JWT middleware as every other admin
// route, so this is how an operator CLI reaches join-token and info.
func NewClientWithBearer(addr, token string) *Client {
	return &Client{
		baseAddr: addr,
		http:     &http.Client{Timeout: 30 * time.Second},
		bearer:   token,
	}
}

// Close releases client resources. The HTTP transport has nothing to
// close explicitly, so this is a no-op kept for interface symmetry with
// connection-oriented clients.
func (c *Client) Close() error {
	return nil
}

type joinClusterRequest struct {
	NodeID   string `json:"node_id"`
	BindAddr string `json:"bind_addr"`
	Token    string `json:"token"`
}

// JoinCluster asks the leader to add this node as a Raft voter.
func (c *Client) JoinCluster(nodeID, bindAddr, token string) error {
	req := joinClusterRequest{NodeID: nodeID, BindAddr: bindAddr, Token: token}
	return c.post("/v1/cluster/join", req, nil)
}

type joinTokenRequest struct {
	Role string `json:"role"`
}

// JoinTokenResult mirrors pkg/api's wire shape for POST /v1/cluster/join-token.
type JoinTokenResult struct {
	Token     string `json:"token"`
	ExpiresAt int64  `json:"expires_at"`
}

// GenerateJoinToken asks the leader to mint a one-time token for a node
// joining with the given role ("manager" or "worker"). Requires a client
// built with NewClientWithBearer, since minting tokens is admin-gated.
func (c *Client) GenerateJoinToken(role string) (*JoinTokenResult, error) {
	var resp JoinTokenResult
	if err := c.post("/v1/cluster/join-token", joinTokenRequest{Role: role}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ClusterServer describes one Raft voter as reported by the leader.
type ClusterServer struct {
	ID       string `json:"id"`
	Address  string `json:"address"`
	Suffrage string `json:"suffrage"`
}

// ClusterInfo mirrors pkg/api's wire shape for GET /v1/cluster/info.
type ClusterInfo struct {
	LeaderAddr string          `json:"leader_addr"`
	Servers    []ClusterServer `json:"servers"`
}

// GetClusterInfo reports the current Raft leader and voter set. Requires
// a client built with NewClientWithBearer.
func (c *Client) GetClusterInfo() (*ClusterInfo, error) {
	var resp ClusterInfo
	if err := c.get("/v1/cluster/info", &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

type requestCertificateRequest struct {
	NodeID string `json:"node_id"`
	Token  string `json:"token"`
}

type requestCertificateResponse struct {
	CertPEM   []byte `json:"cert_pem"`
	KeyPEM    []byte `json:"key_pem"`
	CACertPEM []byte `json:"ca_cert_pem"`
}

// requestCertificate obtains a client certificate using a join token,
// over a plain (non-mTLS) connection since the client has no certificate
// yet; the token itself is the bearer of trust for this one call.
func requestCertificate(addr, token, certDir string) error {
	body, err := json.Marshal(requestCertificateRequest{NodeID: "cli", Token: token})
	if err != nil {
		return err
	}

	httpReq, err := http.NewRequest(http.MethodPost, addr+"/v1/cluster/certificate", bytes.NewReader(body))
	if err != nil {
		return err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	httpClient := &http.Client{Timeout: 10 * time.Second}
	resp, err := httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("failed to reach manager: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("manager returned %d: %s", resp.StatusCode, string(data))
	}

	var certResp requestCertificateResponse
	if err := json.NewDecoder(resp.Body).Decode(&certResp); err != nil {
		return fmt.Errorf("failed to decode certificate response: %w", err)
	}

	if err := os.MkdirAll(certDir, 0700); err != nil {
		return fmt.Errorf("failed to create cert directory: %w", err)
	}
	if err := os.WriteFile(certDir+"/cert.pem", certResp.CertPEM, 0644); err != nil {
		return err
	}
	if err := os.WriteFile(certDir+"/key.pem", certResp.KeyPEM, 0600); err != nil {
		return err
	}
	if err := os.WriteFile(certDir+"/ca.pem", certResp.CACertPEM, 0644); err != nil {
		return err
	}

	return nil
}

func mtlsClient(certDir string) (*http.Client, error) {
	cert, err := security.LoadCertFromFile(certDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load certificate: %w", err)
	}

	caCert, err := security.LoadCACertFromFile(certDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load CA certificate: %w", err)
	}

	pool := x509.NewCertPool()
	pool.AddCert(caCert)

	tlsConfig := &tls.Config{
		Certificates: []tls.Certificate{*cert},
		RootCAs:      pool,
	}

	return &http.Client{
		Timeout: 30 * time.Second,
		Transport: &http.Transport{
			TLSClientConfig: tlsConfig,
		},
	}, nil
}

func (c *Client) post(path string, reqBody, respBody interface{}) error {
	data, err := json.Marshal(reqBody)
	if err != nil {
		return err
	}

	req, err := http.NewRequest(http.MethodPost, c.baseAddr+path, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.bearer != "" {
		req.Header.Set("Authorization", "Bearer "+c.bearer)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request to %s failed: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("manager returned %d: %s", resp.StatusCode, string(data))
	}

	if respBody == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(respBody)
}

func (c *Client) get(path string, respBody interface{}) error {
	req, err := http.NewRequest(http.MethodGet, c.baseAddr+path, nil)
	if err != nil {
		return err
	}
	if c.bearer != "" {
		req.Header.Set("Authorization", "Bearer "+c.bearer)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request to %s failed: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("manager returned %d: %s", resp.StatusCode, string(data))
	}
	return json.NewDecoder(resp.Body).Decode(respBody)
}
