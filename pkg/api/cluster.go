package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/ldmsys/ldm/pkg/errs"
)

type joinTokenRequest struct {
	Role string `json:"role"`
}

type joinTokenResponse struct {
	Token     string `json:"token"`
	ExpiresAt int64  `json:"expires_at"`
}

// handleClusterJoinToken mints a one-time join token, mirroring pkg/client's
// wire shape for POST /v1/cluster/join-token. Only the Raft leader can mint
// tokens (Manager.GenerateJoinToken enforces this), so this is gated behind
// an admin JWT rather than the join token itself.
func (s *Server) handleClusterJoinToken(c echo.Context) error {
	var req joinTokenRequest
	if err := c.Bind(&req); err != nil {
		return errs.New(errs.InvalidArgument, "invalid request body")
	}
	jt, err := s.deps.Cluster.GenerateJoinToken(req.Role)
	if err != nil {
		return errs.Wrap(errs.Internal, "", "generate join token", err)
	}
	return c.JSON(http.StatusOK, joinTokenResponse{Token: jt.Token, ExpiresAt: jt.ExpiresAt.Unix()})
}

type clusterServer struct {
	ID       string `json:"id"`
	Address  string `json:"address"`
	Suffrage string `json:"suffrage"`
}

type clusterInfoResponse struct {
	LeaderAddr string          `json:"leader_addr"`
	Servers    []clusterServer `json:"servers"`
}

func (s *Server) handleClusterInfo(c echo.Context) error {
	servers, err := s.deps.Cluster.GetClusterServers()
	if err != nil {
		return errs.Wrap(errs.Internal, "", "list cluster servers", err)
	}
	resp := clusterInfoResponse{LeaderAddr: s.deps.Cluster.LeaderAddr()}
	for _, srv := range servers {
		resp.Servers = append(resp.Servers, clusterServer{
			ID:       string(srv.ID),
			Address:  string(srv.Address),
			Suffrage: srv.Suffrage.String(),
		})
	}
	return c.JSON(http.StatusOK, resp)
}

// joinClusterRequest mirrors pkg/client's wire shape for POST
// /v1/cluster/join.
type joinClusterRequest struct {
	NodeID   string `json:"node_id"`
	BindAddr string `json:"bind_addr"`
	Token    string `json:"token"`
}

// requestCertificateRequest mirrors pkg/client's wire shape for POST
// /v1/cluster/certificate. This endpoint is intentionally outside the
// JWT-protected /v1 group: a node requesting its first certificate has
// no JWT yet, only the one-time join token.
type requestCertificateRequest struct {
	NodeID string `json:"node_id"`
	Token  string `json:"token"`
}

type requestCertificateResponse struct {
	CertPEM   []byte `json:"cert_pem"`
	KeyPEM    []byte `json:"key_pem"`
	CACertPEM []byte `json:"ca_cert_pem"`
}

func (s *Server) handleClusterJoin(c echo.Context) error {
	var req joinClusterRequest
	if err := c.Bind(&req); err != nil {
		return errs.New(errs.InvalidArgument, "invalid request body")
	}
	if _, err := s.deps.Cluster.ValidateJoinToken(req.Token); err != nil {
		return errs.Wrap(errs.Unauthenticated, "", "invalid join token", err)
	}
	if err := s.deps.Cluster.AddVoter(req.NodeID, req.BindAddr); err != nil {
		return errs.Wrap(errs.Internal, req.NodeID, "add voter", err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) handleClusterCertificate(c echo.Context) error {
	var req requestCertificateRequest
	if err := c.Bind(&req); err != nil {
		return errs.New(errs.InvalidArgument, "invalid request body")
	}
	role, err := s.deps.Cluster.ValidateJoinToken(req.Token)
	if err != nil {
		return errs.Wrap(errs.Unauthenticated, "", "invalid join token", err)
	}
	cert, err := s.deps.Cluster.IssueCertificate(req.NodeID, role)
	if err != nil {
		return errs.Wrap(errs.Internal, req.NodeID, "issue certificate", err)
	}
	certPEM, keyPEM, err := s.deps.Cluster.CertToPEM(cert)
	if err != nil {
		return errs.Wrap(errs.Internal, req.NodeID, "encode certificate", err)
	}
	return c.JSON(http.StatusOK, requestCertificateResponse{
		CertPEM:   certPEM,
		KeyPEM:    keyPEM,
		CACertPEM: s.deps.Cluster.GetCACertPEM(),
	})
}
