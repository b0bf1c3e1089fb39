// Package api exposes the LDM request surface over HTTP, grounded on
// evalgo-org-eve's labstack/echo handler/middleware layout: route groups
// under /v1, JWT bearer auth via echo-jwt on every group but the cluster
// bootstrap endpoints (which authenticate with a one-time join token
// instead, since the caller has no JWT yet), and a capability-check
// middleware layered on top for role/scope enforcement. The operations
// themselves are thin: validate + resolve the principal, then call
// straight into pkg/repository, pkg/tm, pkg/sync or pkg/scheduler, which
// own every invariant.
package api
