/*
Package client provides a small HTTP client for joining an LDM cluster
and bootstrapping mTLS credentials, used by the manager's own Join path
and by CLI tooling.

# Usage

Joining with an existing certificate:

	c, err := client.NewClient("https://192.168.1.10:8443")
	if err != nil {
		log.Fatal(err)
	}
	defer c.Close()

Joining with a join token (requests a certificate first):

	c, err := client.NewClientWithToken(
		"https://192.168.1.10:8443",
		"manager-join-token-xyz789",
	)
	if err != nil {
		log.Fatal(err)
	}
	defer c.Close()

	if err := c.JoinCluster("node-2", "192.168.1.11:7000", token); err != nil {
		log.Fatal(err)
	}

# Certificate locations

	CLI certificates: ~/.ldm/cli/
	  cert.pem  - client certificate
	  key.pem   - private key
	  ca.pem    - CA certificate

# See Also

  - pkg/api for the HTTP endpoints this client calls
  - pkg/security for certificate issuance and storage
*/
package client
