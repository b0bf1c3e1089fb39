package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ldmsys/ldm/pkg/client"
)

var clusterCmd = &cobra.Command{
	Use:   "cluster",
	Short: "Cluster membership commands (authoritative mode)",
}

var clusterJoinTokenCmd = &cobra.Command{
	Use:   "join-token [voter|learner]",
	Short: "Generate a join token for a new node",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		role := args[0]
		manager, _ := cmd.Flags().GetString("manager")
		token, _ := cmd.Flags().GetString("token")
		if token == "" {
			return fmt.Errorf("--token is required (an admin JWT)")
		}

		c := client.NewClientWithBearer(manager, token)
		result, err := c.GenerateJoinToken(role)
		if err != nil {
			return fmt.Errorf("failed to generate token: %w", err)
		}

		fmt.Printf("Join token:\n\n    %s\n\n", result.Token)
		fmt.Printf("Expires: %d (unix)\n", result.ExpiresAt)
		fmt.Printf("\nTo join a node to the cluster, run:\n")
		fmt.Printf("    ldmd serve --bootstrap=false --node-id <id> --raft-bind-addr <addr>\n")
		fmt.Printf("    ldmd cluster join --manager %s --token %s --node-id <id> --bind-addr <addr>\n", manager, result.Token)
		return nil
	},
}

var clusterJoinCmd = &cobra.Command{
	Use:   "join",
	Short: "Add a running node as a Raft voter on the leader",
	RunE: func(cmd *cobra.Command, args []string) error {
		manager, _ := cmd.Flags().GetString("manager")
		token, _ := cmd.Flags().GetString("token")
		nodeID, _ := cmd.Flags().GetString("node-id")
		bindAddr, _ := cmd.Flags().GetString("bind-addr")
		if token == "" {
			return fmt.Errorf("--token is required")
		}

		c, err := client.NewClientWithToken(manager, token)
		if err != nil {
			return fmt.Errorf("failed to obtain credentials: %w", err)
		}
		defer c.Close()

		if err := c.JoinCluster(nodeID, bindAddr, token); err != nil {
			return fmt.Errorf("failed to join cluster: %w", err)
		}
		fmt.Printf("node %s added as a voter at %s\n", nodeID, bindAddr)
		return nil
	},
}

var clusterInfoCmd = &cobra.Command{
	Use:   "info",
	Short: "Display cluster leader and voter set",
	RunE: func(cmd *cobra.Command, args []string) error {
		manager, _ := cmd.Flags().GetString("manager")
		token, _ := cmd.Flags().GetString("token")
		if token == "" {
			return fmt.Errorf("--token is required (an admin JWT)")
		}

		c := client.NewClientWithBearer(manager, token)
		info, err := c.GetClusterInfo()
		if err != nil {
			return fmt.Errorf("failed to get cluster info: %w", err)
		}

		fmt.Printf("Leader address: %s\n\n", info.LeaderAddr)
		fmt.Println("Servers:")
		for _, srv := range info.Servers {
			fmt.Printf("  - id=%s address=%s suffrage=%s\n", srv.ID, srv.Address, srv.Suffrage)
		}
		return nil
	},
}

func init() {
	clusterCmd.PersistentFlags().String("manager", "http://127.0.0.1:8080", "Manager API address")
	clusterCmd.PersistentFlags().String("token", "", "Bearer token (join-token, info) or join token (join)")

	clusterJoinCmd.Flags().String("node-id", "", "This node's ID")
	clusterJoinCmd.Flags().String("bind-addr", "", "This node's Raft bind address")

	clusterCmd.AddCommand(clusterJoinTokenCmd)
	clusterCmd.AddCommand(clusterJoinCmd)
	clusterCmd.AddCommand(clusterInfoCmd)
}
