// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-recovery.
//
// go-recovery is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

package cli

import (
	"fmt"
	"strings"

	"github.com/jeremyhahn/go-recovery/pkg/policy"
	"github.com/jeremyhahn/go-recovery/pkg/types"
	"github.com/spf13/cobra"
)

func newPolicyCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "policy",
		Short: "Create and inspect recovery policies",
	}
	cmd.AddCommand(newPolicySetupCommand(a), newPolicyShowCommand(a))
	return cmd
}

func newPolicySetupCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "setup",
		Short: "Create a recovery policy",
		Long: `Generate a master key, split it among approvers and write the policy file.

Approvers are given as label or label=public-key-file. Shares of approvers
without a key file are sealed to the owner key and released later with
'share reencrypt' or 'approval verify'.

Example:
  recoveryctl policy setup --owner owner.json --threshold 2 \
    --approver alice=alice.pub.json --approver bob --approver carol \
    --out policy.json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ownerPath, _ := cmd.Flags().GetString("owner")
			threshold, _ := cmd.Flags().GetInt("threshold")
			entries, _ := cmd.Flags().GetStringArray("approver")
			out, _ := cmd.Flags().GetString("out")

			owner, err := readPublicKey(ownerPath)
			if err != nil {
				return err
			}

			approvers := make([]policy.ProspectiveApprover, 0, len(entries))
			for _, entry := range entries {
				label, keyPath, hasKey := strings.Cut(entry, "=")
				approver := policy.ProspectiveApprover{Label: label}
				if hasKey {
					if keyPath == "" {
						return fmt.Errorf("%w: approver %q has an empty key path", types.ErrInvalidArgument, label)
					}
					if approver.TransportKey, err = readPublicKey(keyPath); err != nil {
						return err
					}
				}
				approvers = append(approvers, approver)
			}

			result, err := a.orchestrator(owner.Curve()).Setup(policy.SetupRequest{
				Threshold: threshold,
				OwnerKey:  owner,
				Approvers: approvers,
			})
			if err != nil {
				return err
			}
			if err := writePolicy(out, result); err != nil {
				return err
			}
			return a.printer(cmd).PrintPolicy(result)
		},
	}

	cmd.Flags().String("owner", "", "owner key file (public key is enough)")
	cmd.Flags().Int("threshold", 0, "approvals required to recover")
	cmd.Flags().StringArray("approver", nil, "approver as label or label=public-key-file (repeatable)")
	cmd.Flags().String("out", "policy.json", "policy file to write")
	_ = cmd.MarkFlagRequired("owner")
	_ = cmd.MarkFlagRequired("threshold")
	return cmd
}

func newPolicyShowCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show <policy-file>",
		Short: "Print a policy summary",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := readPolicy(args[0])
			if err != nil {
				return err
			}
			return a.printer(cmd).PrintPolicy(result)
		},
	}
}
