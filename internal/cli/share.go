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

	"github.com/jeremyhahn/go-recovery/pkg/adapters/logger"
	"github.com/spf13/cobra"
)

func newShareCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "share",
		Short: "Open and move encrypted shares",
	}
	cmd.AddCommand(newShareDecryptCommand(a), newShareReencryptCommand(a))
	return cmd
}

func newShareDecryptCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "decrypt",
		Short: "Decrypt an approver's share for recovery",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			policyPath, _ := cmd.Flags().GetString("policy")
			name, _ := cmd.Flags().GetString("approver")
			keyPath, _ := cmd.Flags().GetString("key")
			out, _ := cmd.Flags().GetString("out")

			result, err := readPolicy(policyPath)
			if err != nil {
				return err
			}
			assignment, err := findAssignment(result, name)
			if err != nil {
				return err
			}
			priv, err := readPrivateKey(keyPath)
			if err != nil {
				return err
			}
			defer priv.Destroy()

			share, err := a.orchestrator(result.MasterPublicKey.Curve()).DecryptAssignment(result, assignment.ApproverID, priv)
			if err != nil {
				return err
			}
			encoded, err := share.MarshalBinary()
			if err != nil {
				return err
			}
			if err := writeJSON(out, &ShareFile{
				ApproverID: assignment.ApproverID.String(),
				Label:      assignment.Label,
				Share:      encoded,
			}); err != nil {
				return err
			}
			return a.printer(cmd).PrintSuccess(fmt.Sprintf("Share of %s written to %s", assignment.Label, out))
		},
	}

	cmd.Flags().String("policy", "policy.json", "policy file")
	cmd.Flags().String("approver", "", "approver label or ID")
	cmd.Flags().String("key", "", "key file holding the private key the share is sealed to")
	cmd.Flags().String("out", "", "share file to write")
	_ = cmd.MarkFlagRequired("approver")
	_ = cmd.MarkFlagRequired("key")
	_ = cmd.MarkFlagRequired("out")
	return cmd
}

func newShareReencryptCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reencrypt",
		Short: "Move an approver's share to a new key",
		Long: `Decrypt an approver's share with the key it is sealed to and encrypt it
to another public key, updating the policy file. Use this to release an
owner-held share to an approver device without running verification.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			policyPath, _ := cmd.Flags().GetString("policy")
			name, _ := cmd.Flags().GetString("approver")
			keyPath, _ := cmd.Flags().GetString("key")
			toPath, _ := cmd.Flags().GetString("to")
			out, _ := cmd.Flags().GetString("out")
			if out == "" {
				out = policyPath
			}

			result, err := readPolicy(policyPath)
			if err != nil {
				return err
			}
			assignment, err := findAssignment(result, name)
			if err != nil {
				return err
			}
			current, err := readPrivateKey(keyPath)
			if err != nil {
				return err
			}
			defer current.Destroy()
			next, err := readPublicKey(toPath)
			if err != nil {
				return err
			}

			moved, err := a.orchestrator(result.MasterPublicKey.Curve()).ReencryptAssignment(result, assignment.ApproverID, current, next)
			if err != nil {
				return err
			}
			assignment.EncryptedShare = moved
			assignment.OwnerHeld = false
			if err := writePolicy(out, result); err != nil {
				return err
			}

			a.logger.Info("share re-encrypted",
				logger.String("label", assignment.Label),
				logger.Stringer("recipient", next))
			return a.printer(cmd).PrintSuccess(fmt.Sprintf("Share of %s sealed to %s", assignment.Label, next))
		},
	}

	cmd.Flags().String("policy", "policy.json", "policy file")
	cmd.Flags().String("approver", "", "approver label or ID")
	cmd.Flags().String("key", "", "key file holding the private key the share is sealed to")
	cmd.Flags().String("to", "", "public key file of the new recipient")
	cmd.Flags().String("out", "", "policy file to write (defaults to --policy)")
	_ = cmd.MarkFlagRequired("approver")
	_ = cmd.MarkFlagRequired("key")
	_ = cmd.MarkFlagRequired("to")
	return cmd
}
