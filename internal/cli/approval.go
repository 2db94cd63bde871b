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
	"math/big"

	"github.com/jeremyhahn/go-recovery/pkg/approval"
	"github.com/spf13/cobra"
)

func newApprovalCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "approval",
		Short: "Run the approver verification protocol",
	}
	cmd.AddCommand(newApprovalProveCommand(a), newApprovalVerifyCommand(a))
	return cmd
}

func newApprovalProveCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "prove <code>",
		Short: "Sign a one-time code with the approver device key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			keyPath, _ := cmd.Flags().GetString("key")
			out, _ := cmd.Flags().GetString("out")
			at, err := a.at(cmd)
			if err != nil {
				return err
			}
			device, err := readPrivateKey(keyPath)
			if err != nil {
				return err
			}
			defer device.Destroy()

			sub, err := a.verifier(device.Curve()).Prove(device, args[0], at)
			if err != nil {
				return err
			}
			if err := writeJSON(out, &SubmissionFile{
				Code:      sub.Code,
				Timestamp: sub.Timestamp,
				Signature: sub.Signature,
			}); err != nil {
				return err
			}
			return a.printer(cmd).PrintSuccess("Submission written to " + out)
		},
	}
	cmd.Flags().String("key", "", "device key file")
	cmd.Flags().String("out", "submission.json", "submission file to write")
	cmd.Flags().String("at", "", "RFC 3339 signing time (default now)")
	_ = cmd.MarkFlagRequired("key")
	return cmd
}

func newApprovalVerifyCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Verify a submission and release the share on success",
		Long: `Check an approver's submission against the shared code secret and their
device key. On confirmation the approver's share is re-encrypted to the
device key and the policy file is updated. A rejection leaves the policy
unchanged; the approver may submit again.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			policyPath, _ := cmd.Flags().GetString("policy")
			name, _ := cmd.Flags().GetString("approver")
			ownerPath, _ := cmd.Flags().GetString("key")
			devicePath, _ := cmd.Flags().GetString("device")
			secretPath, _ := cmd.Flags().GetString("secret")
			submissionPath, _ := cmd.Flags().GetString("submission")
			out, _ := cmd.Flags().GetString("out")
			if out == "" {
				out = policyPath
			}
			now, err := a.at(cmd)
			if err != nil {
				return err
			}

			result, err := readPolicy(policyPath)
			if err != nil {
				return err
			}
			assignment, err := findAssignment(result, name)
			if err != nil {
				return err
			}
			owner, err := readPrivateKey(ownerPath)
			if err != nil {
				return err
			}
			defer owner.Destroy()
			device, err := readPublicKey(devicePath)
			if err != nil {
				return err
			}
			secret, err := readSecret(secretPath)
			if err != nil {
				return err
			}
			var sf SubmissionFile
			if err := readJSON(submissionPath, &sf); err != nil {
				return err
			}

			// The CLI is stateless, so every run replays the protocol from
			// the invitation up to the pending submission.
			invited := approval.Invite(approval.Approver{
				ID:            assignment.ApproverID,
				Label:         assignment.Label,
				ParticipantID: new(big.Int).Set(assignment.ParticipantID),
			}, result.CreatedAt)
			accepted, err := approval.Accept(invited, device, now)
			if err != nil {
				return err
			}
			pending, err := approval.Submit(accepted, approval.Submission{
				Code:      sf.Code,
				Timestamp: sf.Timestamp,
				Signature: sf.Signature,
			})
			if err != nil {
				return err
			}

			next, err := a.verifier(result.MasterPublicKey.Curve()).Verify(pending, approval.VerifyInput{
				TOTPSecret:     secret,
				OwnerKey:       owner,
				EncryptedShare: assignment.EncryptedShare,
			}, now)
			if err != nil {
				return err
			}

			if confirmed, ok := next.(*approval.Confirmed); ok {
				assignment.EncryptedShare = confirmed.EncryptedShare
				assignment.OwnerHeld = false
				if err := writePolicy(out, result); err != nil {
					return err
				}
			}
			return a.printer(cmd).PrintApprovalState(next)
		},
	}
	cmd.Flags().String("policy", "policy.json", "policy file")
	cmd.Flags().String("approver", "", "approver label or ID")
	cmd.Flags().String("key", "", "key file holding the private key the share is sealed to")
	cmd.Flags().String("device", "", "approver device public key file")
	cmd.Flags().String("secret", "", "code secret file shared with the approver")
	cmd.Flags().String("submission", "submission.json", "submission file from 'approval prove'")
	cmd.Flags().String("out", "", "policy file to write (defaults to --policy)")
	cmd.Flags().String("at", "", "RFC 3339 verification time (default now)")
	for _, name := range []string{"approver", "key", "device", "secret"} {
		_ = cmd.MarkFlagRequired(name)
	}
	return cmd
}
