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
	"github.com/jeremyhahn/go-recovery/pkg/crypto/secretsharing"
	"github.com/spf13/cobra"
)

func newRecoverCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "recover",
		Short: "Rebuild the master key from decrypted shares",
		Long: `Interpolate the master private key from at least threshold share files
and check it against the policy's master public key. With --out the
recovered key pair is written as a key file.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			policyPath, _ := cmd.Flags().GetString("policy")
			sharePaths, _ := cmd.Flags().GetStringArray("share")
			out, _ := cmd.Flags().GetString("out")

			result, err := readPolicy(policyPath)
			if err != nil {
				return err
			}
			shares := make([]secretsharing.Share, 0, len(sharePaths))
			for _, path := range sharePaths {
				share, err := readShare(path)
				if err != nil {
					return err
				}
				shares = append(shares, share)
			}

			master, err := a.orchestrator(result.MasterPublicKey.Curve()).RecoverPolicy(result, shares)
			if err != nil {
				return err
			}
			defer master.Destroy()

			if out == "" {
				return a.printer(cmd).PrintSuccess("Recovered master key " + master.Public().String())
			}
			kf, err := newKeyFile(master.Public(), master)
			if err != nil {
				return err
			}
			if err := writeJSON(out, kf); err != nil {
				return err
			}
			return a.printer(cmd).PrintKeyInfo(out, master.Public())
		},
	}
	cmd.Flags().String("policy", "policy.json", "policy file")
	cmd.Flags().StringArray("share", nil, "share file from 'share decrypt' (repeatable)")
	cmd.Flags().String("out", "", "key file for the recovered master key")
	_ = cmd.MarkFlagRequired("share")
	return cmd
}
