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
	"github.com/jeremyhahn/go-recovery/pkg/adapters/logger"
	"github.com/jeremyhahn/go-recovery/pkg/crypto/keys"
	"github.com/spf13/cobra"
)

func newKeygenCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keygen",
		Short: "Generate an owner or device key pair",
		Long: `Generate an elliptic-curve key pair and write it as a JSON key file.
With --public-out a second file holding only the public key is written for
distribution to the policy owner.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out, _ := cmd.Flags().GetString("out")
			publicOut, _ := cmd.Flags().GetString("public-out")
			curveName, _ := cmd.Flags().GetString("curve")

			curve := a.curve
			if curveName != "" {
				var err error
				if curve, err = keys.CurveByName(curveName); err != nil {
					return err
				}
			}

			kp, err := keys.NewManager(curve, nil).GenerateKeyPair()
			if err != nil {
				return err
			}
			defer kp.Private.Destroy()

			kf, err := newKeyFile(kp.Public, kp.Private)
			if err != nil {
				return err
			}
			if err := writeJSON(out, kf); err != nil {
				return err
			}

			if publicOut != "" {
				pf, err := newKeyFile(kp.Public, nil)
				if err != nil {
					return err
				}
				if err := writeJSON(publicOut, pf); err != nil {
					return err
				}
			}

			a.logger.Debug("key pair generated",
				logger.String("curve", curve.Name()),
				logger.Stringer("public_key", kp.Public))
			return a.printer(cmd).PrintKeyInfo(out, kp.Public)
		},
	}

	cmd.Flags().String("out", "", "key file to write")
	cmd.Flags().String("public-out", "", "public key file to write")
	cmd.Flags().String("curve", "", "curve (P-256, secp256k1); defaults to the configured curve")
	_ = cmd.MarkFlagRequired("out")
	return cmd
}
