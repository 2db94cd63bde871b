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
	"time"

	"github.com/jeremyhahn/go-recovery/pkg/crypto/totp"
	"github.com/spf13/cobra"
)

func newCodeCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "code",
		Short: "Manage one-time verification codes",
	}
	cmd.AddCommand(newCodeSecretCommand(a), newCodeGenerateCommand(a), newCodeVerifyCommand(a))
	return cmd
}

func newCodeSecretCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "secret",
		Short: "Generate a code secret to share with an approver",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out, _ := cmd.Flags().GetString("out")
			secret, err := totp.GenerateSecret(nil)
			if err != nil {
				return err
			}
			if err := writeJSON(out, &SecretFile{Secret: secret, Base32: totp.EncodeSecret(secret)}); err != nil {
				return err
			}
			return a.printer(cmd).PrintSuccess("Code secret written to " + out)
		},
	}
	cmd.Flags().String("out", "", "secret file to write")
	_ = cmd.MarkFlagRequired("out")
	return cmd
}

func newCodeGenerateCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Print the code for the current window",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			secretPath, _ := cmd.Flags().GetString("secret")
			at, err := a.at(cmd)
			if err != nil {
				return err
			}
			secret, err := readSecret(secretPath)
			if err != nil {
				return err
			}

			codes := a.codes()
			counter := codes.Counter(at)
			expires := time.Unix(0, 0).Add(time.Duration(counter+1) * codes.Period)
			code, err := codes.CodeAt(secret, counter)
			if err != nil {
				return err
			}
			return a.printer(cmd).PrintCode(code, expires)
		},
	}
	cmd.Flags().String("secret", "", "secret file")
	cmd.Flags().String("at", "", "RFC 3339 time to generate for (default now)")
	_ = cmd.MarkFlagRequired("secret")
	return cmd
}

func newCodeVerifyCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "verify <code>",
		Short: "Check a code against the accepted windows",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			secretPath, _ := cmd.Flags().GetString("secret")
			at, err := a.at(cmd)
			if err != nil {
				return err
			}
			secret, err := readSecret(secretPath)
			if err != nil {
				return err
			}
			return a.printer(cmd).PrintCodeCheck(a.codes().Validate(secret, args[0], at))
		},
	}
	cmd.Flags().String("secret", "", "secret file")
	cmd.Flags().String("at", "", "RFC 3339 time to verify at (default now)")
	_ = cmd.MarkFlagRequired("secret")
	return cmd
}
