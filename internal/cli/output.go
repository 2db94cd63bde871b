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
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/jeremyhahn/go-recovery/pkg/approval"
	"github.com/jeremyhahn/go-recovery/pkg/crypto/keys"
	"github.com/jeremyhahn/go-recovery/pkg/policy"
)

// OutputFormat defines the output format type
type OutputFormat string

const (
	OutputFormatText OutputFormat = "text"
	OutputFormatJSON OutputFormat = "json"
)

// Printer handles formatted output
type Printer struct {
	format OutputFormat
	writer io.Writer
}

// NewPrinter creates a new Printer
func NewPrinter(format string, writer io.Writer) *Printer {
	return &Printer{
		format: OutputFormat(format),
		writer: writer,
	}
}

// PrintKeyInfo prints a public key summary
func (p *Printer) PrintKeyInfo(path string, pub *keys.PublicKey) error {
	thumb, _ := pub.Thumbprint() // empty for curves without a JWK form
	switch p.format {
	case OutputFormatJSON:
		info := map[string]interface{}{
			"path":        path,
			"curve":       pub.Curve().Name(),
			"fingerprint": pub.String(),
		}
		if thumb != "" {
			info["thumbprint"] = thumb
		}
		return p.printJSON(info)
	case OutputFormatText:
		fmt.Fprintf(p.writer, "Key written to %s\n", path)
		fmt.Fprintf(p.writer, "  Curve:       %s\n", pub.Curve().Name())
		fmt.Fprintf(p.writer, "  Fingerprint: %s\n", pub.String())
		if thumb != "" {
			fmt.Fprintf(p.writer, "  Thumbprint:  %s\n", thumb)
		}
		return nil
	default:
		return fmt.Errorf("unknown output format: %s", p.format)
	}
}

// PrintPolicy prints a policy summary. Encrypted payloads are not shown.
func (p *Printer) PrintPolicy(result *policy.SetupResult) error {
	switch p.format {
	case OutputFormatJSON:
		assignments := make([]map[string]interface{}, len(result.Assignments))
		for i, a := range result.Assignments {
			assignments[i] = map[string]interface{}{
				"approver_id":    a.ApproverID.String(),
				"label":          a.Label,
				"participant_id": a.ParticipantID.Text(16),
				"owner_held":     a.OwnerHeld,
			}
		}
		return p.printJSON(map[string]interface{}{
			"policy_id":   result.PolicyID.String(),
			"threshold":   result.Threshold,
			"master_key":  result.MasterPublicKey.String(),
			"created_at":  result.CreatedAt.Format(time.RFC3339),
			"assignments": assignments,
		})
	case OutputFormatText:
		fmt.Fprintf(p.writer, "Policy %s\n", result.PolicyID)
		fmt.Fprintf(p.writer, "  Threshold:  %d of %d\n", result.Threshold, len(result.Assignments))
		fmt.Fprintf(p.writer, "  Master key: %s\n", result.MasterPublicKey)
		fmt.Fprintf(p.writer, "  Created:    %s\n", result.CreatedAt.Format(time.RFC3339))
		fmt.Fprintln(p.writer, "  Approvers:")
		for _, a := range result.Assignments {
			holder := "approver"
			if a.OwnerHeld {
				holder = "owner"
			}
			fmt.Fprintf(p.writer, "    - %s (%s, sealed to %s)\n", a.Label, a.ApproverID, holder)
		}
		return nil
	default:
		return fmt.Errorf("unknown output format: %s", p.format)
	}
}

// PrintCode prints a one-time code and the end of its window
func (p *Printer) PrintCode(code string, expires time.Time) error {
	switch p.format {
	case OutputFormatJSON:
		return p.printJSON(map[string]interface{}{
			"code":    code,
			"expires": expires.UTC().Format(time.RFC3339),
		})
	case OutputFormatText:
		fmt.Fprintln(p.writer, code)
		return nil
	default:
		return fmt.Errorf("unknown output format: %s", p.format)
	}
}

// PrintCodeCheck prints the result of a code verification
func (p *Printer) PrintCodeCheck(valid bool) error {
	switch p.format {
	case OutputFormatJSON:
		return p.printJSON(map[string]interface{}{
			"valid": valid,
		})
	case OutputFormatText:
		if valid {
			fmt.Fprintln(p.writer, "Code is valid")
		} else {
			fmt.Fprintln(p.writer, "Code is not valid")
		}
		return nil
	default:
		return fmt.Errorf("unknown output format: %s", p.format)
	}
}

// PrintApprovalState prints an approval outcome
func (p *Printer) PrintApprovalState(s approval.State) error {
	info := map[string]interface{}{
		"approver_id": s.Identity().ID.String(),
		"label":       s.Identity().Label,
		"status":      s.Status().String(),
	}
	if r, ok := s.(*approval.Rejected); ok {
		info["reason"] = r.Reason.String()
		info["attempts"] = r.Attempts
	}

	switch p.format {
	case OutputFormatJSON:
		return p.printJSON(info)
	case OutputFormatText:
		fmt.Fprintf(p.writer, "Approver %s: %s", s.Identity().Label, s.Status())
		if r, ok := s.(*approval.Rejected); ok {
			fmt.Fprintf(p.writer, " (%s)", r.Reason)
		}
		fmt.Fprintln(p.writer)
		return nil
	default:
		return fmt.Errorf("unknown output format: %s", p.format)
	}
}

// PrintSuccess prints a success message
func (p *Printer) PrintSuccess(message string) error {
	switch p.format {
	case OutputFormatJSON:
		return p.printJSON(map[string]interface{}{
			"status":  "success",
			"message": message,
		})
	case OutputFormatText:
		fmt.Fprintln(p.writer, message)
		return nil
	default:
		return fmt.Errorf("unknown output format: %s", p.format)
	}
}

// PrintError prints an error message
func (p *Printer) PrintError(err error) error {
	switch p.format {
	case OutputFormatJSON:
		return p.printJSON(map[string]interface{}{
			"status": "error",
			"error":  err.Error(),
		})
	default:
		fmt.Fprintf(p.writer, "Error: %v\n", err)
		return nil
	}
}

func (p *Printer) printJSON(data interface{}) error {
	encoder := json.NewEncoder(p.writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}
