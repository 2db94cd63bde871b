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
	"os"
	"sync"

	"github.com/jeremyhahn/go-recovery/pkg/adapters/audit"
)

// fileAuditor appends every recorded event to a JSON lines file as it
// happens, so failed commands leave a trail too.
type fileAuditor struct {
	mu     sync.Mutex
	path   string
	memory *audit.MemoryAuditor
}

func newFileAuditor(path string) *fileAuditor {
	return &fileAuditor{path: path, memory: audit.NewMemoryAuditor(0)}
}

func (f *fileAuditor) Record(event *audit.Event) error {
	if err := f.memory.Record(event); err != nil {
		return err
	}
	line, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode audit event: %w", err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	file, err := os.OpenFile(f.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return fmt.Errorf("failed to open audit log: %w", err)
	}
	defer file.Close()
	if _, err := file.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("failed to write audit log: %w", err)
	}
	return nil
}

func (f *fileAuditor) Events(query audit.Query) ([]*audit.Event, error) {
	return f.memory.Events(query)
}
