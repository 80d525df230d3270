// Package rpn fetches forecast-hour records from archival RPN source files.
// The proprietary binary format is decoded by an external utility; this
// package invokes it and reads its gridded-array output into HourRecords.
package rpn

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/tidewaterlab/gemflux/internal/assemble"
	"github.com/tidewaterlab/gemflux/internal/config"
	"github.com/tidewaterlab/gemflux/internal/model"
	"github.com/tidewaterlab/gemflux/internal/support/exception"
	"github.com/tidewaterlab/gemflux/internal/support/logger"
)

const moduleName = "rpn"

// Extractor decodes forecast-hour source files and reads the results.
// Decoded files are kept in the work directory so re-runs skip the decode step.
type Extractor struct {
	source config.SourceConfig
	rules  map[string]config.VariableRule
}

// NewExtractor creates a new Extractor.
func NewExtractor(cfg *config.Config, rules map[string]config.VariableRule) *Extractor {
	return &Extractor{
		source: cfg.Gemflux.Source,
		rules:  rules,
	}
}

// SourceName returns the archival file name for one forecast hour:
// {YYYYMMDD}{cycle}_{leadhour:03d}.
func (e *Extractor) SourceName(src assemble.SlotSource) string {
	return fmt.Sprintf("%s%s_%03d", src.FileDate.Format("20060102"), src.Cycle, src.LeadHour)
}

// FetchHour decodes (if needed) and reads the forecast hour backing the given
// slot. An absent source file returns an error wrapping fs.ErrNotExist, which
// the assembler maps to an empty slot.
func (e *Extractor) FetchHour(ctx context.Context, src assemble.SlotSource) (*model.HourRecord, error) {
	decodedPath, err := e.extract(ctx, src)
	if err != nil {
		return nil, err
	}
	rec, err := ReadHourFile(decodedPath, src, e.rules)
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// extract runs the external decode utility for one forecast hour, skipping the
// run when the decoded file already exists in the work directory.
func (e *Extractor) extract(ctx context.Context, src assemble.SlotSource) (string, error) {
	name := e.SourceName(src)
	decodedPath := filepath.Join(e.source.WorkDir, name+".nc")
	if _, err := os.Stat(decodedPath); err == nil {
		logger.Debugf("Decoded hour file %s already present, skipping decode.", decodedPath)
		return decodedPath, nil
	}

	sourcePath := filepath.Join(e.source.Dir, name)
	if _, err := os.Stat(sourcePath); err != nil {
		return "", err
	}

	cmd := exec.CommandContext(ctx, e.source.DecodeCommand, sourcePath, decodedPath)
	cmd.Env = os.Environ()
	if e.source.DecodeLibPath != "" {
		cmd.Env = append(cmd.Env, "LD_LIBRARY_PATH="+e.source.DecodeLibPath)
	}
	logger.Debugf("Decoding %s -> %s", sourcePath, decodedPath)
	if out, err := cmd.CombinedOutput(); err != nil {
		// A failed decode must not leave a partial output behind, or re-runs
		// would skip the decode and read garbage.
		_ = os.Remove(decodedPath)
		return "", exception.Newf(moduleName, "decode of %s failed: %s", name, string(out), err)
	}
	return decodedPath, nil
}

var _ assemble.HourFetcher = (*Extractor)(nil)
