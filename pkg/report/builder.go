package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/moumouls/aero-4g-cam/pkg/core"
)

// BuilderConfig contains the run context that is not part of the result.
type BuilderConfig struct {
	Device  Device
	App     App
	LogFile string
}

// Build converts a run result into a report document.
func Build(run *core.RunResult, cfg BuilderConfig) *Report {
	rep := &Report{
		Version:   Version,
		RunID:     run.RunID,
		Status:    StatusPassed,
		StartTime: run.StartTime,
		EndTime:   run.StartTime.Add(run.Duration),
		Duration:  run.Duration.Milliseconds(),
		Phase:     run.Phase,
		Device:    cfg.Device,
		App:       cfg.App,
		Commands:  []Command{},
		Error:     run.Error,
		LogFile:   cfg.LogFile,
	}
	if !run.Success {
		rep.Status = StatusFailed
	}

	if fr := run.Flow; fr != nil {
		rep.Flow = fr.Name
		rep.Summary = Summary{
			Total:   fr.TotalSteps,
			Passed:  fr.PassedSteps,
			Failed:  fr.FailedSteps,
			Skipped: fr.SkippedSteps,
			Warned:  fr.WarnedSteps,
		}
		for i := range fr.Steps {
			rep.Commands = append(rep.Commands, buildCommand(&fr.Steps[i]))
		}
		if run.Success && fr.WarnedSteps > 0 {
			rep.Status = StatusWarned
		}
	}

	if pr := run.Publish; pr != nil {
		rep.Publish = &Publish{
			Backend: pr.Backend,
			Video:   buildObject(pr.Video),
		}
		if pr.Metadata != nil {
			meta := buildObject(*pr.Metadata)
			rep.Publish.Metadata = &meta
		}
	}

	return rep
}

func buildCommand(sr *core.StepResult) Command {
	cmd := Command{
		Index: sr.Index,
		Type:  sr.Command,
		Label: sr.Label,
	}
	if cmd.Label == "" {
		cmd.Label = sr.Message
	}

	switch sr.Status {
	case core.StatusPassed:
		cmd.Status = StatusPassed
	case core.StatusWarned:
		cmd.Status = StatusWarned
	case core.StatusFailed:
		cmd.Status = StatusFailed
	default:
		cmd.Status = StatusSkipped
	}

	if cmd.Status != StatusSkipped {
		ms := sr.Duration.Milliseconds()
		cmd.Duration = &ms
	}
	if sr.Error != "" {
		cmd.Error = &Error{Message: sr.Error}
		if sr.Category != core.ErrCategoryNone {
			cmd.Error.Category = sr.Category.String()
		}
	}
	for _, att := range sr.Attachments {
		if att.Name == core.AttachmentScreenshot {
			cmd.Screenshot = att.Path
			break
		}
	}
	return cmd
}

func buildObject(o core.ObjectResult) Object {
	return Object{Key: o.Key, URL: o.URL, SizeKB: o.SizeKB, Error: o.Error}
}

// FileName returns the report file name of a run.
func FileName(runID string) string {
	return fmt.Sprintf("run-%s.json", runID)
}

// Write stores the report in dir and returns its path.
func Write(dir string, rep *Report) (string, error) {
	if err := ensureDir(dir); err != nil {
		return "", err
	}
	path := filepath.Join(dir, FileName(rep.RunID))
	if err := atomicWriteJSON(path, rep); err != nil {
		return "", err
	}
	return path, nil
}

// Load reads a report written by Write.
func Load(path string) (*Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read report")
	}
	var rep Report
	if err := json.Unmarshal(data, &rep); err != nil {
		return nil, errors.Wrapf(err, "parse report %s", path)
	}
	return &rep, nil
}

func ensureDir(dir string) error {
	return errors.Wrapf(os.MkdirAll(dir, 0o755), "create report dir %s", dir)
}

// atomicWriteJSON writes to a temp file in the same directory and renames it into place.
func atomicWriteJSON(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errors.Wrap(err, "encode report")
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".report-*.tmp")
	if err != nil {
		return errors.Wrap(err, "create temp report")
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return errors.Wrap(err, "write temp report")
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return errors.Wrap(err, "close temp report")
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return errors.Wrapf(err, "rename report to %s", path)
	}
	return nil
}
