package cmd

import (
	"fmt"
	"strings"

	"github.com/audiolibrelab/reelcapture/internal/service"
)

var stepNames = map[rune]string{
	's': "start",
	't': "toggle pause",
	'u': "undo",
	'r': "redo",
	'x': "stop",
	'n': "next",
	'g': "gallery",
}

const validStepsHelp = "s=start, t=toggle, u=undo, r=redo, x=stop, n=next, g=gallery"

func validatePipeline() error {
	if pipeline == "" {
		return nil
	}

	for _, step := range strings.ToLower(pipeline) {
		if _, ok := stepNames[step]; !ok {
			return fmt.Errorf("invalid pipeline step: '%c' (valid: %s)", step, validStepsHelp)
		}
	}

	return nil
}

// executeStep applies one scripted step to the service and returns a line
// describing the outcome.
func executeStep(svc service.Service, step rune) (string, error) {
	switch step {
	case 's':
		if err := svc.StartRecording(); err != nil {
			return "", err
		}
		return "recording started", nil

	case 't':
		if err := svc.TogglePause(); err != nil {
			return "", err
		}
		status := svc.GetStatus()
		return fmt.Sprintf("%s at %s", strings.ToLower(string(status.Phase)), status.Elapsed), nil

	case 'u':
		if err := svc.Undo(); err != nil {
			return "", err
		}
		return fmt.Sprintf("%d segment(s) left", len(svc.GetStatus().Segments)), nil

	case 'r':
		if err := svc.Redo(); err != nil {
			return "", err
		}
		return fmt.Sprintf("%d segment(s) committed", len(svc.GetStatus().Segments)), nil

	case 'x':
		if err := svc.StopRecording(); err != nil {
			return "", err
		}
		status := svc.GetStatus()
		return fmt.Sprintf("finished with %d segment(s), %.2fs", len(status.Segments), status.TotalElapsedSeconds), nil

	case 'n':
		record, err := svc.Next()
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("capture %s ready for editing", record.ID), nil

	case 'g':
		captures, err := svc.Upload()
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%d capture(s) in gallery", len(captures)), nil

	default:
		return "", fmt.Errorf("unknown pipeline step: '%c' (valid: %s)", step, validStepsHelp)
	}
}
