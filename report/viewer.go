package report

import (
	"context"
	"os/exec"
	"runtime"

	"github.com/YuminosukeSato/diabetes-risk/pkg/errors"
)

// ErrNoViewer is returned when no image viewer is available on the host.
var ErrNoViewer = errors.New("no image viewer available")

// Viewer displays a rendered figure to the user.
type Viewer interface {
	Show(ctx context.Context, path string) error
}

// SystemViewer opens files with the platform opener. Command overrides the
// opener; its arguments precede the path.
//
// Show returns when the command exits. On macOS "open -W" waits for the
// viewer application to quit. xdg-open and rundll32 hand the file off and
// return at once; set Command to a viewer that stays in the foreground
// (e.g. ["eog"] or ["feh"]) to block until the figure is closed.
type SystemViewer struct {
	Command []string
}

// Show runs the opener for path and waits for it to exit.
func (v SystemViewer) Show(ctx context.Context, path string) error {
	argv := v.Command
	if len(argv) == 0 {
		argv = defaultOpener(runtime.GOOS)
	}
	if len(argv) == 0 {
		return ErrNoViewer
	}
	bin, err := exec.LookPath(argv[0])
	if err != nil {
		return errors.Wrapf(ErrNoViewer, "%s: %v", argv[0], err)
	}
	args := append(append([]string{}, argv[1:]...), path)
	if err := exec.CommandContext(ctx, bin, args...).Run(); err != nil {
		return errors.Wrapf(err, "open %s", path)
	}
	return nil
}

func defaultOpener(goos string) []string {
	switch goos {
	case "darwin":
		return []string{"open", "-W"}
	case "windows":
		return []string{"rundll32", "url.dll,FileProtocolHandler"}
	case "linux", "freebsd", "openbsd", "netbsd":
		return []string{"xdg-open"}
	default:
		return nil
	}
}

// NopViewer shows nothing. Used for --no-show and in tests.
type NopViewer struct{}

func (NopViewer) Show(context.Context, string) error { return nil }
