package browse

import (
	"context"
	"fmt"
	"os/exec"
	"strings"

	"aura/internal/types"
)

// pathFromWindowTitle locates the PDF the reader has open by listing its
// open file descriptors. Readers keep the document mapped, so the first
// open *.pdf of the process is the one on screen in the common
// single-document case.
func pathFromWindowTitle(ctx context.Context, app types.ApplicationInfo) (string, error) {
	proc := strings.Fields(app.Name)
	if len(proc) == 0 {
		return "", fmt.Errorf("no application name to match")
	}

	// lsof exits non-zero when some descriptors cannot be read; the
	// output is still usable, so only an empty result is fatal.
	out, _ := exec.CommandContext(ctx, "lsof", "-c", proc[0], "-Fn").Output()
	for _, line := range strings.Split(string(out), "\n") {
		name, ok := strings.CutPrefix(line, "n")
		if !ok {
			continue
		}
		if strings.HasSuffix(strings.ToLower(name), ".pdf") {
			return name, nil
		}
	}
	return "", fmt.Errorf("process %s has no open PDF file", proc[0])
}
