package forge

import (
	"os/exec"
	"strings"
)

// lddMissing runs ldd against path and reports the first "not found"
// dependency, if any. Non-ELF or non-dynamic binaries simply produce no
// match and are not reported as broken.
func lddMissing(path string) (string, bool) {
	out, err := exec.Command("ldd", path).CombinedOutput()
	if err != nil {
		return "", false // not a dynamic executable, or ldd refused it
	}
	for _, line := range strings.Split(string(out), "\n") {
		line = strings.TrimSpace(line)
		if strings.Contains(line, "=>") && strings.Contains(line, "not found") {
			lib := strings.TrimSpace(strings.SplitN(line, "=>", 2)[0])
			return lib, true
		}
	}
	return "", false
}
