package forge

import (
	"archive/tar"
	"compress/bzip2"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"

	"github.com/klauspost/compress/zip"
	"github.com/klauspost/compress/zstd"
	"github.com/klauspost/pgzip"
	"github.com/ulikunitz/xz"
)

// Workspace returns BUILDDIR/<name>-<version>.
func Workspace(cfg *Config, r *Recipe) string {
	return filepath.Join(cfg.BuildDir, fmt.Sprintf("%s-%s", r.Name, r.Version))
}

// Unpack destroys and recreates the build workspace, extracts every
// cached source archive into it, and applies any patches found beside
// the recipe. It returns the effective source root the build driver
// should chdir into.
func Unpack(cfg *Config, r *Recipe) (string, error) {
	ws := Workspace(cfg, r)
	if err := os.RemoveAll(ws); err != nil {
		return "", fmt.Errorf("clear workspace %s: %w", ws, err)
	}
	if err := os.MkdirAll(ws, 0o755); err != nil {
		return "", fmt.Errorf("create workspace %s: %w", ws, err)
	}

	srcDir := sourceCacheDir(cfg, r)
	for _, url := range r.SourceURLs {
		archive := filepath.Join(srcDir, filepath.Base(url))
		if err := extract(archive, ws); err != nil {
			return "", fmt.Errorf("extract %s: %w", archive, err)
		}
	}

	root, err := effectiveRoot(ws)
	if err != nil {
		return "", err
	}

	if err := applyPatches(r, root); err != nil {
		return "", err
	}

	return root, nil
}

// extract dispatches on the archive's filename suffix. Unknown suffixes
// are fatal.
func extract(archive, destDir string) error {
	name := strings.ToLower(archive)
	switch {
	case strings.HasSuffix(name, ".tar.gz") || strings.HasSuffix(name, ".tgz"):
		return extractTar(archive, destDir, func(r io.Reader) (io.Reader, error) { return pgzip.NewReader(r) })
	case strings.HasSuffix(name, ".tar.bz2") || strings.HasSuffix(name, ".tbz2"):
		return extractTar(archive, destDir, func(r io.Reader) (io.Reader, error) { return bzip2.NewReader(r), nil })
	case strings.HasSuffix(name, ".tar.xz") || strings.HasSuffix(name, ".txz"):
		return extractTar(archive, destDir, func(r io.Reader) (io.Reader, error) { return xz.NewReader(r) })
	case strings.HasSuffix(name, ".tar.zst") || strings.HasSuffix(name, ".tzst"):
		return extractTar(archive, destDir, func(r io.Reader) (io.Reader, error) {
			zr, err := zstd.NewReader(r)
			if err != nil {
				return nil, err
			}
			return zr.IOReadCloser(), nil
		})
	case strings.HasSuffix(name, ".zip"):
		return extractZip(archive, destDir)
	case strings.HasSuffix(name, ".gz"):
		return extractSingleFile(archive, destDir, ".gz", func(r io.Reader) (io.Reader, error) { return pgzip.NewReader(r) })
	case strings.HasSuffix(name, ".bz2"):
		return extractSingleFile(archive, destDir, ".bz2", func(r io.Reader) (io.Reader, error) { return bzip2.NewReader(r), nil })
	case strings.HasSuffix(name, ".xz"):
		return extractSingleFile(archive, destDir, ".xz", func(r io.Reader) (io.Reader, error) { return xz.NewReader(r) })
	case strings.HasSuffix(name, ".zst"):
		return extractSingleFile(archive, destDir, ".zst", func(r io.Reader) (io.Reader, error) {
			zr, err := zstd.NewReader(r)
			if err != nil {
				return nil, err
			}
			return zr.IOReadCloser(), nil
		})
	default:
		return fmt.Errorf("%w: %s", ErrUnknownFormat, archive)
	}
}

func extractTar(archive, destDir string, decompress func(io.Reader) (io.Reader, error)) error {
	f, err := os.Open(archive)
	if err != nil {
		return err
	}
	defer f.Close()

	r, err := decompress(f)
	if err != nil {
		return err
	}
	if c, ok := r.(io.Closer); ok {
		defer c.Close()
	}

	tr := tar.NewReader(r)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}

		target := filepath.Join(destDir, hdr.Name)
		if !strings.HasPrefix(target, filepath.Clean(destDir)+string(os.PathSeparator)) && target != filepath.Clean(destDir) {
			return fmt.Errorf("illegal path in archive: %s", hdr.Name)
		}

		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0o755); err != nil {
				return err
			}
		case tar.TypeSymlink:
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return err
			}
			os.Remove(target)
			if err := os.Symlink(hdr.Linkname, target); err != nil {
				return err
			}
		default:
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return err
			}
			out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, os.FileMode(hdr.Mode))
			if err != nil {
				return err
			}
			if _, err := io.Copy(out, tr); err != nil {
				out.Close()
				return err
			}
			out.Close()
		}
	}
}

func extractZip(archive, destDir string) error {
	r, err := zip.OpenReader(archive)
	if err != nil {
		return err
	}
	defer r.Close()

	destAbs, err := filepath.Abs(destDir)
	if err != nil {
		return err
	}

	for _, f := range r.File {
		fpath := filepath.Join(destAbs, f.Name)
		if !strings.HasPrefix(fpath, destAbs+string(os.PathSeparator)) {
			return fmt.Errorf("illegal path in archive: %s", f.Name)
		}
		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(fpath, 0o755); err != nil {
				return err
			}
			continue
		}
		if err := os.MkdirAll(filepath.Dir(fpath), 0o755); err != nil {
			return err
		}
		rc, err := f.Open()
		if err != nil {
			return err
		}
		out, err := os.OpenFile(fpath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, f.Mode())
		if err != nil {
			rc.Close()
			return err
		}
		_, err = io.Copy(out, rc)
		out.Close()
		rc.Close()
		if err != nil {
			return err
		}
	}
	return nil
}

func extractSingleFile(archive, destDir, suffix string, decompress func(io.Reader) (io.Reader, error)) error {
	f, err := os.Open(archive)
	if err != nil {
		return err
	}
	defer f.Close()

	r, err := decompress(f)
	if err != nil {
		return err
	}
	if c, ok := r.(io.Closer); ok {
		defer c.Close()
	}

	outName := strings.TrimSuffix(filepath.Base(archive), suffix)
	out, err := os.Create(filepath.Join(destDir, outName))
	if err != nil {
		return err
	}
	defer out.Close()
	_, err = io.Copy(out, r)
	return err
}

// extractTarZst extracts a tar.zst archive into destDir. Used by the
// installer to unpack a package archive into the scratch root.
func extractTarZst(archive, destDir string) error {
	return extractTar(archive, destDir, func(r io.Reader) (io.Reader, error) {
		zr, err := zstd.NewReader(r)
		if err != nil {
			return nil, err
		}
		return zr.IOReadCloser(), nil
	})
}

// effectiveRoot returns ws if it contains anything other than exactly
// one directory, or that one directory otherwise.
func effectiveRoot(ws string) (string, error) {
	entries, err := os.ReadDir(ws)
	if err != nil {
		return "", err
	}
	if len(entries) == 1 && entries[0].IsDir() {
		return filepath.Join(ws, entries[0].Name()), nil
	}
	return ws, nil
}

// applyPatches applies every patches/*.patch beside the recipe, in
// lexicographic order, with strip level r.PatchStrip.
func applyPatches(r *Recipe, root string) error {
	patchDir := filepath.Join(r.Dir, "patches")
	entries, err := os.ReadDir(patchDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read patches dir: %w", err)
	}

	var patches []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".patch") {
			patches = append(patches, e.Name())
		}
	}
	sort.Strings(patches)

	for _, name := range patches {
		p := filepath.Join(patchDir, name)
		cmd := exec.Command("patch", fmt.Sprintf("-p%d", r.PatchStrip), "-i", p)
		cmd.Dir = root
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr
		if err := cmd.Run(); err != nil {
			return fmt.Errorf("apply patch %s: %w", name, err)
		}
	}
	return nil
}
