package forge

import (
	"archive/tar"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"
)

// PackagePath returns PKGDIR/<name>-<version>-<release>.tar.zst.
func PackagePath(cfg *Config, r *Recipe) string {
	name := fmt.Sprintf("%s-%s-%s.tar.zst", r.Name, r.Version, r.Release)
	return filepath.Join(cfg.PkgDir, name)
}

// Pack reads r.DestDir and writes a zstd-compressed tar archive rooted
// at "./", using numeric-owner headers (no local user/group name
// resolution), and returns the archive's path.
func Pack(cfg *Config, r *Recipe) (string, error) {
	if err := os.MkdirAll(cfg.PkgDir, 0o755); err != nil {
		return "", fmt.Errorf("create pkgdir %s: %w", cfg.PkgDir, err)
	}

	tarballPath := PackagePath(cfg, r)
	outFile, err := os.Create(tarballPath)
	if err != nil {
		return "", fmt.Errorf("create tarball %s: %w", tarballPath, err)
	}
	defer outFile.Close()

	zw, err := zstd.NewWriter(outFile, zstd.WithEncoderLevel(zstd.SpeedBestCompression))
	if err != nil {
		return "", fmt.Errorf("create zstd writer: %w", err)
	}
	defer zw.Close()

	tw := tar.NewWriter(zw)
	defer tw.Close()

	err = filepath.Walk(r.DestDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(r.DestDir, path)
		if err != nil {
			return err
		}

		var linkTarget string
		if info.Mode()&os.ModeSymlink != 0 {
			linkTarget, err = os.Readlink(path)
			if err != nil {
				return fmt.Errorf("readlink %s: %w", path, err)
			}
		}

		hdr, err := tar.FileInfoHeader(info, linkTarget)
		if err != nil {
			return err
		}

		if rel == "." {
			hdr.Name = "./"
			hdr.Mode = 0o755
		} else {
			hdr.Name = "./" + rel
		}

		// Package archives are portably root-owned: force numeric
		// ownership on every entry, no local name resolution.
		hdr.Uid, hdr.Gid = 0, 0
		hdr.Uname, hdr.Gname = "", ""

		if err := tw.WriteHeader(hdr); err != nil {
			return err
		}
		if rel == "." || !info.Mode().IsRegular() {
			return nil
		}

		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()
		_, err = io.Copy(tw, f)
		return err
	})
	if err != nil {
		return "", fmt.Errorf("pack %s: %w", r.DestDir, err)
	}

	return tarballPath, nil
}
