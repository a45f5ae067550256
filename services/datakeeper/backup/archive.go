// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package backup

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// archiveSystemStore streams the system store export through a spool
// file. Tar headers need a size up front, and the export size is not
// known until the export finishes.
func (m *Manager) archiveSystemStore(ctx context.Context, tw *tar.Writer, manifest *Manifest) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	spool, err := os.CreateTemp(m.dir, ".spool-*")
	if err != nil {
		return fmt.Errorf("create export spool: %w", err)
	}
	defer func() {
		spool.Close()
		os.Remove(spool.Name())
	}()

	hasher := sha256.New()
	if err := m.system.Export(io.MultiWriter(spool, hasher)); err != nil {
		return fmt.Errorf("export system store: %w", err)
	}
	size, err := spool.Seek(0, io.SeekCurrent)
	if err != nil {
		return fmt.Errorf("size export spool: %w", err)
	}
	if _, err := spool.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("rewind export spool: %w", err)
	}

	if err := tw.WriteHeader(&tar.Header{
		Name: systemExportName,
		Mode: 0640,
		Size: size,
	}); err != nil {
		return fmt.Errorf("write export header: %w", err)
	}
	if _, err := io.Copy(tw, spool); err != nil {
		return fmt.Errorf("copy export into archive: %w", err)
	}

	manifest.Checksums[systemExportName] = hex.EncodeToString(hasher.Sum(nil))
	manifest.Stores.System = true
	return nil
}

// archiveVectorIndex walks the vector persistence directory. An unset
// or absent directory just leaves the store flag off.
func (m *Manager) archiveVectorIndex(ctx context.Context, tw *tar.Writer, manifest *Manifest) error {
	if m.vectorDir == "" {
		return nil
	}
	if _, err := os.Stat(m.vectorDir); errors.Is(err, fs.ErrNotExist) {
		return nil
	} else if err != nil {
		return fmt.Errorf("stat vector persistence directory: %w", err)
	}

	err := filepath.WalkDir(m.vectorDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if cerr := ctx.Err(); cerr != nil {
			return cerr
		}
		if !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(m.vectorDir, path)
		if err != nil {
			return err
		}
		return addFileEntry(tw, vectorPrefix+filepath.ToSlash(rel), path, manifest)
	})
	if err != nil {
		return fmt.Errorf("archive vector index: %w", err)
	}
	manifest.Stores.Vector = true
	return nil
}

// archiveAnalytical adds the analytical working copy as a single file
// entry. Disabled or missing working copies are skipped silently.
func (m *Manager) archiveAnalytical(ctx context.Context, tw *tar.Writer, manifest *Manifest) error {
	if m.analytical == "" {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := os.Stat(m.analytical); errors.Is(err, fs.ErrNotExist) {
		return nil
	} else if err != nil {
		return fmt.Errorf("stat analytical working copy: %w", err)
	}

	name := analyticalPrefix + filepath.Base(m.analytical)
	if err := addFileEntry(tw, name, m.analytical, manifest); err != nil {
		return fmt.Errorf("archive analytical working copy: %w", err)
	}
	manifest.Stores.Analytical = true
	return nil
}

// addFileEntry copies one on-disk file into the tar stream, recording
// its checksum in the manifest.
func addFileEntry(tw *tar.Writer, archivePath, srcPath string, manifest *Manifest) error {
	info, err := os.Stat(srcPath)
	if err != nil {
		return err
	}
	f, err := os.Open(srcPath)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := tw.WriteHeader(&tar.Header{
		Name:    archivePath,
		Mode:    0640,
		Size:    info.Size(),
		ModTime: info.ModTime(),
	}); err != nil {
		return err
	}
	hasher := sha256.New()
	if _, err := io.Copy(io.MultiWriter(tw, hasher), f); err != nil {
		return err
	}
	manifest.Checksums[archivePath] = hex.EncodeToString(hasher.Sum(nil))
	return nil
}

// writeManifestEntry serializes the manifest as the archive's final
// entry.
func writeManifestEntry(tw *tar.Writer, manifest *Manifest) error {
	data, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal manifest: %w", err)
	}
	if err := tw.WriteHeader(&tar.Header{
		Name: manifestName,
		Mode: 0640,
		Size: int64(len(data)),
	}); err != nil {
		return fmt.Errorf("write manifest header: %w", err)
	}
	if _, err := tw.Write(data); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	return nil
}

// extractArchive unpacks every entry into the staging directory and
// returns the parsed manifest. Entry names are confined to the staging
// tree; anything that would escape aborts as corruption.
func extractArchive(archivePath, staging string) (*Manifest, error) {
	f, err := os.Open(archivePath)
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}
	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrArchiveCorrupt, err)
	}
	defer gz.Close()

	var manifest *Manifest
	tr := tar.NewReader(gz)
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrArchiveCorrupt, err)
		}
		if hdr.Typeflag != tar.TypeReg {
			continue
		}
		rel, err := safeEntryPath(hdr.Name)
		if err != nil {
			return nil, err
		}

		if hdr.Name == manifestName {
			var parsed Manifest
			if err := json.NewDecoder(tr).Decode(&parsed); err != nil {
				return nil, fmt.Errorf("%w: unreadable manifest: %v", ErrArchiveCorrupt, err)
			}
			manifest = &parsed
			continue
		}

		dest := filepath.Join(staging, rel)
		if err := os.MkdirAll(filepath.Dir(dest), 0750); err != nil {
			return nil, fmt.Errorf("create staging subtree: %w", err)
		}
		out, err := os.OpenFile(dest, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0640)
		if err != nil {
			return nil, fmt.Errorf("create staged file: %w", err)
		}
		if _, err := io.Copy(out, tr); err != nil {
			out.Close()
			return nil, fmt.Errorf("%w: %v", ErrArchiveCorrupt, err)
		}
		if err := out.Close(); err != nil {
			return nil, fmt.Errorf("close staged file: %w", err)
		}
	}

	if manifest == nil {
		return nil, fmt.Errorf("%w: manifest missing", ErrArchiveCorrupt)
	}
	if manifest.Version != manifestVersion {
		return nil, fmt.Errorf("%w: unsupported manifest version %d", ErrArchiveCorrupt, manifest.Version)
	}
	return manifest, nil
}

// safeEntryPath validates a tar entry name and returns it as a
// filesystem-relative path.
func safeEntryPath(name string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(name))
	if filepath.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: unsafe entry path %q", ErrArchiveCorrupt, name)
	}
	return clean, nil
}

// verifyStaged checks every manifest checksum against the staged
// files before any store is touched.
func verifyStaged(staging string, manifest *Manifest) error {
	for entry, want := range manifest.Checksums {
		rel, err := safeEntryPath(entry)
		if err != nil {
			return err
		}
		got, err := fileChecksum(filepath.Join(staging, rel))
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: entry %s missing", ErrArchiveCorrupt, entry)
		}
		if err != nil {
			return fmt.Errorf("checksum staged entry %s: %w", entry, err)
		}
		if got != want {
			return fmt.Errorf("%w: checksum mismatch for %s", ErrArchiveCorrupt, entry)
		}
	}
	return nil
}

func fileChecksum(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	hasher := sha256.New()
	if _, err := io.Copy(hasher, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(hasher.Sum(nil)), nil
}

// readManifest pulls only the manifest entry out of an archive.
func readManifest(archivePath string) (*Manifest, error) {
	f, err := os.Open(archivePath)
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}
	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrArchiveCorrupt, err)
	}
	defer gz.Close()

	tr := tar.NewReader(gz)
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrArchiveCorrupt, err)
		}
		if hdr.Name != manifestName {
			continue
		}
		var manifest Manifest
		if err := json.NewDecoder(tr).Decode(&manifest); err != nil {
			return nil, fmt.Errorf("%w: unreadable manifest: %v", ErrArchiveCorrupt, err)
		}
		return &manifest, nil
	}
	return nil, fmt.Errorf("%w: manifest missing", ErrArchiveCorrupt)
}

// restoreSystemStore replaces the system store contents from the
// staged export.
func (m *Manager) restoreSystemStore(ctx context.Context, staging string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f, err := os.Open(filepath.Join(staging, systemExportName))
	if err != nil {
		return fmt.Errorf("open staged system export: %w", err)
	}
	defer f.Close()
	if err := m.system.Import(f); err != nil {
		return fmt.Errorf("import system store: %w", err)
	}
	return nil
}

// restoreVectorIndex swaps the live persistence directory for the
// staged copy. The previous directory is set aside first and put back
// if the copy fails.
func (m *Manager) restoreVectorIndex(staging string) error {
	if m.vectorDir == "" {
		return errors.New("no vector persistence directory configured")
	}
	staged := filepath.Join(staging, strings.TrimSuffix(vectorPrefix, "/"))

	aside := m.vectorDir + ".pre-restore"
	os.RemoveAll(aside)
	hadPrevious := false
	if _, err := os.Stat(m.vectorDir); err == nil {
		if err := os.Rename(m.vectorDir, aside); err != nil {
			return fmt.Errorf("set aside vector directory: %w", err)
		}
		hadPrevious = true
	}

	if err := copyTree(staged, m.vectorDir); err != nil {
		os.RemoveAll(m.vectorDir)
		if hadPrevious {
			os.Rename(aside, m.vectorDir)
		}
		return fmt.Errorf("restore vector directory: %w", err)
	}
	if hadPrevious {
		os.RemoveAll(aside)
	}
	return nil
}

// restoreAnalytical replaces the analytical working copy atomically.
func (m *Manager) restoreAnalytical(staging string, manifest *Manifest) error {
	if m.analytical == "" {
		return errors.New("no analytical working copy configured")
	}

	var stagedName string
	for entry := range manifest.Checksums {
		if strings.HasPrefix(entry, analyticalPrefix) {
			stagedName = entry
			break
		}
	}
	if stagedName == "" {
		return errors.New("archive flags analytical content but carries none")
	}
	rel, err := safeEntryPath(stagedName)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(m.analytical), 0750); err != nil {
		return fmt.Errorf("create analytical directory: %w", err)
	}
	tmp := m.analytical + ".restore-tmp"
	if err := copyFileContents(filepath.Join(staging, rel), tmp); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("stage analytical replacement: %w", err)
	}
	if err := os.Rename(tmp, m.analytical); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("swap analytical working copy: %w", err)
	}
	return nil
}

// copyTree mirrors the regular files of src into dst.
func copyTree(src, dst string) error {
	return filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)
		if d.IsDir() {
			return os.MkdirAll(target, 0750)
		}
		if !d.Type().IsRegular() {
			return nil
		}
		return copyFileContents(path, target)
	})
}

func copyFileContents(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	if err := os.MkdirAll(filepath.Dir(dst), 0750); err != nil {
		return err
	}
	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0640)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	if err := out.Sync(); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// syncDir fsyncs a directory so a just-renamed archive survives a
// crash. Errors are ignored; some filesystems refuse directory syncs.
func syncDir(dir string) {
	if d, err := os.Open(dir); err == nil {
		d.Sync()
		d.Close()
	}
}
