// Package archive bundles an exported FrameSet directory (frames plus
// manifest) into a single zip for object storage.
package archive

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
)

type FrameSetZipper struct{}

func NewFrameSetZipper() *FrameSetZipper {
	return &FrameSetZipper{}
}

// CreateZip writes every regular file in dir (non-recursive) into a zip at
// outputPath in name order, so the archive layout is deterministic.
func (z *FrameSetZipper) CreateZip(ctx context.Context, dir string, outputPath string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("read frameset dir: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.Type().IsRegular() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	zipFile, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("create zip file: %w", err)
	}
	defer zipFile.Close()

	zipWriter := zip.NewWriter(zipFile)
	defer zipWriter.Close()

	for _, name := range names {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if err := addFileToZip(zipWriter, filepath.Join(dir, name)); err != nil {
			return fmt.Errorf("add %s to zip: %w", name, err)
		}
	}

	return nil
}

func addFileToZip(zw *zip.Writer, filename string) error {
	file, err := os.Open(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return err
	}

	header, err := zip.FileInfoHeader(info)
	if err != nil {
		return err
	}

	header.Name = filepath.Base(filename)
	header.Method = zip.Deflate

	writer, err := zw.CreateHeader(header)
	if err != nil {
		return err
	}

	_, err = io.Copy(writer, file)
	return err
}
