package pkg

import (
	"archive/tar"
	"io"
	"os"
	"path"
	"strings"

	"github.com/andybalholm/brotli"
	"github.com/rotisserie/eris"
	"github.com/ulikunitz/xz"
)

// DistEntry describes a single archive member
type DistEntry struct {
	Name  string
	Size  int64
	IsDir bool
}

// DistWriter writes compressed tarballs (.tar.xz, .tar.br or plain .tar)
type DistWriter struct {
	hdl      *os.File
	compress io.WriteCloser
	tw       *tar.Writer
	buffer   []byte
}

type nopWriteCloser struct {
	io.Writer
}

func (nopWriteCloser) Close() error {
	return nil
}

// IsDistName reports whether filename has an archive suffix supported by DistWriter
func IsDistName(filename string) bool {
	return strings.HasSuffix(filename, ".tar.xz") || strings.HasSuffix(filename, ".tar.br") ||
		strings.HasSuffix(filename, ".tar")
}

// NewDistWriter creates filename and picks the compression based on its suffix
func NewDistWriter(filename string) (*DistWriter, error) {
	if !IsDistName(filename) {
		return nil, eris.Errorf("unsupported archive type for %s, expected .tar.xz, .tar.br or .tar", filename)
	}

	hdl, err := os.Create(filename)
	if err != nil {
		return nil, eris.Wrapf(err, "failed to create %s", filename)
	}

	var compress io.WriteCloser
	switch {
	case strings.HasSuffix(filename, ".xz"):
		compress, err = xz.NewWriter(hdl)
		if err != nil {
			hdl.Close()
			return nil, eris.Wrap(err, "failed to initialize xz stream")
		}
	case strings.HasSuffix(filename, ".br"):
		compress = brotli.NewWriterLevel(hdl, brotli.BestCompression)
	default:
		compress = nopWriteCloser{hdl}
	}

	return &DistWriter{
		hdl:      hdl,
		compress: compress,
		tw:       tar.NewWriter(compress),
		buffer:   make([]byte, 32*1024),
	}, nil
}

// WriteDirectory adds a directory entry
func (w *DistWriter) WriteDirectory(name string, info os.FileInfo) error {
	hdr, err := tar.FileInfoHeader(info, "")
	if err != nil {
		return eris.Wrapf(err, "failed to build header for %s", name)
	}

	hdr.Name = strings.TrimSuffix(path.Clean(name), "/") + "/"
	return eris.Wrapf(w.tw.WriteHeader(hdr), "failed to write directory %s", name)
}

// WriteFile adds the content of reader as name. Progress receives a copy of the written data if it's not nil.
func (w *DistWriter) WriteFile(name string, reader *os.File, progress io.Writer) error {
	info, err := reader.Stat()
	if err != nil {
		return eris.Wrapf(err, "failed to stat %s", reader.Name())
	}

	hdr, err := tar.FileInfoHeader(info, "")
	if err != nil {
		return eris.Wrapf(err, "failed to build header for %s", name)
	}
	hdr.Name = path.Clean(name)

	err = w.tw.WriteHeader(hdr)
	if err != nil {
		return eris.Wrapf(err, "failed to write header for %s", name)
	}

	var dest io.Writer = w.tw
	if progress != nil {
		dest = io.MultiWriter(w.tw, progress)
	}

	_, err = io.CopyBuffer(dest, reader, w.buffer)
	if err != nil {
		return eris.Wrapf(err, "failed to pack %s", name)
	}

	return nil
}

// Close finishes the archive and closes the underlying file
func (w *DistWriter) Close() error {
	err := w.tw.Close()
	if err != nil {
		w.hdl.Close()
		return eris.Wrap(err, "failed to finish tar stream")
	}

	err = w.compress.Close()
	if err != nil {
		w.hdl.Close()
		return eris.Wrap(err, "failed to finish compressed stream")
	}

	return eris.Wrap(w.hdl.Close(), "failed to close archive")
}

// ReadDist lists the members of an archive written by DistWriter
func ReadDist(filename string) ([]DistEntry, error) {
	hdl, err := os.Open(filename)
	if err != nil {
		return nil, eris.Wrapf(err, "failed to open %s", filename)
	}
	defer hdl.Close()

	var reader io.Reader
	switch {
	case strings.HasSuffix(filename, ".xz"):
		reader, err = xz.NewReader(hdl)
		if err != nil {
			return nil, eris.Wrap(err, "failed to initialize xz stream")
		}
	case strings.HasSuffix(filename, ".br"):
		reader = brotli.NewReader(hdl)
	default:
		reader = hdl
	}

	result := []DistEntry{}
	tr := tar.NewReader(reader)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, eris.Wrapf(err, "failed to read %s", filename)
		}

		result = append(result, DistEntry{
			Name:  hdr.Name,
			Size:  hdr.Size,
			IsDir: hdr.Typeflag == tar.TypeDir,
		})
	}

	return result, nil
}
