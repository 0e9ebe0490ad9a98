// SPDX-License-Identifier: Apache-2.0

package proxy

import (
	"fmt"
	"io"
	"mime/multipart"
	"os"
)

// FileSource is the single internal shape every uploaded-file value is
// resolved into before multipart assembly begins. The three concrete
// implementations cover the source shapes accepted at the boundary.
type FileSource interface {
	Filename() string
	Open() (io.ReadCloser, error)
}

// PathBackedFile streams from a file already on local disk, such as a
// temporary upload spooled by the inbound request handler.
type PathBackedFile struct {
	Path         string
	OriginalName string
}

func (f PathBackedFile) Filename() string {
	return f.OriginalName
}

func (f PathBackedFile) Open() (io.ReadCloser, error) {
	rc, err := os.Open(f.Path)
	if err != nil {
		return nil, fmt.Errorf("open file %q: %w", f.OriginalName, err)
	}
	return rc, nil
}

// InlineBlob carries raw file bytes supplied inline with the call
// payload. Open spills the bytes to a temporary file and streams from
// there; closing the stream removes the spill file.
type InlineBlob struct {
	Name    string
	Content []byte
}

func (b InlineBlob) Filename() string {
	return b.Name
}

func (b InlineBlob) Open() (io.ReadCloser, error) {
	tmp, err := os.CreateTemp("", "apihub-blob-*")
	if err != nil {
		return nil, fmt.Errorf("spill blob %q: %w", b.Name, err)
	}
	if _, err := tmp.Write(b.Content); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return nil, fmt.Errorf("spill blob %q: %w", b.Name, err)
	}
	if _, err := tmp.Seek(0, io.SeekStart); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return nil, fmt.Errorf("spill blob %q: %w", b.Name, err)
	}
	return &spillFile{File: tmp}, nil
}

type spillFile struct {
	*os.File
}

func (s *spillFile) Close() error {
	err := s.File.Close()
	if rmErr := os.Remove(s.File.Name()); err == nil {
		err = rmErr
	}
	return err
}

// FormUpload wraps a file part of the inbound multipart request.
type FormUpload struct {
	Header *multipart.FileHeader
}

func (u FormUpload) Filename() string {
	return u.Header.Filename
}

func (u FormUpload) Open() (io.ReadCloser, error) {
	rc, err := u.Header.Open()
	if err != nil {
		return nil, fmt.Errorf("open upload %q: %w", u.Header.Filename, err)
	}
	return rc, nil
}
