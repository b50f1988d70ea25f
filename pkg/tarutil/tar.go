package tarutil

import (
	"archive/tar"
	"bytes"
	"fmt"
	"github.com/pkg/errors"
	"io"
	"path"
	"strings"
)

// ReadAllHeaders 列出 tar 流中的所有文件头
func ReadAllHeaders(r io.Reader) ([]*tar.Header, error) {

	reader := tar.NewReader(r)

	var (
		header      *tar.Header
		err         error
		fileHeaders = make([]*tar.Header, 0)
	)

	for {
		header, err = reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrapf(err, "read tar stream")
		}
		fileHeaders = append(fileHeaders, header)
	}
	return fileHeaders, nil
}

// ExtractedByName returns the content of the first regular file in the tar stream whose
// name matches extractedName. `docker cp` archives the base name while `tar cf - /a/b`
// drops the leading slash, so both the cleaned full path and the base name are accepted.
func ExtractedByName(r io.Reader, extractedName string) ([]byte, error) {

	reader := tar.NewReader(r)
	want := strings.TrimPrefix(path.Clean(extractedName), "/")
	base := path.Base(want)

	for {
		header, err := reader.Next()
		if err == io.EOF {
			return nil, fmt.Errorf("file %s is not found in archive", extractedName)
		}
		if err != nil {
			return nil, errors.Wrapf(err, "read tar stream")
		}
		if header.Typeflag != tar.TypeReg {
			continue
		}
		name := strings.TrimPrefix(path.Clean(header.Name), "/")
		if name != want && name != base {
			continue
		}
		buf := new(bytes.Buffer)

		if _, err = io.Copy(buf, reader); err != nil {
			return nil, errors.Wrapf(err, "read %s failed", extractedName)
		}

		return buf.Bytes(), nil
	}
}
